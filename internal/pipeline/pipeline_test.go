package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lun-build/lun/internal/config"
	"github.com/lun-build/lun/internal/tool"
	"github.com/lun-build/lun/internal/vcs"
	"github.com/lun-build/lun/internal/warnings"
)

func writeProjectFile(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(root, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}

func TestExecute_NoMatchingToolsExitsZero(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Resolved{Mtime: true}
	flags := &config.Flags{Mode: config.ModeFormat}

	run := New(cfg, flags, root, vcs.None{}, nil, warnings.New(nil, nil, nil, nil), nil, nil)
	result, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestExecute_SuccessfulToolExitsZeroAndCommitsCache(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "a.py", "print(1)\n")

	cfg := &config.Resolved{
		Mtime: true,
		Linters: []*tool.Spec{
			{Name: "ok", Kind: tool.Linter, Cmd: []string{"true"}, Include: []string{"*.py"}},
		},
	}
	flags := &config.Flags{}

	run := New(cfg, flags, root, vcs.None{}, nil, warnings.New(nil, nil, nil, nil), nil, nil)
	result, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	require.Len(t, result.Tools, 1)
	assert.Equal(t, 1, result.Tools[0].Executed)

	// A second run over the same unchanged file should skip it entirely.
	second, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ExitCode)
	require.Len(t, second.Tools, 1)
	assert.Equal(t, 1, second.Tools[0].Skipped)
	assert.Equal(t, 0, second.Tools[0].Executed)
}

func TestExecute_FailingSubprocessExitsNonZero(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "a.py", "print(1)\n")

	cfg := &config.Resolved{
		Mtime: true,
		Linters: []*tool.Spec{
			{Name: "bad", Kind: tool.Linter, Cmd: []string{"false"}, Include: []string{"*.py"}},
		},
	}
	flags := &config.Flags{}

	run := New(cfg, flags, root, vcs.None{}, nil, warnings.New(nil, nil, nil, nil), nil, nil)
	result, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
}

func TestExecute_DenyWarningForcesNonZeroEvenOnSuccess(t *testing.T) {
	root := t.TempDir()

	cfg := &config.Resolved{
		Mtime: true,
		Linters: []*tool.Spec{
			{Name: "ok", Kind: tool.Linter, Cmd: []string{"true"}, Include: []string{"*.py"}},
		},
		Deny: []string{warnings.NoFiles},
	}
	flags := &config.Flags{}
	warn := warnings.New(nil, nil, cfg.Deny, nil)

	run := New(cfg, flags, root, vcs.None{}, nil, warn, nil, nil)
	result, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
}
