package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lun-build/lun/internal/batcher"
	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/skiporacle"
	"github.com/lun-build/lun/internal/tool"
)

func newTestFile(t *testing.T, dir, name string) *fingerprint.File {
	t.Helper()
	abs := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(abs, []byte("x"), 0o644))
	f, err := fingerprint.Load(name, abs)
	require.NoError(t, err)
	return f
}

func TestRunTool_DryRunNeverSpawnsAndAlwaysSucceeds(t *testing.T) {
	dir := t.TempDir()
	f := newTestFile(t, dir, "a.py")

	var out bytes.Buffer
	e := New(2, nil, false, nil, &out)
	spec := &tool.Spec{Name: "lint", Cmd: []string{"lint", "--"}}
	batches := batcher.Plan([]*fingerprint.File{f}, tool.Individual, 2, false)

	results := e.RunTool(context.Background(), spec, tool.ModeRun, dir, batches, nil, "auto", true)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.True(t, results[0].DryRun)
	assert.Contains(t, out.String(), "lint")
}

func TestRunTool_SuccessRunsTrueCommand(t *testing.T) {
	dir := t.TempDir()
	f := newTestFile(t, dir, "a.txt")

	var out bytes.Buffer
	e := New(1, nil, false, nil, &out)
	spec := &tool.Spec{Name: "ok", Cmd: []string{"true"}}
	batches := batcher.Plan([]*fingerprint.File{f}, tool.Individual, 1, false)

	results := e.RunTool(context.Background(), spec, tool.ModeRun, dir, batches, nil, "auto", false)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestRunTool_FailureRunsFalseCommand(t *testing.T) {
	dir := t.TempDir()
	f := newTestFile(t, dir, "a.txt")

	var out bytes.Buffer
	e := New(1, nil, false, nil, &out)
	spec := &tool.Spec{Name: "bad", Cmd: []string{"false"}}
	batches := batcher.Plan([]*fingerprint.File{f}, tool.Individual, 1, false)

	results := e.RunTool(context.Background(), spec, tool.ModeRun, dir, batches, nil, "auto", false)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Error(t, results[0].Err)
}

func TestBuildInvocation_ColorPlaceholderExpandsLiterally(t *testing.T) {
	spec := &tool.Spec{Name: "lint", Cmd: []string{"lint", "--color", "{{color}}", "--"}}
	f := &fingerprint.File{Path: "file.py"}

	argv, display := buildInvocation(spec, tool.ModeRun, "always", []*fingerprint.File{f})
	assert.Equal(t, []string{"lint", "--color", "always", "--", "file.py"}, argv)
	assert.Equal(t, "lint --color always -- file.py", display)
}

func TestBuildInvocation_DirPrefixesDisplay(t *testing.T) {
	spec := &tool.Spec{Name: "lint", Cmd: []string{"lint"}, Dir: "sub"}
	f := &fingerprint.File{Path: "sub/file.py"}

	_, display := buildInvocation(spec, tool.ModeRun, "auto", []*fingerprint.File{f})
	assert.Equal(t, "cd sub && lint file.py", display)
}

func TestCommit_OnlyInsertsKeysForFilesInMap(t *testing.T) {
	// No cache configured; commit must not panic when a file has no
	// precomputed decision (e.g. it errored during fingerprinting upstream).
	e := New(1, nil, false, nil, &bytes.Buffer{})
	f := &fingerprint.File{Path: "untracked.py"}
	e.commit([]*fingerprint.File{f}, map[string]skiporacle.Decision{})
}
