package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lun-build/lun/internal/tool"
)

func writeToml(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lun.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesToolsAndDefaults(t *testing.T) {
	path := writeToml(t, `
cores = 4
refs = ["origin/main"]

[[linters]]
name = "ruff"
cmd = ["ruff", "check"]
fix = ["ruff", "check", "--fix"]
include = ["**/*.py"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Cores)
	assert.True(t, cfg.Mtime)
	require.Len(t, cfg.Linters, 1)
	assert.Equal(t, tool.Linter, cfg.Linters[0].Kind)
	assert.Equal(t, []string{"ruff", "check"}, cfg.Linters[0].Cmd)
}

func TestLoad_MtimeExplicitFalse(t *testing.T) {
	path := writeToml(t, `
mtime = false

[[formatters]]
name = "black"
cmd = ["black", "."]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Mtime)
}

func TestLoad_ToolWithoutCmdIsConfigError(t *testing.T) {
	path := writeToml(t, `
[[linters]]
name = "broken"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestFlagsApply_FreshImpliesNoCacheAndNoRefs(t *testing.T) {
	base := &Resolved{Refs: []string{"origin/main"}}
	f := &Flags{Fresh: true}

	out := f.Apply(base)
	assert.True(t, f.NoCache)
	assert.True(t, f.NoRefs)
	assert.Nil(t, out.Refs)
}

func TestFlagsApply_CarefulForcesOn(t *testing.T) {
	base := &Resolved{Careful: false}
	f := &Flags{Careful: true}

	out := f.Apply(base)
	assert.True(t, out.Careful)
}

func TestFlagsApply_WarningListsAppend(t *testing.T) {
	base := &Resolved{Deny: []string{"cache-full"}}
	f := &Flags{Deny: []string{"no-files"}}

	out := f.Apply(base)
	assert.ElementsMatch(t, []string{"cache-full", "no-files"}, out.Deny)
}
