package matcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lun-build/lun/internal/tool"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMatch_IncludeAndIgnore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "1")
	writeFile(t, filepath.Join(root, "b.py"), "1")
	writeFile(t, filepath.Join(root, "vendor", "c.py"), "1")

	m := New(Options{Root: root}, nil, nil, nil)
	spec := &tool.Spec{Name: "lint", Include: []string{"**/*.py"}, Ignore: []string{"vendor/**"}}

	files, err := m.Match(context.Background(), spec)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"a.py", "b.py"}, paths)
}

func TestMatch_OnlyFilesRestricts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "1")
	writeFile(t, filepath.Join(root, "b.py"), "1")

	m := New(Options{Root: root, OnlyFiles: []string{"a.py"}}, nil, nil, nil)
	spec := &tool.Spec{Name: "lint", Include: []string{"*.py"}}

	files, err := m.Match(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.py", files[0].Path)
}

func TestMatch_SkipFilesExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "file1.py"), "1")
	writeFile(t, filepath.Join(root, "file2.py"), "1")
	writeFile(t, filepath.Join(root, "different.py"), "1")
	writeFile(t, filepath.Join(root, "file4.py"), "1")

	m := New(Options{Root: root, SkipFiles: []string{"file*.py"}}, nil, nil, nil)
	spec := &tool.Spec{Name: "lint", Include: []string{"*.py"}}

	files, err := m.Match(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "different.py", files[0].Path)
}

func TestMatch_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z.py"), "1")
	writeFile(t, filepath.Join(root, "a.py"), "1")
	writeFile(t, filepath.Join(root, "m.py"), "1")

	m := New(Options{Root: root}, nil, nil, nil)
	spec := &tool.Spec{Name: "lint", Include: []string{"*.py"}}

	files, err := m.Match(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{"a.py", "m.py", "z.py"}, []string{files[0].Path, files[1].Path, files[2].Path})
}
