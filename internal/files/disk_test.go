package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/cookbook/internal/types"
)

func TestWriteDirReadDirRoundTrip(t *testing.T) {
	root := t.TempDir()
	set := []types.File{
		{Path: "src/App.tsx", Content: "app"},
		{Path: "./index.html", Content: "<html>"},
		{Path: "package.json", Content: "{}"},
	}
	require.NoError(t, WriteDir(root, set))

	// noise that read-back must skip
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "react"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "react", "index.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "package-lock.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("SECRET=1"), 0o644))

	got, err := ReadDir(root)
	require.NoError(t, err)
	assert.Equal(t, []types.File{
		{Path: "index.html", Content: "<html>"},
		{Path: "package.json", Content: "{}"},
		{Path: "src/App.tsx", Content: "app"},
	}, got)
}

func TestWriteDirRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	err := WriteDir(root, []types.File{{Path: "../outside.txt", Content: "x"}})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "outside.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadDirMissingRoot(t *testing.T) {
	_, err := ReadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
