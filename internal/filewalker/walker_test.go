package filewalker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	return path
}

func TestWalkCollectsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	want := map[string]bool{
		touch(t, root, "data/Map001.json"):    true,
		touch(t, root, "data/Actors.rvdata2"): true,
		touch(t, root, "Data/Items.rxdata"):   true,
		touch(t, root, "js/plugins.js"):       true,
	}
	touch(t, root, "data/Animations.json")
	touch(t, root, "data/Tilesets.json")
	touch(t, root, "data/MapInfos.json")
	touch(t, root, "data/Scripts.rvdata2")
	touch(t, root, "js/main.js")
	touch(t, root, "js/libs/pixi.js")
	touch(t, root, "img/readme.txt")
	touch(t, root, ".rpgm_backup/data/Map001_20260825_120000.json")
	touch(t, root, ".git/config.json")

	w := NewWalker()
	entries, err := w.Walk(root)
	require.NoError(t, err)

	got := make(map[string]bool)
	for _, e := range entries {
		require.NotNil(t, e.Parser)
		got[e.Path] = true
	}
	assert.Equal(t, want, got)
}

func TestWalkSingleFile(t *testing.T) {
	root := t.TempDir()
	path := touch(t, root, "System.json")

	entries, err := NewWalker().Walk(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].Path)
	assert.Equal(t, ".json", entries[0].Ext)

	_, err = NewWalker().Walk(touch(t, root, "notes.txt"))
	require.Error(t, err)
}

func TestWalkMissingRoot(t *testing.T) {
	_, err := NewWalker().Walk(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestPaths(t *testing.T) {
	entries := []FileEntry{{Path: "a.json"}, {Path: "b.rvdata2"}}
	assert.Equal(t, []string{"a.json", "b.rvdata2"}, Paths(entries))
}
