package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, SafeWrite(path, []byte("first"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, SafeWrite(path, []byte("second"), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func managerAt(t *testing.T, stamp time.Time) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m := NewManager(root)
	m.now = func() time.Time { return stamp }
	return m, root
}

func TestBackupAndRestore(t *testing.T) {
	m, root := managerAt(t, time.Date(2026, 8, 25, 12, 0, 0, 0, time.Local))
	orig := filepath.Join(root, "data", "Map001.json")
	writeFile(t, orig, "original")

	dest, err := m.Backup(orig)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultDir, "data", "Map001_20260825_120000.json"), dest)

	writeFile(t, orig, "rewritten")
	require.NoError(t, m.Restore(orig))

	data, err := os.ReadFile(orig)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestBackupSameSecondGetsCounter(t *testing.T) {
	m, root := managerAt(t, time.Date(2026, 8, 25, 12, 0, 0, 0, time.Local))
	orig := filepath.Join(root, "System.json")
	writeFile(t, orig, "v1")

	first, err := m.Backup(orig)
	require.NoError(t, err)
	second, err := m.Backup(orig)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Contains(t, second, "System_20260825_120000_2.json")
}

func TestRestorePicksNewest(t *testing.T) {
	m, root := managerAt(t, time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local))
	orig := filepath.Join(root, "Items.json")

	writeFile(t, orig, "old")
	_, err := m.Backup(orig)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Date(2026, 8, 25, 11, 0, 0, 0, time.Local) }
	writeFile(t, orig, "new")
	_, err = m.Backup(orig)
	require.NoError(t, err)

	writeFile(t, orig, "broken")
	require.NoError(t, m.Restore(orig))

	data, err := os.ReadFile(orig)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRestoreAll(t *testing.T) {
	m, root := managerAt(t, time.Date(2026, 8, 25, 12, 0, 0, 0, time.Local))
	a := filepath.Join(root, "data", "Actors.json")
	b := filepath.Join(root, "data", "maps", "Map001.json")
	writeFile(t, a, "actors")
	writeFile(t, b, "map")

	_, err := m.Backup(a)
	require.NoError(t, err)
	_, err = m.Backup(b)
	require.NoError(t, err)

	writeFile(t, a, "x")
	writeFile(t, b, "y")

	n, err := m.RestoreAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, _ := os.ReadFile(a)
	assert.Equal(t, "actors", string(data))
	data, _ = os.ReadFile(b)
	assert.Equal(t, "map", string(data))
}

func TestRestoreWithoutBackups(t *testing.T) {
	m, root := managerAt(t, time.Now())
	orig := filepath.Join(root, "Items.json")
	writeFile(t, orig, "x")
	err := m.Restore(orig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backups")
}

func TestBackupOutsideRoot(t *testing.T) {
	m, _ := managerAt(t, time.Now())
	other := filepath.Join(t.TempDir(), "file.json")
	writeFile(t, other, "x")
	_, err := m.Backup(other)
	require.Error(t, err)
}

func TestCleanupKeepsNewest(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.Local)
	m, root := managerAt(t, base.AddDate(0, 0, -10))
	orig := filepath.Join(root, "Map001.json")
	writeFile(t, orig, "x")

	for _, d := range []int{-10, -8, -1, 0} {
		m.now = func() time.Time { return base.AddDate(0, 0, d) }
		_, err := m.Backup(orig)
		require.NoError(t, err)
	}

	m.now = func() time.Time { return base }
	removed, err := m.Cleanup(7*24*time.Hour, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "only the copy both old and beyond the keep count goes")

	groups, err := m.groups()
	require.NoError(t, err)
	require.Len(t, groups["Map001.json"], 3)
}

func TestCleanupKeepsOldSingleton(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.Local)
	m, root := managerAt(t, base.AddDate(0, 0, -30))
	orig := filepath.Join(root, "System.json")
	writeFile(t, orig, "x")
	_, err := m.Backup(orig)
	require.NoError(t, err)

	m.now = func() time.Time { return base }
	removed, err := m.Cleanup(7*24*time.Hour, 3)
	require.NoError(t, err)
	assert.Zero(t, removed, "the only copy of a file is never deleted")
}
