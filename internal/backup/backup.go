// Package backup keeps pristine copies of game files before they are
// rewritten and restores them on demand. Backups live in a mirror tree
// under the project root with a timestamp baked into each file name, so
// repeated runs never clobber an earlier copy.
package backup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultDir is the backup directory name created under the project
// root.
const DefaultDir = ".rpgm_backup"

const stampLayout = "20060102_150405"

// SafeWrite writes data to path atomically: a hidden temp file in the
// same directory, fsync, then rename over the target.
func SafeWrite(path string, data []byte, perm os.FileMode) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	_, werr := f.Write(data)
	serr := f.Sync()
	cerr := f.Close()
	for _, e := range []error{werr, serr, cerr} {
		if e != nil {
			os.Remove(tmp)
			return fmt.Errorf("write temp file: %w", e)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Manager mirrors files from a project root into its backup directory.
type Manager struct {
	root string
	dir  string
	now  func() time.Time
}

func NewManager(root string) *Manager {
	return &Manager{
		root: root,
		dir:  filepath.Join(root, DefaultDir),
		now:  time.Now,
	}
}

// Dir returns the backup directory path.
func (m *Manager) Dir() string { return m.dir }

// Backup copies the file at path, which must live under the project
// root, into the mirror tree. It returns the backup file's path.
func (m *Manager) Backup(path string) (string, error) {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("backup: %s is outside the project root", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read original: %w", err)
	}

	destDir := filepath.Join(m.dir, filepath.Dir(rel))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	base := filepath.Base(rel)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamp := m.now().Format(stampLayout)

	name := fmt.Sprintf("%s_%s%s", stem, stamp, ext)
	dest := filepath.Join(destDir, name)
	for n := 2; ; n++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%s_%d%s", stem, stamp, n, ext))
	}

	if err := SafeWrite(dest, data, 0o644); err != nil {
		return "", err
	}
	log.Debug().Str("file", rel).Str("backup", dest).Msg("Backed up file")
	return dest, nil
}

// Restore copies the newest backup of the file at path back over it.
func (m *Manager) Restore(path string) error {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("restore: %s is outside the project root", path)
	}
	candidates, err := m.backupsFor(rel)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("restore: no backups for %s", rel)
	}
	// Timestamped names sort chronologically.
	sort.Strings(candidates)
	newest := candidates[len(candidates)-1]

	data, err := os.ReadFile(newest)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := SafeWrite(path, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("file", rel).Str("backup", filepath.Base(newest)).Msg("Restored file")
	return nil
}

// RestoreAll restores the newest backup of every file in the mirror
// tree and returns the number of files restored.
func (m *Manager) RestoreAll() (int, error) {
	groups, err := m.groups()
	if err != nil {
		return 0, err
	}
	restored := 0
	for rel := range groups {
		if err := m.Restore(filepath.Join(m.root, rel)); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// Cleanup deletes backups older than age, always keeping the newest
// keep copies of each file. It returns the number of backups removed.
func (m *Manager) Cleanup(age time.Duration, keep int) (int, error) {
	groups, err := m.groups()
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-age)
	removed := 0
	for _, paths := range groups {
		sort.Sort(sort.Reverse(sort.StringSlice(paths)))
		for i, p := range paths {
			if i < keep {
				continue
			}
			stamp, ok := stampOf(filepath.Base(p))
			if !ok || !stamp.Before(cutoff) {
				continue
			}
			if err := os.Remove(p); err != nil {
				return removed, fmt.Errorf("remove old backup: %w", err)
			}
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Cleaned up old backups")
	}
	return removed, nil
}

var backupNameRe = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})(?:_\d+)?(\.[^.]*)?$`)

// stampOf extracts the timestamp baked into a backup file name.
func stampOf(name string) (time.Time, bool) {
	mm := backupNameRe.FindStringSubmatch(name)
	if mm == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(stampLayout, mm[2], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// originalOf maps a backup file name back to the file it was taken
// from.
func originalOf(name string) (string, bool) {
	mm := backupNameRe.FindStringSubmatch(name)
	if mm == nil {
		return "", false
	}
	return mm[1] + mm[3], true
}

// backupsFor lists the backup files of one root-relative path.
func (m *Manager) backupsFor(rel string) ([]string, error) {
	dir := filepath.Join(m.dir, filepath.Dir(rel))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	base := filepath.Base(rel)
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if orig, ok := originalOf(e.Name()); ok && orig == base {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// groups maps each backed-up file's root-relative path to its backup
// copies.
func (m *Manager) groups() (map[string][]string, error) {
	groups := make(map[string][]string)
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		orig, ok := originalOf(d.Name())
		if !ok {
			return nil
		}
		relDir, err := filepath.Rel(m.dir, filepath.Dir(path))
		if err != nil {
			return err
		}
		rel := filepath.Join(relDir, orig)
		groups[rel] = append(groups[rel], path)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("walk backups: %w", err)
	}
	return groups, nil
}
