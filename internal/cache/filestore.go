package cache

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rpgm-translator/internal/backup"

	"github.com/rs/zerolog/log"
)

const fileVersion = 1

// Merged dialogue bodies can be long, so a cache line gets a generous cap.
const maxLineBytes = 10 * 1024 * 1024

type fileHeader struct {
	Version int `json:"version"`
}

// fileStore persists entries as JSON lines: a header line followed by one
// entry per line. Appends are cheap; Compact folds superseded duplicates.
type fileStore struct {
	path string
}

// NewFileStore returns a Store writing to path.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) Load(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read cache header: %w", err)
		}
		return nil, nil
	}
	var hdr fileHeader
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil || hdr.Version == 0 {
		return nil, fmt.Errorf("cache file %s has no valid header", s.path)
	}
	if hdr.Version > fileVersion {
		return nil, fmt.Errorf("cache file version %d is newer than this build supports", hdr.Version)
	}

	// A crash mid-append leaves a corrupt tail. Keep what parses and stop
	// at the first bad line rather than discarding the whole cache.
	var entries []Entry
	line := 1
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil || e.Key == "" {
			log.Warn().Str("path", s.path).Int("line", line).Msg("Corrupt cache line, keeping entries read so far")
			return entries, nil
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Cache file truncated, keeping entries read so far")
	}
	return entries, nil
}

func (s *fileStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat cache file: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if st.Size() == 0 {
		if err := enc.Encode(fileHeader{Version: fileVersion}); err != nil {
			f.Close()
			return fmt.Errorf("write cache header: %w", err)
		}
	}
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			f.Close()
			return fmt.Errorf("write cache entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	return nil
}

func (s *fileStore) Save(ctx context.Context, entries []Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fileHeader{Version: fileVersion}); err != nil {
		return fmt.Errorf("encode cache header: %w", err)
	}
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode cache entry: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := backup.SafeWrite(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}
