// Package filewalker discovers the game files a project tree carries.
package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rpgm-translator/internal/parser"

	"github.com/rs/zerolog/log"
)

// SupportedExtensions lists the file types handled by the tool. A .js
// file is only picked up when a parser claims it (the plugin registry).
var SupportedExtensions = map[string]bool{
	".json":    true,
	".js":      true,
	".rvdata2": true,
	".rvdata":  true,
	".rxdata":  true,
}

// defaultSkipStems are database files with nothing worth translating;
// walking them costs time and yields noise.
var defaultSkipStems = map[string]bool{
	"animations": true,
	"tilesets":   true,
	"mapinfos":   true,
	"scripts":    true,
}

// FileEntry is a discovered file with the parser that claimed it.
type FileEntry struct {
	Path   string
	Ext    string
	Parser parser.Parser
}

// Walker traverses a project tree and collects parseable files. Hidden
// directories, including the backup directory, are never entered.
type Walker struct {
	skipStems map[string]bool
}

// NewWalker creates a Walker with the default skip list.
func NewWalker() *Walker {
	return &Walker{skipStems: defaultSkipStems}
}

// Walk discovers every supported file under root. A root that is itself
// a supported file yields a single entry.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}

	if !info.IsDir() {
		entry, ok := w.entryFor(root)
		if !ok {
			return nil, fmt.Errorf("unsupported file: %s", root)
		}
		return []FileEntry{entry}, nil
	}

	var entries []FileEntry
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(filepath.Base(path), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if entry, ok := w.entryFor(path); ok {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered files")
	return entries, nil
}

func (w *Walker) entryFor(path string) (FileEntry, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedExtensions[ext] {
		return FileEntry{}, false
	}
	base := filepath.Base(path)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	if w.skipStems[stem] {
		return FileEntry{}, false
	}
	p := parser.ForFile(path)
	if p == nil {
		return FileEntry{}, false
	}
	return FileEntry{Path: path, Ext: ext, Parser: p}, true
}

// Paths extracts the path list from entries, in walk order.
func Paths(entries []FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}
