// Package parser turns RPG Maker data files into translatable text
// units and writes translated units back without disturbing any byte it
// was not asked to change. Two parsers share the contract: one for the
// JSON family (MV/MZ data files and plugins.js) and one for the Marshal
// family (XP through VX Ace .rxdata/.rvdata/.rvdata2 files).
package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"rpgm-translator/internal/document"
)

// Unit is one translatable string lifted out of a game file.
type Unit struct {
	File    string
	Path    document.Path
	Text    string
	Context string
}

// Contexts attached to extracted units. Dialogue-like contexts relax the
// translatability heuristic.
const (
	ContextDialogue = "dialogue"
	ContextChoice   = "choice"
	ContextComment  = "comment"
	ContextScript   = "script"
	ContextPlugin   = "plugin"
	ContextName     = "name"
	ContextField    = "field"
	ContextTerm     = "term"
	ContextNote     = "note"
)

// Options control which optional unit classes are extracted.
type Options struct {
	TranslateNotes    bool
	TranslateComments bool
	// Blacklist rejects any unit whose text matches one of the
	// patterns.
	Blacklist []*regexp.Regexp
}

// Parser handles one file format family.
type Parser interface {
	// CanParse reports whether the file at path belongs to this family.
	CanParse(path string) bool
	// Parse decodes data and extracts its translatable units.
	Parse(path string, data []byte, opts Options) (*Result, error)
}

// ForFile returns the parser responsible for path, or nil when no
// family claims it.
func ForFile(path string) Parser {
	for _, p := range []Parser{NewMVParser(), NewAceParser()} {
		if p.CanParse(path) {
			return p
		}
	}
	return nil
}

func extLower(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
