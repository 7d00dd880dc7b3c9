package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"rpgm-translator/internal/document"
	"rpgm-translator/internal/notetag"
	"rpgm-translator/internal/script"
)

// Result holds the units extracted from one file together with the
// bindings needed to write translations back into its document.
type Result struct {
	File  string
	Doc   *document.Document
	Units []Unit

	plain  map[string]*document.Node
	groups map[string]*recordGroup
	notes  map[string]*noteBinding
	nested map[string]*nestedBinding
}

type noteBinding struct {
	node   *document.Node
	segs   []notetag.Segment
	staged map[int]string
}

type nestedBinding struct {
	node *document.Node
	sub  *Result
}

func newResult(file string, doc *document.Document) *Result {
	return &Result{
		File:   file,
		Doc:    doc,
		plain:  make(map[string]*document.Node),
		groups: make(map[string]*recordGroup),
		notes:  make(map[string]*noteBinding),
		nested: make(map[string]*nestedBinding),
	}
}

func (r *Result) addPlain(p document.Path, node *document.Node, ctx string) {
	r.plain[p.String()] = node
	r.Units = append(r.Units, Unit{File: r.File, Path: p, Text: node.Str, Context: ctx})
}

// addDialogueRun registers a merged run of message records as a single
// unit. p must already carry the @MERGE step.
func (r *Result) addDialogueRun(p document.Path, nodes []*document.Node, ctx string) {
	g := &recordGroup{nodes: nodes, body: joinBody(nodes)}
	r.groups[p.String()] = g
	r.Units = append(r.Units, Unit{File: r.File, Path: p, Text: g.body, Context: ctx})
}

// addScriptRun registers a merged script body and one unit per string
// literal that survives the script filter. p must already carry the
// @MERGE step.
func (r *Result) addScriptRun(p document.Path, nodes []*document.Node, blacklist []*regexp.Regexp) {
	g := &recordGroup{script: true, nodes: nodes, body: joinBody(nodes)}
	g.lits = script.Extract(g.body)
	emitted := false
	for i, lit := range g.lits {
		if !ScriptLiteralTranslatable(g.body, lit, blacklist) {
			continue
		}
		r.Units = append(r.Units, Unit{File: r.File, Path: p.JS(i), Text: lit.Value, Context: ContextScript})
		emitted = true
	}
	if emitted {
		r.groups[p.String()] = g
	}
}

func (r *Result) addNote(p document.Path, node *document.Node) {
	segs := notetag.Parse(node.Str)
	if len(segs) == 0 {
		return
	}
	r.notes[p.String()] = &noteBinding{node: node, segs: segs}
	for i, s := range segs {
		r.Units = append(r.Units, Unit{File: r.File, Path: p.Tag(i), Text: s.Text, Context: ContextNote})
	}
}

// addNested registers an embedded JSON document found inside the string
// node at p and lifts its units out with the @JSON marker between the
// outer and inner path.
func (r *Result) addNested(p document.Path, node *document.Node, sub *Result) {
	r.nested[p.String()] = &nestedBinding{node: node, sub: sub}
	base := p.JSON()
	for _, u := range sub.Units {
		r.Units = append(r.Units, Unit{File: r.File, Path: joinPath(base, u.Path), Text: u.Text, Context: u.Context})
	}
}

func joinPath(prefix, suffix document.Path) document.Path {
	q := make(document.Path, 0, len(prefix)+len(suffix))
	q = append(q, prefix...)
	return append(q, suffix...)
}

// Apply writes translations, keyed by printable unit path, back into the
// file. Empty translations are ignored. It returns the re-encoded file
// bytes and the number of entries that no longer resolved to a unit.
func (r *Result) Apply(translations map[string]string) ([]byte, int, error) {
	skipped := 0
	for key, text := range translations {
		if text == "" {
			continue
		}
		if !r.stage(key, text) {
			skipped++
			log.Warn().
				Str("file", r.File).
				Str("path", key).
				Msg("translation does not match any unit, skipping")
		}
	}
	if err := r.finalize(); err != nil {
		return nil, skipped, err
	}
	return r.Doc.Dump(), skipped, nil
}

// Modified reports whether any translation actually changed the
// document.
func (r *Result) Modified() bool { return r.Doc.Modified() }

func (r *Result) stage(key, text string) bool {
	if node, ok := r.plain[key]; ok {
		return r.Doc.SetString(node, text) == nil
	}
	// Embedded documents: split at the first @JSON marker and delegate
	// the remainder to the nested result.
	if i := strings.Index(key, ".@JSON"); i >= 0 {
		nb, ok := r.nested[key[:i]]
		if !ok {
			return false
		}
		rest := strings.TrimPrefix(key[i+len(".@JSON"):], ".")
		return nb.sub.stage(rest, text)
	}
	if i := strings.LastIndex(key, ".@JS{"); i >= 0 {
		g, ok := r.groups[key[:i]]
		if !ok {
			return false
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(key[i+len(".@JS{"):], "}"))
		if err != nil {
			return false
		}
		return g.stageLiteral(idx, text)
	}
	if g, ok := r.groups[key]; ok && !g.script {
		g.stageBody(text)
		return true
	}
	if i := strings.LastIndex(key, ".@TAG{"); i >= 0 {
		nb, ok := r.notes[key[:i]]
		if !ok {
			return false
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(key[i+len(".@TAG{"):], "}"))
		if err != nil || idx < 0 || idx >= len(nb.segs) {
			return false
		}
		if nb.staged == nil {
			nb.staged = make(map[int]string)
		}
		nb.staged[idx] = text
		return true
	}
	return false
}

// finalize flushes staged group, note and nested edits into the
// document. Plain units were already written during staging.
func (r *Result) finalize() error {
	for _, nb := range r.nested {
		if !nb.sub.dirty() {
			continue
		}
		if err := nb.sub.finalize(); err != nil {
			return err
		}
		if err := r.Doc.SetString(nb.node, string(nb.sub.Doc.Dump())); err != nil {
			return err
		}
	}
	for _, g := range r.groups {
		if !g.dirty() {
			continue
		}
		lines := g.finalize()
		for i, node := range g.nodes {
			if err := r.Doc.SetString(node, lines[i]); err != nil {
				return err
			}
		}
	}
	for _, nb := range r.notes {
		if len(nb.staged) == 0 {
			continue
		}
		rebuilt := notetag.Rebuild(nb.node.Str, nb.segs, nb.staged)
		if err := r.Doc.SetString(nb.node, rebuilt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) dirty() bool {
	if r.Doc.Modified() {
		return true
	}
	for _, g := range r.groups {
		if g.dirty() {
			return true
		}
	}
	for _, nb := range r.notes {
		if len(nb.staged) > 0 {
			return true
		}
	}
	for _, nb := range r.nested {
		if nb.sub.dirty() {
			return true
		}
	}
	return false
}
