// Package notetag lifts translatable text out of RPG Maker note boxes.
// Notes mix free text with <Name>, <Name: value> and <Name>...</Name>
// tag markup read by plugins, so only tag payloads that are natural
// language may be touched. Rebuilding splices replacements by byte span
// and leaves every other byte of the note, delimiters included, intact.
package notetag

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"rpgm-translator/internal/textutil"
)

// Kind classifies where a segment's text came from.
type Kind uint8

const (
	// KindValue is the value part of an inline <Name: value> tag.
	KindValue Kind = iota
	// KindBlock is the body of a <Name>...</Name> pair.
	KindBlock
	// KindFree is prose outside any tag.
	KindFree
)

// Segment is one translatable span of a note.
type Segment struct {
	Start int
	End   int
	Tag   string // normalized tag name, empty for free text
	Kind  Kind
	Text  string
}

// textValueTags name tag payloads that are always natural language.
var textValueTags = map[string]bool{
	"description": true, "help description": true, "message": true,
	"custom death message": true, "custom collapse effect": true,
	"on death": true, "on revive": true, "on escape": true,
	"menu text": true, "help text": true, "info text": true,
	"display name": true, "display text": true, "name": true,
	"title": true, "description text": true, "popup text": true,
	"battle text": true,
}

// skipValueTags name tag payloads that are numeric, formulas or internal
// identifiers and must never be translated.
var skipValueTags = map[string]bool{
	"stype": true, "element": true, "price": true, "hp": true, "mp": true,
	"tp": true, "atk": true, "def": true, "mat": true, "mdf": true,
	"agi": true, "luk": true, "hit": true, "eva": true, "cri": true,
	"cnt": true, "hrg": true, "mrg": true, "trg": true, "tgr": true,
	"grd": true, "rec": true, "pha": true, "mcr": true, "tcr": true,
	"pdr": true, "mdr": true, "fdr": true, "exr": true, "icon": true,
	"icon index": true, "animation": true, "animation id": true,
	"skill": true, "skill id": true, "state": true, "state id": true,
	"type": true, "category": true, "target": true, "scope": true,
	"eval": true, "custom": true, "formula": true, "condition": true,
	"priority": true, "speed": true, "motion": true, "overlay": true,
	"notetag": true, "meta": true, "flag": true, "trait": true,
	"effect": true, "resistance": true, "weakness": true,
	"immunity": true, "absorb": true,
}

var (
	valueTagRe = regexp.MustCompile(`<\s*([^<>:]+?)\s*:\s*([^<>]+?)\s*>`)
	openTagRe  = regexp.MustCompile(`<\s*([^<>/]+?)\s*>`)
)

// Parse returns the translatable segments of note, ordered by position.
// The segment order is stable for a given note, so a segment's index
// identifies it across extraction and reinsertion.
func Parse(note string) []Segment {
	if note == "" {
		return nil
	}
	var segs []Segment
	var covered spans

	// Block tags first: their bodies may contain anything, including
	// text that looks like inline tags.
	for _, m := range openTagRe.FindAllStringSubmatchIndex(note, -1) {
		if covered.overlaps(m[0], m[1]) {
			continue
		}
		name := note[m[2]:m[3]]
		if strings.ContainsRune(name, ':') {
			continue
		}
		closeRe, err := regexp.Compile(`</\s*` + regexp.QuoteMeta(name) + `\s*>`)
		if err != nil {
			continue
		}
		loc := closeRe.FindStringIndex(note[m[1]:])
		if loc == nil {
			continue
		}
		bodyStart, bodyEnd := m[1], m[1]+loc[0]
		covered.add(m[0], m[1]+loc[1])
		body := note[bodyStart:bodyEnd]
		if tagTranslatable(name, body) {
			segs = append(segs, Segment{Start: bodyStart, End: bodyEnd, Tag: normalizeTag(name), Kind: KindBlock, Text: body})
		}
	}

	// Inline value tags.
	for _, m := range valueTagRe.FindAllStringSubmatchIndex(note, -1) {
		if covered.overlaps(m[0], m[1]) {
			continue
		}
		covered.add(m[0], m[1])
		name := note[m[2]:m[3]]
		value := note[m[4]:m[5]]
		if tagTranslatable(name, value) {
			segs = append(segs, Segment{Start: m[4], End: m[5], Tag: normalizeTag(name), Kind: KindValue, Text: value})
		}
	}

	// Bare marker tags only consume their span.
	for _, m := range openTagRe.FindAllStringIndex(note, -1) {
		if !covered.overlaps(m[0], m[1]) {
			covered.add(m[0], m[1])
		}
	}

	// Whatever remains is free text.
	for _, gap := range covered.gaps(len(note)) {
		start, end := trimSpan(note, gap[0], gap[1])
		if start >= end {
			continue
		}
		text := note[start:end]
		if LooksLikeText(text) {
			segs = append(segs, Segment{Start: start, End: end, Kind: KindFree, Text: text})
		}
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	return segs
}

// Rebuild splices replacements into note. repl is keyed by the segment's
// index within Parse(note). Every byte outside a replaced span is
// preserved verbatim.
func Rebuild(note string, segs []Segment, repl map[int]string) string {
	type patch struct {
		start, end int
		text       string
	}
	var patches []patch
	for i, s := range segs {
		if t, ok := repl[i]; ok {
			patches = append(patches, patch{s.Start, s.End, t})
		}
	}
	if len(patches) == 0 {
		return note
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].start > patches[j].start })
	out := note
	for _, p := range patches {
		out = out[:p.start] + p.text + out[p.end:]
	}
	return out
}

// LooksLikeText reports whether s reads as natural language rather than
// an identifier or formula.
func LooksLikeText(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.ContainsRune(s, ' ') && len(s) > 3 {
		return true
	}
	if textutil.ContainsNonASCII(s) {
		return true
	}
	if len(s) > 2 && strings.ContainsAny(s, "!?.,:;") {
		return true
	}
	r := []rune(s)[0]
	return unicode.IsUpper(r) && len(s) > 5
}

func normalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func tagTranslatable(name, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	norm := normalizeTag(name)
	if textValueTags[norm] {
		return true
	}
	if skipValueTags[norm] {
		return false
	}
	return LooksLikeText(value)
}

// spans tracks consumed byte ranges.
type spans [][2]int

func (s *spans) add(start, end int) { *s = append(*s, [2]int{start, end}) }

func (s spans) overlaps(start, end int) bool {
	for _, r := range s {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}

// gaps returns the uncovered ranges of [0, length) in order.
func (s spans) gaps(length int) [][2]int {
	sorted := make(spans, len(s))
	copy(sorted, s)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })
	var out [][2]int
	pos := 0
	for _, r := range sorted {
		if r[0] > pos {
			out = append(out, [2]int{pos, r[0]})
		}
		if r[1] > pos {
			pos = r[1]
		}
	}
	if pos < length {
		out = append(out, [2]int{pos, length})
	}
	return out
}

func trimSpan(s string, start, end int) (int, int) {
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
