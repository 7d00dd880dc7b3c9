package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"rpgm-translator/internal/glossary"
	"rpgm-translator/internal/placeholder"
)

// unitRef ties a deduplicated text back to one extracted unit.
type unitRef struct {
	file int
	path string
}

// item is one unique text on its way through the pipeline: protected,
// possibly sliced to fit the request budget, translated, then restored.
type item struct {
	raw     string
	pieces  []string
	out     []string
	done    int
	mapping *placeholder.Mapping
	guards  *glossary.Guards
	refs    []unitRef

	final string
	ok    bool
}

// piece addresses one slice of an item inside a batch.
type piece struct {
	it  *item
	idx int
}

var tokenSpanRe = regexp.MustCompile(`〖\d+〗|〈TERM_\d+〉`)

// runeOffset returns the byte offset of the nth rune of s.
func runeOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

// splitProtected slices text into chunks of at most limit runes without
// cutting through a protection token, preferring a newline and then a
// space as the cut point. Concatenating the chunks restores the text.
func splitProtected(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var out []string
	for utf8.RuneCountInString(text) > limit {
		cut := runeOffset(text, limit)
		for _, s := range tokenSpanRe.FindAllStringIndex(text, -1) {
			if cut > s[0] && cut < s[1] {
				if s[0] > 0 {
					cut = s[0]
				} else {
					// A token wider than the whole budget travels intact.
					cut = s[1]
				}
				break
			}
		}
		window := text[:cut]
		if i := strings.LastIndexByte(window, '\n'); i >= 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(window, ' '); i >= 0 {
			cut = i + 1
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		out = append(out, text)
	}
	return out
}

// partition groups item pieces into batches bounded by an item count and
// a rune budget, preserving item order.
func partition(items []*item, maxItems, maxChars int) [][]piece {
	var batches [][]piece
	var cur []piece
	chars := 0

	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, cur)
			cur = nil
			chars = 0
		}
	}
	for _, it := range items {
		for idx, text := range it.pieces {
			n := utf8.RuneCountInString(text)
			if len(cur) > 0 && (len(cur) >= maxItems || (maxChars > 0 && chars+n > maxChars)) {
				flush()
			}
			cur = append(cur, piece{it: it, idx: idx})
			chars += n
		}
	}
	flush()
	return batches
}
