// Package placeholder shields engine control codes from machine
// translation. Codes like \C[2], \N[1], <br> or #{gold} are swapped for
// opaque numbered tokens before a text leaves the pipeline and swapped
// back afterwards; the token alphabet 〖n〗 was picked because plain-text
// translation endpoints pass it through mostly undisturbed.
package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// Escape codes in message text: \\, \C[2], \AB<foo>, \G, \., \{ ...
	rpgmCodePattern = `\\\\|\\[A-Za-z]+\[\d+\]|\\[A-Za-z]+<[^>]*>|\\[A-Za-z]+|\\[^A-Za-z0-9\s]`
	// Markup understood by common message plugins.
	htmlTagPattern = `(?i:<br\s*/?>|</?center>|<color=[^>]*>|</color>|<wordwrap>|<font[^>]*>|</font>|<icon:\d+>)`
	// Ruby string interpolation in VX Ace scripts and notes.
	rubyExprPattern = `#\{[^}]+\}`
)

// codeRe matches every control code the pipeline protects. Alternation
// order matters: longer shapes must win over the bare \X fallback.
var codeRe = regexp.MustCompile(rpgmCodePattern + "|" + htmlTagPattern + "|" + rubyExprPattern)

// Mapping records the codes substituted out of one text. Tokens are
// numbered from zero in order of appearance.
type Mapping struct {
	codes []string
}

func token(i int) string { return fmt.Sprintf("〖%d〗", i) }

// Protect replaces every control code in text with an opaque token and
// returns the protected text plus the mapping needed to undo it.
func Protect(text string) (string, *Mapping) {
	m := &Mapping{}
	locs := codeRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, m
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		b.WriteString(token(len(m.codes)))
		m.codes = append(m.codes, text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), m
}

// Len returns the number of protected codes.
func (m *Mapping) Len() int { return len(m.codes) }

// Restore substitutes original codes back for their tokens. Tokens the
// translator mangled into a different bracket shape (e.g. [0] or (0))
// are recovered when the original code is not already present.
func (m *Mapping) Restore(text string) string {
	for i, code := range m.codes {
		tok := token(i)
		if strings.Contains(text, tok) {
			text = strings.ReplaceAll(text, tok, code)
			continue
		}
		if strings.Contains(text, code) {
			continue
		}
		mangled := regexp.MustCompile(fmt.Sprintf(`[〖\[({<]\s*%d\s*[〗\])}>]`, i))
		codeSpans := codeRe.FindAllStringIndex(text, -1)
		for _, loc := range mangled.FindAllStringIndex(text, -1) {
			// A bracket shape inside an already-restored code (like the
			// [1] of \C[1]) is not a mangled token.
			if overlapsAny(loc, codeSpans) {
				continue
			}
			text = text[:loc[0]] + code + text[loc[1]:]
			break
		}
	}
	return text
}

func overlapsAny(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && loc[1] > s[0] {
			return true
		}
	}
	return false
}

// ErrCodeMismatch is the sentinel matched by errors.Is for any control
// code validation failure.
var ErrCodeMismatch = errors.New("placeholder: control code mismatch")

// MismatchError reports which control codes were lost or invented by a
// translation.
type MismatchError struct {
	Missing []string
	Extra   []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("placeholder: control code mismatch (missing %v, extra %v)", e.Missing, e.Extra)
}

func (e *MismatchError) Is(target error) bool { return target == ErrCodeMismatch }

// Validate checks that restored carries exactly the same multiset of
// control codes as original.
func Validate(original, restored string) error {
	want := codeCounts(original)
	got := codeCounts(restored)
	var missing, extra []string
	for code, n := range want {
		for i := got[code]; i < n; i++ {
			missing = append(missing, code)
		}
	}
	for code, n := range got {
		for i := want[code]; i < n; i++ {
			extra = append(extra, code)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return &MismatchError{Missing: missing, Extra: extra}
}

func codeCounts(s string) map[string]int {
	counts := make(map[string]int)
	for _, m := range codeRe.FindAllString(s, -1) {
		counts[m]++
	}
	return counts
}
