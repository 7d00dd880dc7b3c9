package placeholder

import (
	"fmt"
	"strings"
)

// Repair re-injects control codes that went missing in translation. Each
// missing code's position class is inferred from the original text:
// leading codes are re-attached as a prefix, trailing codes as a suffix,
// and codes adjacent to a surviving neighbor are anchored next to that
// neighbor. A code that fits none of these classes cannot be placed with
// confidence and fails the repair, so the caller reverts the unit.
func Repair(original, translated string) (string, error) {
	occs := findCodes(original)
	if len(occs) == 0 {
		return translated, nil
	}
	deficit := codeCounts(original)
	for code, n := range codeCounts(translated) {
		deficit[code] -= n
	}

	out := translated
	prefixAt := 0
	for i, o := range occs {
		if deficit[o.code] <= 0 {
			continue
		}
		switch {
		case chainToStart(original, occs, o.start):
			out = out[:prefixAt] + o.code + out[prefixAt:]
			prefixAt += len(o.code)
		case chainToEnd(original, occs, o.end):
			out += o.code
		default:
			prev := neighborBefore(original, occs, i)
			next := neighborAfter(original, occs, i)
			if prev != "" && strings.Contains(out, prev) {
				at := strings.LastIndex(out, prev) + len(prev)
				out = out[:at] + o.code + out[at:]
			} else if next != "" && strings.Contains(out, next) {
				at := strings.Index(out, next)
				out = out[:at] + o.code + out[at:]
			} else {
				return "", fmt.Errorf("placeholder: no confident position for %q: %w", o.code, ErrCodeMismatch)
			}
		}
		deficit[o.code]--
	}
	return out, nil
}

type codeOcc struct {
	start, end int
	code       string
}

func findCodes(s string) []codeOcc {
	var occs []codeOcc
	for _, loc := range codeRe.FindAllStringIndex(s, -1) {
		occs = append(occs, codeOcc{start: loc[0], end: loc[1], code: s[loc[0]:loc[1]]})
	}
	return occs
}

// chainToStart reports whether only whitespace and other control codes
// sit between the start of the text and pos.
func chainToStart(s string, occs []codeOcc, pos int) bool {
	for pos > 0 {
		if isSpace(s[pos-1]) {
			pos--
			continue
		}
		jumped := false
		for _, o := range occs {
			if o.end == pos {
				pos = o.start
				jumped = true
				break
			}
		}
		if !jumped {
			return false
		}
	}
	return true
}

func chainToEnd(s string, occs []codeOcc, pos int) bool {
	for pos < len(s) {
		if isSpace(s[pos]) {
			pos++
			continue
		}
		jumped := false
		for _, o := range occs {
			if o.start == pos {
				pos = o.end
				jumped = true
				break
			}
		}
		if !jumped {
			return false
		}
	}
	return true
}

// neighborBefore returns the code immediately preceding occurrence i,
// allowing whitespace between, or "".
func neighborBefore(s string, occs []codeOcc, i int) string {
	pos := occs[i].start
	for pos > 0 && isSpace(s[pos-1]) {
		pos--
	}
	for j, o := range occs {
		if j != i && o.end == pos {
			return o.code
		}
	}
	return ""
}

func neighborAfter(s string, occs []codeOcc, i int) string {
	pos := occs[i].end
	for pos < len(s) && isSpace(s[pos]) {
		pos++
	}
	for j, o := range occs {
		if j != i && o.start == pos {
			return o.code
		}
	}
	return ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
