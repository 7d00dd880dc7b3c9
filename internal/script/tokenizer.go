// Package script extracts string literals from JavaScript event code so
// only the literals are translated and everything else is left intact.
package script

import "strings"

// Literal is one string literal found in a script body. Start and End
// are byte offsets covering the quotes; Value is the decoded content.
type Literal struct {
	Start int
	End   int
	Quote byte
	Value string
}

// Extract scans src and returns its string literals in source order.
// Line and block comments are skipped. Unterminated literals are
// dropped. Template literals keep their ${...} interpolations verbatim
// inside the decoded value.
func Extract(src string) []Literal {
	var lits []Literal
	n := len(src)
	i := 0
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return lits
			}
			i += 2 + end + 2
		case c == '\'' || c == '"':
			lit, next, ok := scanQuoted(src, i)
			i = next
			if ok {
				lits = append(lits, lit)
			}
		case c == '`':
			lit, next, ok := scanTemplate(src, i)
			i = next
			if ok {
				lits = append(lits, lit)
			}
		default:
			i++
		}
	}
	return lits
}

func scanQuoted(src string, start int) (Literal, int, bool) {
	q := src[start]
	n := len(src)
	i := start + 1
	var val []byte
	for i < n {
		c := src[i]
		if c == '\\' && i+1 < n {
			val = appendUnescaped(val, src[i+1])
			i += 2
			continue
		}
		if c == q {
			i++
			return Literal{Start: start, End: i, Quote: q, Value: string(val)}, i, true
		}
		if c == '\n' {
			// Plain quotes cannot span lines; treat as unterminated.
			return Literal{}, i, false
		}
		val = append(val, c)
		i++
	}
	return Literal{}, i, false
}

func scanTemplate(src string, start int) (Literal, int, bool) {
	n := len(src)
	i := start + 1
	var val []byte
	for i < n {
		c := src[i]
		if c == '\\' && i+1 < n {
			val = append(val, '\\', src[i+1])
			i += 2
			continue
		}
		if c == '$' && i+1 < n && src[i+1] == '{' {
			depth := 1
			j := i + 2
			for j < n && depth > 0 {
				switch src[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			val = append(val, src[i:j]...)
			i = j
			continue
		}
		if c == '`' {
			i++
			return Literal{Start: start, End: i, Quote: '`', Value: string(val)}, i, true
		}
		val = append(val, c)
		i++
	}
	return Literal{}, i, false
}

// appendUnescaped decodes one backslash escape. Unrecognized escapes are
// kept verbatim, backslash included.
func appendUnescaped(val []byte, e byte) []byte {
	switch e {
	case 'n':
		return append(val, '\n')
	case 't':
		return append(val, '\t')
	case 'r':
		return append(val, '\r')
	case '\\':
		return append(val, '\\')
	case '\'':
		return append(val, '\'')
	case '"':
		return append(val, '"')
	case '0':
		return append(val, 0)
	default:
		return append(val, '\\', e)
	}
}

// Replace substitutes text for lit inside src, re-escaped for the
// literal's quote kind. Bytes outside the literal's range are untouched.
func Replace(src string, lit Literal, text string) string {
	// Templates that carried interpolations keep ${...} live; otherwise
	// a ${ introduced by translation is neutralized.
	keepInterp := lit.Quote == '`' && strings.Contains(lit.Value, "${")
	q := string(lit.Quote)
	return src[:lit.Start] + q + escapeFor(lit.Quote, text, keepInterp) + q + src[lit.End:]
}

func escapeFor(quote byte, s string, keepInterp bool) string {
	if quote == '`' {
		// Template values carry their escape pairs and raw newlines
		// verbatim, so only terminators need attention.
		s = strings.ReplaceAll(s, "`", "\\`")
		if !keepInterp {
			s = strings.ReplaceAll(s, "${", `\${`)
		}
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	if quote == '\'' {
		s = strings.ReplaceAll(s, "'", `\'`)
	} else {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
