package document

import (
	"fmt"
	"strconv"
	"strings"
)

// StepKind discriminates the step forms a Path can contain.
type StepKind uint8

const (
	// StepKey descends into a map field by name.
	StepKey StepKind = iota
	// StepIndex descends into a list element by position.
	StepIndex
	// StepAttr descends into a Ruby instance variable; Key holds the
	// name without its "@" prefix.
	StepAttr
	// StepJSON descends into a JSON document embedded in a string field.
	StepJSON
	// StepJS addresses the Idx-th string literal of a tokenized script
	// body.
	StepJS
	// StepMerge addresses a merged run of Idx consecutive event records
	// starting at the parent location.
	StepMerge
	// StepTag addresses the Idx-th translatable segment of a note-tag
	// blob.
	StepTag
)

// Step is one component of a Path.
type Step struct {
	Kind StepKind
	Key  string
	Idx  int
}

// Path locates one extraction site inside a document. Its printable form
// is injective: distinct sites always render to distinct strings, and
// ParsePath inverts String exactly.
type Path []Step

func (p Path) extend(s Step) Path {
	q := make(Path, len(p)+1)
	copy(q, p)
	q[len(p)] = s
	return q
}

// Key returns p extended by a map field step.
func (p Path) Key(name string) Path { return p.extend(Step{Kind: StepKey, Key: name}) }

// Index returns p extended by a list index step.
func (p Path) Index(i int) Path { return p.extend(Step{Kind: StepIndex, Idx: i}) }

// Attr returns p extended by an instance variable step. name must not
// include the "@" prefix.
func (p Path) Attr(name string) Path { return p.extend(Step{Kind: StepAttr, Key: name}) }

// JSON returns p extended by an embedded-JSON marker.
func (p Path) JSON() Path { return p.extend(Step{Kind: StepJSON}) }

// JS returns p extended by a script literal marker.
func (p Path) JS(i int) Path { return p.extend(Step{Kind: StepJS, Idx: i}) }

// Merge returns p extended by a merged-record marker covering n records.
func (p Path) Merge(n int) Path { return p.extend(Step{Kind: StepMerge, Idx: n}) }

// Tag returns p extended by a note-tag segment marker.
func (p Path) Tag(i int) Path { return p.extend(Step{Kind: StepTag, Idx: i}) }

// String renders the path in its stable printable form, e.g.
// "events[3].pages[0].list[7].parameters[0].@MERGE{2}.@JS{1}".
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		dot := i > 0
		switch s.Kind {
		case StepKey:
			if dot {
				b.WriteByte('.')
			}
			writeEscapedKey(&b, s.Key)
		case StepIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Idx))
			b.WriteByte(']')
		case StepAttr:
			if dot {
				b.WriteByte('.')
			}
			b.WriteByte('@')
			b.WriteString(s.Key)
		case StepJSON:
			if dot {
				b.WriteByte('.')
			}
			b.WriteString("@JSON")
		case StepJS:
			if dot {
				b.WriteByte('.')
			}
			fmt.Fprintf(&b, "@JS{%d}", s.Idx)
		case StepMerge:
			if dot {
				b.WriteByte('.')
			}
			fmt.Fprintf(&b, "@MERGE{%d}", s.Idx)
		case StepTag:
			if dot {
				b.WriteByte('.')
			}
			fmt.Fprintf(&b, "@TAG{%d}", s.Idx)
		}
	}
	return b.String()
}

// writeEscapedKey escapes the characters that carry structure in the
// printable form: ".", "[", "\" anywhere, and "@" at the start of a key.
func writeEscapedKey(b *strings.Builder, key string) {
	for i, r := range key {
		switch {
		case r == '\\' || r == '.' || r == '[':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '@' && i == 0:
			b.WriteByte('\\')
			b.WriteByte('@')
		default:
			b.WriteRune(r)
		}
	}
}

// ParsePath inverts Path.String.
func ParsePath(s string) (Path, error) {
	var p Path
	pos := 0
	first := true
	for pos < len(s) {
		switch {
		case s[pos] == '[':
			end := strings.IndexByte(s[pos:], ']')
			if end < 0 {
				return nil, fmt.Errorf("document: unterminated index in path %q", s)
			}
			n, err := strconv.Atoi(s[pos+1 : pos+end])
			if err != nil {
				return nil, fmt.Errorf("document: bad index in path %q: %w", s, err)
			}
			p = append(p, Step{Kind: StepIndex, Idx: n})
			pos += end + 1
		default:
			if !first {
				if s[pos] != '.' {
					return nil, fmt.Errorf("document: expected '.' at offset %d in path %q", pos, s)
				}
				pos++
			}
			step, n, err := parseNameStep(s[pos:])
			if err != nil {
				return nil, fmt.Errorf("document: %w in path %q", err, s)
			}
			p = append(p, step)
			pos += n
		}
		first = false
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("document: empty path")
	}
	return p, nil
}

// parseNameStep consumes one key, attribute or marker step from the head
// of s and returns the byte count consumed.
func parseNameStep(s string) (Step, int, error) {
	if s == "" {
		return Step{}, 0, fmt.Errorf("empty path step")
	}
	if s[0] == '@' {
		// Marker or instance variable.
		raw, n := scanName(s)
		if len(raw) < 2 {
			return Step{}, 0, fmt.Errorf("empty attribute step")
		}
		name := raw[1:]
		switch {
		case name == "JSON":
			return Step{Kind: StepJSON}, n, nil
		case strings.HasPrefix(name, "JS{") && strings.HasSuffix(name, "}"):
			idx, err := strconv.Atoi(name[3 : len(name)-1])
			if err != nil {
				return Step{}, 0, fmt.Errorf("bad @JS marker %q", raw)
			}
			return Step{Kind: StepJS, Idx: idx}, n, nil
		case strings.HasPrefix(name, "MERGE{") && strings.HasSuffix(name, "}"):
			idx, err := strconv.Atoi(name[6 : len(name)-1])
			if err != nil {
				return Step{}, 0, fmt.Errorf("bad @MERGE marker %q", raw)
			}
			return Step{Kind: StepMerge, Idx: idx}, n, nil
		case strings.HasPrefix(name, "TAG{") && strings.HasSuffix(name, "}"):
			idx, err := strconv.Atoi(name[4 : len(name)-1])
			if err != nil {
				return Step{}, 0, fmt.Errorf("bad @TAG marker %q", raw)
			}
			return Step{Kind: StepTag, Idx: idx}, n, nil
		default:
			return Step{Kind: StepAttr, Key: name}, n, nil
		}
	}
	raw, n := scanName(s)
	if raw == "" {
		return Step{}, 0, fmt.Errorf("empty path step")
	}
	key, err := unescapeKey(raw)
	if err != nil {
		return Step{}, 0, err
	}
	return Step{Kind: StepKey, Key: key}, n, nil
}

// scanName reads up to the next unescaped "." or "[".
func scanName(s string) (string, int) {
	i := 0
	for i < len(s) {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				i = len(s)
			} else {
				i += 2
			}
		case '.', '[':
			return s[:i], i
		default:
			i++
		}
	}
	return s[:i], i
}

func unescapeKey(raw string) (string, error) {
	if !strings.ContainsRune(raw, '\\') {
		return raw, nil
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' {
			i++
			if i >= len(raw) {
				return "", fmt.Errorf("trailing escape in key %q", raw)
			}
		}
		b.WriteByte(raw[i])
	}
	return b.String(), nil
}
