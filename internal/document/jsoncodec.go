package document

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

// The JSON decoder is hand-rolled because encoding/json does not expose
// byte offsets, and splicing edits back into the source requires the
// exact span of every string token.

type jsonDecoder struct {
	src []byte
	pos int
}

func decodeJSON(data []byte) (*Document, error) {
	d := &jsonDecoder{src: data}
	d.skipSpace()
	root, err := d.value()
	if err != nil {
		return nil, err
	}
	d.skipSpace()
	if d.pos != len(d.src) {
		return nil, fmt.Errorf("document: trailing data at offset %d", d.pos)
	}
	return &Document{Root: root, Format: FormatJSON, src: data}, nil
}

// pluginsHeader matches the assignment that wraps the JSON payload of an
// RPG Maker plugins.js file. Everything before and after the payload is
// carried through Dump untouched.
var pluginsHeader = regexp.MustCompile(`var\s+\$plugins\s*=`)

func decodePluginJS(data []byte) (*Document, error) {
	loc := pluginsHeader.FindIndex(data)
	if loc == nil {
		return nil, fmt.Errorf("document: no $plugins assignment found")
	}
	d := &jsonDecoder{src: data, pos: loc[1]}
	d.skipSpace()
	root, err := d.value()
	if err != nil {
		return nil, err
	}
	return &Document{Root: root, Format: FormatPluginJS, src: data}, nil
}

func (d *jsonDecoder) skipSpace() {
	for d.pos < len(d.src) {
		switch d.src[d.pos] {
		case ' ', '\t', '\n', '\r':
			d.pos++
		default:
			return
		}
	}
}

func (d *jsonDecoder) value() (*Node, error) {
	if d.pos >= len(d.src) {
		return nil, fmt.Errorf("document: unexpected end of JSON at offset %d", d.pos)
	}
	switch c := d.src[d.pos]; {
	case c == '{':
		return d.object()
	case c == '[':
		return d.array()
	case c == '"':
		return d.stringNode()
	case c == 't':
		return d.literal("true", &Node{Kind: KindBool, Bool: true})
	case c == 'f':
		return d.literal("false", &Node{Kind: KindBool})
	case c == 'n':
		return d.literal("null", &Node{Kind: KindNull})
	case c == '-' || (c >= '0' && c <= '9'):
		return d.number()
	default:
		return nil, fmt.Errorf("document: unexpected character %q at offset %d", c, d.pos)
	}
}

func (d *jsonDecoder) literal(lit string, n *Node) (*Node, error) {
	if d.pos+len(lit) > len(d.src) || string(d.src[d.pos:d.pos+len(lit)]) != lit {
		return nil, fmt.Errorf("document: malformed literal at offset %d", d.pos)
	}
	d.pos += len(lit)
	return n, nil
}

func (d *jsonDecoder) object() (*Node, error) {
	n := &Node{Kind: KindMap}
	d.pos++ // '{'
	d.skipSpace()
	if d.pos < len(d.src) && d.src[d.pos] == '}' {
		d.pos++
		return n, nil
	}
	for {
		d.skipSpace()
		if d.pos >= len(d.src) || d.src[d.pos] != '"' {
			return nil, fmt.Errorf("document: expected object key at offset %d", d.pos)
		}
		key, err := d.stringNode()
		if err != nil {
			return nil, err
		}
		d.skipSpace()
		if d.pos >= len(d.src) || d.src[d.pos] != ':' {
			return nil, fmt.Errorf("document: expected ':' at offset %d", d.pos)
		}
		d.pos++
		d.skipSpace()
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		n.Keys = append(n.Keys, key)
		n.Vals = append(n.Vals, val)
		d.skipSpace()
		if d.pos >= len(d.src) {
			return nil, fmt.Errorf("document: unterminated object at offset %d", d.pos)
		}
		switch d.src[d.pos] {
		case ',':
			d.pos++
		case '}':
			d.pos++
			return n, nil
		default:
			return nil, fmt.Errorf("document: expected ',' or '}' at offset %d", d.pos)
		}
	}
}

func (d *jsonDecoder) array() (*Node, error) {
	n := &Node{Kind: KindList}
	d.pos++ // '['
	d.skipSpace()
	if d.pos < len(d.src) && d.src[d.pos] == ']' {
		d.pos++
		return n, nil
	}
	for {
		d.skipSpace()
		el, err := d.value()
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, el)
		d.skipSpace()
		if d.pos >= len(d.src) {
			return nil, fmt.Errorf("document: unterminated array at offset %d", d.pos)
		}
		switch d.src[d.pos] {
		case ',':
			d.pos++
		case ']':
			d.pos++
			return n, nil
		default:
			return nil, fmt.Errorf("document: expected ',' or ']' at offset %d", d.pos)
		}
	}
}

func (d *jsonDecoder) stringNode() (*Node, error) {
	start := d.pos
	d.pos++ // opening quote
	var buf []byte
	for {
		if d.pos >= len(d.src) {
			return nil, fmt.Errorf("document: unterminated string at offset %d", start)
		}
		c := d.src[d.pos]
		switch {
		case c == '"':
			d.pos++
			return &Node{Kind: KindString, Str: string(buf), Span: Span{Start: start, End: d.pos}}, nil
		case c == '\\':
			r, err := d.escape()
			if err != nil {
				return nil, err
			}
			buf = utf8.AppendRune(buf, r)
		case c < 0x20:
			return nil, fmt.Errorf("document: raw control character in string at offset %d", d.pos)
		default:
			buf = append(buf, c)
			d.pos++
		}
	}
}

func (d *jsonDecoder) escape() (rune, error) {
	d.pos++ // backslash
	if d.pos >= len(d.src) {
		return 0, fmt.Errorf("document: unterminated escape at offset %d", d.pos)
	}
	c := d.src[d.pos]
	d.pos++
	switch c {
	case '"':
		return '"', nil
	case '\\':
		return '\\', nil
	case '/':
		return '/', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'u':
		r, err := d.hex4()
		if err != nil {
			return 0, err
		}
		if utf16.IsSurrogate(r) {
			if d.pos+1 < len(d.src) && d.src[d.pos] == '\\' && d.src[d.pos+1] == 'u' {
				d.pos += 2
				r2, err := d.hex4()
				if err != nil {
					return 0, err
				}
				if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
					return dec, nil
				}
				return utf8.RuneError, nil
			}
			return utf8.RuneError, nil
		}
		return r, nil
	default:
		return 0, fmt.Errorf("document: invalid escape \\%c at offset %d", c, d.pos-1)
	}
}

func (d *jsonDecoder) hex4() (rune, error) {
	if d.pos+4 > len(d.src) {
		return 0, fmt.Errorf("document: truncated \\u escape at offset %d", d.pos)
	}
	v, err := strconv.ParseUint(string(d.src[d.pos:d.pos+4]), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("document: bad \\u escape at offset %d", d.pos)
	}
	d.pos += 4
	return rune(v), nil
}

func (d *jsonDecoder) number() (*Node, error) {
	start := d.pos
	for d.pos < len(d.src) {
		c := d.src[d.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			d.pos++
			continue
		}
		break
	}
	raw := string(d.src[start:d.pos])
	n := &Node{Kind: KindNumber, Str: raw}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("document: bad number %q at offset %d", raw, start)
	}
	n.Float = f
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		n.Int = i
	} else {
		n.Int = int64(f)
	}
	return n, nil
}

// appendJSONString encodes s as a JSON string token. Non-ASCII runes are
// emitted raw, matching how RPG Maker itself writes its data files.
func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for _, r := range s {
		switch r {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			if r < 0x20 {
				dst = append(dst, fmt.Sprintf("\\u%04x", r)...)
			} else {
				dst = utf8.AppendRune(dst, r)
			}
		}
	}
	return append(dst, '"')
}
