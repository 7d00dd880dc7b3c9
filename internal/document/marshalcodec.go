package document

import (
	"fmt"
	"strconv"
)

// Ruby Marshal 4.8 decoder. Only string tokens are ever rewritten; every
// back-reference in the format addresses the object and symbol tables by
// index rather than by byte offset, so splicing a longer string token
// into the source leaves all links valid.

const (
	marshalMajor = 0x04
	marshalMinor = 0x08
)

type marshalDecoder struct {
	src     []byte
	pos     int
	objects []*Node
	symbols []string
}

func decodeMarshal(data []byte) (*Document, error) {
	if len(data) < 2 || data[0] != marshalMajor || data[1] != marshalMinor {
		return nil, fmt.Errorf("document: not Marshal 4.8 data")
	}
	d := &marshalDecoder{src: data, pos: 2}
	root, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.src) {
		return nil, fmt.Errorf("document: trailing bytes after Marshal root at offset %d", d.pos)
	}
	return &Document{Root: root, Format: FormatMarshal, src: data}, nil
}

func (d *marshalDecoder) readByte() (byte, error) {
	if d.pos >= len(d.src) {
		return 0, fmt.Errorf("document: unexpected end of Marshal data at offset %d", d.pos)
	}
	b := d.src[d.pos]
	d.pos++
	return b, nil
}

func (d *marshalDecoder) readBytes(n int64) ([]byte, error) {
	if n < 0 || d.pos+int(n) > len(d.src) {
		return nil, fmt.Errorf("document: truncated Marshal data at offset %d (want %d bytes)", d.pos, n)
	}
	b := d.src[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}

// readLong decodes Marshal's packed integer form: 0 is a single zero
// byte, small values are offset by five into one byte, and larger values
// carry a signed length byte followed by that many little-endian bytes.
func (d *marshalDecoder) readLong() (int64, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	c := int64(int8(b))
	switch {
	case c == 0:
		return 0, nil
	case c > 4:
		return c - 5, nil
	case c < -4:
		return c + 5, nil
	}
	n := c
	if n < 0 {
		n = -n
	}
	raw, err := d.readBytes(n)
	if err != nil {
		return 0, err
	}
	if c > 0 {
		var x int64
		for i := int64(0); i < n; i++ {
			x |= int64(raw[i]) << (8 * i)
		}
		return x, nil
	}
	x := int64(-1)
	for i := int64(0); i < n; i++ {
		x &^= int64(0xff) << (8 * i)
		x |= int64(raw[i]) << (8 * i)
	}
	return x, nil
}

// appendMarshalLong is the inverse of readLong.
func appendMarshalLong(dst []byte, x int64) []byte {
	switch {
	case x == 0:
		return append(dst, 0)
	case 0 < x && x < 123:
		return append(dst, byte(x+5))
	case -124 < x && x < 0:
		return append(dst, byte(int8(x-5)))
	}
	var buf [9]byte
	var n int8
	for i := 1; i <= 8; i++ {
		buf[i] = byte(x & 0xff)
		x >>= 8
		if x == 0 {
			n = int8(i)
			break
		}
		if x == -1 {
			n = int8(-i)
			break
		}
	}
	buf[0] = byte(n)
	if n < 0 {
		n = -n
	}
	return append(dst, buf[:n+1]...)
}

// appendMarshalString encodes s as a raw string token. Any instance
// variable section (such as the UTF-8 encoding flag) sits outside the
// token and is untouched by splicing.
func appendMarshalString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	dst = appendMarshalLong(dst, int64(len(s)))
	return append(dst, s...)
}

func (d *marshalDecoder) register(n *Node) *Node {
	d.objects = append(d.objects, n)
	return n
}

// readSymbol reads a value and requires it to be a symbol.
func (d *marshalDecoder) readSymbol() (string, error) {
	n, err := d.value()
	if err != nil {
		return "", err
	}
	if n.Kind != KindSymbol {
		return "", fmt.Errorf("document: expected symbol, got %s at offset %d", n.Kind, d.pos)
	}
	return n.Str, nil
}

func (d *marshalDecoder) value() (*Node, error) {
	t, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch t {
	case '0':
		return &Node{Kind: KindNull}, nil
	case 'T':
		return &Node{Kind: KindBool, Bool: true}, nil
	case 'F':
		return &Node{Kind: KindBool}, nil
	case 'i':
		v, err := d.readLong()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindNumber, Int: v, Float: float64(v)}, nil
	case '"':
		start := d.pos - 1
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		raw, err := d.readBytes(n)
		if err != nil {
			return nil, err
		}
		node := &Node{Kind: KindString, Str: string(raw), Span: Span{Start: start, End: d.pos}}
		return d.register(node), nil
	case ':':
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		raw, err := d.readBytes(n)
		if err != nil {
			return nil, err
		}
		name := string(raw)
		d.symbols = append(d.symbols, name)
		return &Node{Kind: KindSymbol, Str: name}, nil
	case ';':
		idx, err := d.readLong()
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(d.symbols) {
			return nil, fmt.Errorf("document: symbol link %d out of range", idx)
		}
		return &Node{Kind: KindSymbol, Str: d.symbols[idx]}, nil
	case '@':
		idx, err := d.readLong()
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(d.objects) {
			return nil, fmt.Errorf("document: object link %d out of range", idx)
		}
		return d.objects[idx], nil
	case 'I':
		return d.ivarValue()
	case '[':
		node := d.register(&Node{Kind: KindList})
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < n; i++ {
			el, err := d.value()
			if err != nil {
				return nil, err
			}
			node.Items = append(node.Items, el)
		}
		return node, nil
	case '{', '}':
		node := d.register(&Node{Kind: KindMap})
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < n; i++ {
			k, err := d.value()
			if err != nil {
				return nil, err
			}
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			node.Keys = append(node.Keys, k)
			node.Vals = append(node.Vals, v)
		}
		if t == '}' {
			def, err := d.value()
			if err != nil {
				return nil, err
			}
			node.Default = def
		}
		return node, nil
	case 'o':
		cls, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		// Registered before its instance variables so self-references
		// inside them resolve.
		node := d.register(&Node{Kind: KindObject, Class: cls})
		if err := d.readPairs(node); err != nil {
			return nil, err
		}
		return node, nil
	case 'S':
		cls, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		node := d.register(&Node{Kind: KindObject, Class: cls})
		if err := d.readPairs(node); err != nil {
			return nil, err
		}
		return node, nil
	case 'u':
		cls, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		raw, err := d.readBytes(n)
		if err != nil {
			return nil, err
		}
		return d.register(&Node{Kind: KindBlob, Class: cls, Str: string(raw)}), nil
	case 'U':
		cls, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		node := d.register(&Node{Kind: KindObject, Class: cls})
		inner, err := d.value()
		if err != nil {
			return nil, err
		}
		node.Items = []*Node{inner}
		return node, nil
	case 'f':
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		raw, err := d.readBytes(n)
		if err != nil {
			return nil, err
		}
		node := &Node{Kind: KindNumber, Str: string(raw)}
		if f, err := strconv.ParseFloat(node.Str, 64); err == nil {
			node.Float = f
			node.Int = int64(f)
		}
		return d.register(node), nil
	case 'l':
		sign, err := d.readByte()
		if err != nil {
			return nil, err
		}
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		raw, err := d.readBytes(2 * n)
		if err != nil {
			return nil, err
		}
		node := &Node{Kind: KindNumber, Str: string(raw)}
		if n <= 3 {
			var x int64
			for i := len(raw) - 1; i >= 0; i-- {
				x = x<<8 | int64(raw[i])
			}
			if sign == '-' {
				x = -x
			}
			node.Int = x
			node.Float = float64(x)
		}
		return d.register(node), nil
	case 'c', 'm', 'M':
		n, err := d.readLong()
		if err != nil {
			return nil, err
		}
		raw, err := d.readBytes(n)
		if err != nil {
			return nil, err
		}
		return d.register(&Node{Kind: KindBlob, Class: "Class", Str: string(raw)}), nil
	case 'e':
		if _, err := d.readSymbol(); err != nil {
			return nil, err
		}
		return d.value()
	case 'C':
		cls, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		inner, err := d.value()
		if err != nil {
			return nil, err
		}
		inner.Class = cls
		return inner, nil
	default:
		return nil, fmt.Errorf("document: unsupported Marshal type %q at offset %d", t, d.pos-1)
	}
}

// ivarValue reads an instance-variable wrapped value. The wrapped value
// registers itself; the variables attach to it afterwards, which matches
// the reference implementation's table order.
func (d *marshalDecoder) ivarValue() (*Node, error) {
	inner, err := d.value()
	if err != nil {
		return nil, err
	}
	n, err := d.readLong()
	if err != nil {
		return nil, err
	}
	for i := int64(0); i < n; i++ {
		name, err := d.readSymbol()
		if err != nil {
			return nil, err
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		inner.Keys = append(inner.Keys, &Node{Kind: KindSymbol, Str: name})
		inner.Vals = append(inner.Vals, val)
	}
	return inner, nil
}

// readPairs reads a counted list of symbol/value pairs into node.
func (d *marshalDecoder) readPairs(node *Node) error {
	n, err := d.readLong()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		name, err := d.readSymbol()
		if err != nil {
			return err
		}
		val, err := d.value()
		if err != nil {
			return err
		}
		node.Keys = append(node.Keys, &Node{Kind: KindSymbol, Str: name})
		node.Vals = append(node.Vals, val)
	}
	return nil
}
