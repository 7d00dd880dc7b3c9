// Package document models RPG Maker data files as navigable trees bound
// to their original byte form. Every string scalar remembers the byte
// span of its encoded token, so edits are spliced into the source bytes
// instead of re-serializing the whole tree. A document with no staged
// edits dumps byte-for-byte identical to its input.
package document

import (
	"fmt"
	"sort"
)

// Kind identifies the value class of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSymbol
	KindList
	KindMap
	KindObject
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	case KindBlob:
		return "blob"
	}
	return "unknown"
}

// Span is a half-open byte range [Start, End) into a document's source.
type Span struct {
	Start int
	End   int
}

// Len returns the byte length of the span.
func (s Span) Len() int { return s.End - s.Start }

// Node is one decoded value. Maps and Ruby objects both use the parallel
// Keys/Vals slices so field access works the same for either; object keys
// are symbol nodes holding the instance variable name.
type Node struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string // string value, symbol name, or raw numeric/blob payload
	Class string // Ruby class name for objects, structs and blobs

	Items []*Node // list elements
	Keys  []*Node // map/object keys, parallel to Vals
	Vals  []*Node

	// Default holds a Ruby hash's default value when one was serialized.
	Default *Node

	// Span is the byte range of the encoded scalar token, set only for
	// strings read from source.
	Span Span
}

// IsString reports whether n is a string scalar.
func (n *Node) IsString() bool {
	return n != nil && n.Kind == KindString
}

// Field returns the value stored under name in a map or object node.
// Instance variable names include their "@" prefix. Returns nil when the
// key is absent or n is not keyed.
func (n *Node) Field(name string) *Node {
	if n == nil {
		return nil
	}
	for i, k := range n.Keys {
		if k.Str == name {
			return n.Vals[i]
		}
	}
	return nil
}

// Index returns element i of a list node, or nil when out of range.
func (n *Node) Index(i int) *Node {
	if n == nil || n.Kind != KindList || i < 0 || i >= len(n.Items) {
		return nil
	}
	return n.Items[i]
}

// Len returns the element count of a list or the pair count of a keyed
// node.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	if n.Kind == KindList {
		return len(n.Items)
	}
	return len(n.Keys)
}

// Format identifies the wire form of a document.
type Format uint8

const (
	// FormatJSON is a plain UTF-8 JSON file.
	FormatJSON Format = iota
	// FormatPluginJS is a plugins.js file: a JSON array wrapped in a
	// "var $plugins = ...;" assignment.
	FormatPluginJS
	// FormatMarshal is Ruby Marshal 4.8 binary data.
	FormatMarshal
)

// FormatForExt maps a file extension (with dot, lower case) to its
// document format. ok is false for unsupported extensions.
func FormatForExt(ext string) (Format, bool) {
	switch ext {
	case ".json":
		return FormatJSON, true
	case ".js":
		return FormatPluginJS, true
	case ".rvdata2", ".rvdata", ".rxdata":
		return FormatMarshal, true
	}
	return FormatJSON, false
}

// Document is one parsed game data file plus the source bytes needed to
// re-emit it.
type Document struct {
	Root   *Node
	Format Format

	src   []byte
	edits map[Span][]byte
}

// Load decodes data according to format.
func Load(data []byte, format Format) (*Document, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatPluginJS:
		return decodePluginJS(data)
	case FormatMarshal:
		return decodeMarshal(data)
	}
	return nil, fmt.Errorf("document: unknown format %d", format)
}

// SetString stages replacement text for a string node. The new token is
// spliced into the source bytes on Dump; the node's decoded value is
// updated immediately. Staging the same node twice keeps the last value.
func (d *Document) SetString(n *Node, text string) error {
	if !n.IsString() {
		return fmt.Errorf("document: cannot set text on %s node", n.Kind)
	}
	if n.Span.End <= n.Span.Start {
		return fmt.Errorf("document: string node has no source span")
	}
	var tok []byte
	switch d.Format {
	case FormatJSON, FormatPluginJS:
		tok = appendJSONString(nil, text)
	case FormatMarshal:
		tok = appendMarshalString(nil, text)
	}
	if d.edits == nil {
		d.edits = make(map[Span][]byte)
	}
	d.edits[n.Span] = tok
	n.Str = text
	return nil
}

// Modified reports whether any edits are staged.
func (d *Document) Modified() bool { return len(d.edits) > 0 }

// Dump re-emits the document. With no staged edits the output is the
// original input, byte for byte.
func (d *Document) Dump() []byte {
	if len(d.edits) == 0 {
		out := make([]byte, len(d.src))
		copy(out, d.src)
		return out
	}
	spans := make([]Span, 0, len(d.edits))
	for s := range d.edits {
		spans = append(spans, s)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	out := make([]byte, 0, len(d.src)+256)
	last := 0
	for _, s := range spans {
		out = append(out, d.src[last:s.Start]...)
		out = append(out, d.edits[s]...)
		last = s.End
	}
	out = append(out, d.src[last:]...)
	return out
}
