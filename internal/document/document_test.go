package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTripIdentity(t *testing.T) {
	cases := []string{
		`{}`,
		`[]`,
		`null`,
		`[null,{"id":1,"name":"アレックス","note":""}]`,
		"[\n  1,\n  2.5,\n  -3e2,\n  true,\n  false,\n  null\n]",
		`{"a":"b","nested":{"list":[1,[2,[3]]]},"s":"line\nbreak\t\"q\""}`,
		`{"u":"あ😀"}`,
		"  {  \"spaced\" :  [ 1 ,  2 ]  }  ",
	}
	for _, src := range cases {
		doc, err := Load([]byte(src), FormatJSON)
		require.NoError(t, err, "input %q", src)
		assert.Equal(t, src, string(doc.Dump()), "unmodified dump must match input")
	}
}

func TestJSONDecodeValues(t *testing.T) {
	src := `{"code":401,"rate":1.5,"ok":true,"name":"ハロルド","items":["a","b"]}`
	doc, err := Load([]byte(src), FormatJSON)
	require.NoError(t, err)

	root := doc.Root
	require.Equal(t, KindMap, root.Kind)
	assert.Equal(t, int64(401), root.Field("code").Int)
	assert.Equal(t, 1.5, root.Field("rate").Float)
	assert.True(t, root.Field("ok").Bool)
	assert.Equal(t, "ハロルド", root.Field("name").Str)
	require.Equal(t, 2, root.Field("items").Len())
	assert.Equal(t, "b", root.Field("items").Index(1).Str)
	assert.Nil(t, root.Field("missing"))
}

func TestJSONStringEscapes(t *testing.T) {
	src := `{"s":"a\"b\\c\/d\n\tA"}`
	doc, err := Load([]byte(src), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "a\"b\\c/d\n\tA", doc.Root.Field("s").Str)
	assert.Equal(t, src, string(doc.Dump()))
}

func TestJSONSetStringSplice(t *testing.T) {
	src := `{"name":"old","x":1,"desc":"keep"}`
	doc, err := Load([]byte(src), FormatJSON)
	require.NoError(t, err)

	require.NoError(t, doc.SetString(doc.Root.Field("name"), "新\"line\n"))
	got := string(doc.Dump())
	assert.Equal(t, `{"name":"新\"line\n","x":1,"desc":"keep"}`, got)

	// The spliced output must itself decode back to the new value.
	doc2, err := Load([]byte(got), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "新\"line\n", doc2.Root.Field("name").Str)
	assert.Equal(t, "keep", doc2.Root.Field("desc").Str)
}

func TestJSONMultipleEdits(t *testing.T) {
	src := `["first","second","third"]`
	doc, err := Load([]byte(src), FormatJSON)
	require.NoError(t, err)

	require.NoError(t, doc.SetString(doc.Root.Index(0), "a much longer replacement"))
	require.NoError(t, doc.SetString(doc.Root.Index(2), "x"))
	assert.Equal(t, `["a much longer replacement","second","x"]`, string(doc.Dump()))
}

func TestJSONSetStringLastWins(t *testing.T) {
	doc, err := Load([]byte(`["v"]`), FormatJSON)
	require.NoError(t, err)
	n := doc.Root.Index(0)
	require.NoError(t, doc.SetString(n, "one"))
	require.NoError(t, doc.SetString(n, "two"))
	assert.Equal(t, `["two"]`, string(doc.Dump()))
}

func TestJSONRejectsMalformed(t *testing.T) {
	for _, src := range []string{
		`{"a":}`,
		`[1,]`,
		`{"a":1`,
		`"unterminated`,
		`{"a":1} trailing`,
		`{'single':1}`,
	} {
		_, err := Load([]byte(src), FormatJSON)
		assert.Error(t, err, "input %q", src)
	}
}

func TestPluginJSRoundTrip(t *testing.T) {
	src := "// Generated by RPG Maker.\n// Do not edit!\nvar $plugins =\n[\n{\"name\":\"Foo\",\"status\":true,\"description\":\"説明文\",\"parameters\":{\"Msg\":\"こんにちは\"}}\n];\n"
	doc, err := Load([]byte(src), FormatPluginJS)
	require.NoError(t, err)
	assert.Equal(t, src, string(doc.Dump()))

	entry := doc.Root.Index(0)
	require.NotNil(t, entry)
	assert.Equal(t, "説明文", entry.Field("description").Str)

	require.NoError(t, doc.SetString(entry.Field("parameters").Field("Msg"), "Hello"))
	out := string(doc.Dump())
	assert.Contains(t, out, "// Generated by RPG Maker.\n")
	assert.Contains(t, out, `"Msg":"Hello"`)
	assert.Contains(t, out, "];\n")
}

func TestPluginJSMissingHeader(t *testing.T) {
	_, err := Load([]byte(`[{"name":"Foo"}]`), FormatPluginJS)
	assert.Error(t, err)
}

func TestSetStringRejectsNonStrings(t *testing.T) {
	doc, err := Load([]byte(`{"n":5}`), FormatJSON)
	require.NoError(t, err)
	assert.Error(t, doc.SetString(doc.Root.Field("n"), "x"))
}

func TestFormatForExt(t *testing.T) {
	f, ok := FormatForExt(".json")
	assert.True(t, ok)
	assert.Equal(t, FormatJSON, f)
	f, ok = FormatForExt(".rvdata2")
	assert.True(t, ok)
	assert.Equal(t, FormatMarshal, f)
	_, ok = FormatForExt(".txt")
	assert.False(t, ok)
}
