package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathString(t *testing.T) {
	p := Path{}.Key("events").Index(12).Key("pages").Index(0).Key("list").Index(3).Key("parameters").Index(0)
	assert.Equal(t, "events[12].pages[0].list[3].parameters[0]", p.String())

	p = Path{}.Index(5).Attr("name")
	assert.Equal(t, "[5].@name", p.String())

	p = Path{}.Key("parameters").Key("Msg").JSON().Key("text")
	assert.Equal(t, "parameters.Msg.@JSON.text", p.String())

	p = Path{}.Key("list").Index(7).Key("parameters").Index(0).Merge(3).JS(1)
	assert.Equal(t, "list[7].parameters[0].@MERGE{3}.@JS{1}", p.String())

	p = Path{}.Key("note").Tag(2)
	assert.Equal(t, "note.@TAG{2}", p.String())
}

func TestPathStringEscaping(t *testing.T) {
	p := Path{}.Key("a.b").Key("c[0]").Key("@odd").Key(`back\slash`)
	s := p.String()
	assert.Equal(t, `a\.b.c\[0].\@odd.back\\slash`, s)

	back, err := ParsePath(s)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestPathParseRoundTrip(t *testing.T) {
	paths := []Path{
		Path{}.Key("events").Index(1).Key("name"),
		Path{}.Index(0).Attr("display_name"),
		Path{}.Key("p").JSON().JSON().Key("deep"),
		Path{}.Key("list").Index(2).Key("parameters").Index(0).Merge(4),
		Path{}.Key("list").Index(2).Key("parameters").Index(0).Merge(4).JS(0),
		Path{}.Key("note").Tag(0),
		Path{}.Attr("events").Index(9).Attr("pages").Index(1).Attr("list").Index(0).Attr("parameters").Index(0),
	}
	for _, p := range paths {
		back, err := ParsePath(p.String())
		require.NoError(t, err, "path %q", p.String())
		assert.Equal(t, p, back, "path %q", p.String())
	}
}

func TestPathParseErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"a..b",
		"a[",
		"a[x]",
		"a.@JS{}",
		"a.@MERGE{x}",
	} {
		_, err := ParsePath(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestPathExtendDoesNotAlias(t *testing.T) {
	base := Path{}.Key("events").Index(1)
	a := base.Key("name")
	b := base.Key("note")
	assert.Equal(t, "events[1].name", a.String())
	assert.Equal(t, "events[1].note", b.String())
}
