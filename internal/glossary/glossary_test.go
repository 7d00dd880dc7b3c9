package glossary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
rules:
  - match: 勇者
    replace: Hero
  - match: '(\d+)ゴールド'
    replace: '$1 Gold'
    regex: true
  - match: Magic Stone
    replace: Mana Stone
    post: true
`

func TestParseAndApplyOrder(t *testing.T) {
	g, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	got := g.Pre("勇者は100ゴールドを手に入れた")
	assert.Equal(t, "Heroは100 Goldを手に入れた", got)
}

func TestRulesSeeEarlierOutput(t *testing.T) {
	g, err := Parse([]byte(`
rules:
  - match: aa
    replace: bb
  - match: bbb
    replace: ccc
`))
	require.NoError(t, err)
	// First rule turns "aab" into "bbb", which the second rule then sees.
	assert.Equal(t, "ccc", g.Pre("aab"))
}

func TestPostPassLiteralOnly(t *testing.T) {
	g, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	// Post applies only the post-marked literal rule.
	assert.Equal(t, "Found a Mana Stone!", g.Post("Found a Magic Stone!"))
	// Pre ignores post rules.
	assert.Equal(t, "Magic Stone", g.Pre("Magic Stone"))
}

func TestRegexBackrefs(t *testing.T) {
	g, err := Parse([]byte(`
rules:
  - match: '(\w+)の剣'
    replace: 'Sword of $1'
    regex: true
`))
	require.NoError(t, err)
	assert.Equal(t, "Sword of fire", g.Pre("fireの剣"))
}

func TestDeterministic(t *testing.T) {
	g, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	in := "勇者が勇者に10ゴールド"
	first := g.Pre(in)
	assert.Equal(t, first, g.Pre(in))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - match: '['\n    replace: x\n    regex: true\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("rules:\n  - replace: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("not yaml: ["))
	assert.Error(t, err)
}

func TestNilGlossaryPassesThrough(t *testing.T) {
	var g *Glossary
	assert.Equal(t, "text", g.Pre("text"))
	assert.Equal(t, "text", g.Post("text"))
	assert.Equal(t, 0, g.Len())

	out, gs := g.PreGuarded("text")
	assert.Equal(t, "text", out)
	assert.Equal(t, 0, gs.Len())
}

func TestPreGuardedProtectsTerms(t *testing.T) {
	g, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	out, gs := g.PreGuarded("勇者は強い")
	assert.Equal(t, "〈TERM_0〉は強い", out)
	require.Equal(t, 1, gs.Len())
	assert.Equal(t, "Hero is strong", gs.Restore("〈TERM_0〉 is strong"))
}

func TestPreGuardedSharesTokenForRepeatedTerm(t *testing.T) {
	g, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	out, gs := g.PreGuarded("勇者と勇者")
	assert.Equal(t, "〈TERM_0〉と〈TERM_0〉", out)
	assert.Equal(t, 1, gs.Len())
	assert.Equal(t, "Hero and Hero", gs.Restore("〈TERM_0〉 and 〈TERM_0〉"))
}

func TestPreGuardedRegexExpandsPerMatch(t *testing.T) {
	g, err := Parse([]byte(`
rules:
  - match: '(\d+)ゴールド'
    replace: '$1 Gold'
    regex: true
`))
	require.NoError(t, err)

	out, gs := g.PreGuarded("100ゴールドと250ゴールド")
	assert.Equal(t, "〈TERM_0〉と〈TERM_1〉", out)
	require.Equal(t, 2, gs.Len())
	assert.Equal(t, "100 Gold and 250 Gold", gs.Restore("〈TERM_0〉 and 〈TERM_1〉"))
}

func TestGuardRestoreToleratesMangling(t *testing.T) {
	g, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	_, gs := g.PreGuarded("勇者")
	require.Equal(t, 1, gs.Len())

	assert.Equal(t, "Hero!", gs.Restore("<TERM_0>!"))
	assert.Equal(t, "Hero!", gs.Restore("〈 term_0 〉!"))
	assert.Equal(t, "Hero!", gs.Restore("(TERM 0)!"))
}

func TestGuardIndexesDoNotCollide(t *testing.T) {
	rules := "rules:\n"
	for i := 0; i < 13; i++ {
		rules += "  - match: w" + string(rune('a'+i)) + "\n    replace: t" + string(rune('a'+i)) + "\n"
	}
	g, err := Parse([]byte(rules))
	require.NoError(t, err)

	out, gs := g.PreGuarded("wb wm")
	assert.Equal(t, "〈TERM_0〉 〈TERM_1〉", out)
	// A mangled TERM_1 must not eat the 2 of a TERM_12 remnant.
	assert.Equal(t, "tm <TERM_12>", gs.Restore("<TERM_1> <TERM_12>"))
}
