package placeholder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectRestoreRoundTrip(t *testing.T) {
	texts := []string{
		`\C[1]こんにちは\C[0]、\N[1]さん!`,
		`Gold: \G \{big\} \\ done`,
		`<center>Title</center><br>next<icon:12>`,
		`Reward: #{gold} gold`,
		`\AB<windy day> mixed <color=#ff0000>red</color>`,
		"no codes at all",
		"",
	}
	for _, text := range texts {
		protected, m := Protect(text)
		assert.Equal(t, text, m.Restore(protected), "text %q", text)
	}
}

func TestProtectTokensAndSpans(t *testing.T) {
	text := `\C[1]Hello\N[2]`
	protected, m := Protect(text)
	assert.Equal(t, "〖0〗Hello〖1〗", protected)
	assert.Equal(t, 2, m.Len())
	// Protected text contains no residual control codes.
	assert.Empty(t, codeCounts(protected))
}

func TestProtectLeavesPlainText(t *testing.T) {
	protected, m := Protect("just words")
	assert.Equal(t, "just words", protected)
	assert.Equal(t, 0, m.Len())
}

func TestRestoreMangledTokens(t *testing.T) {
	text := `\C[1]はい\C[0]`
	_, m := Protect(text)
	// The translator rewrote 〖0〗 as [0] and 〖1〗 as ( 1 ).
	got := m.Restore("[0]Yes( 1 )")
	assert.Equal(t, `\C[1]Yes\C[0]`, got)
}

func TestValidateMultiset(t *testing.T) {
	assert.NoError(t, Validate(`\C[1]a\C[1]b`, `x\C[1]y\C[1]`))

	err := Validate(`\C[1]a\C[1]`, `\C[1]only one`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCodeMismatch))
	var mm *MismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, []string{`\C[1]`}, mm.Missing)
	assert.Empty(t, mm.Extra)

	err = Validate("plain", `plain\V[3]`)
	require.Error(t, err)
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, []string{`\V[3]`}, mm.Extra)
}

func TestRepairPrefixSuffix(t *testing.T) {
	original := `\C[1]Hello\N[2]`
	repaired, err := Repair(original, "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, `\C[1]Bonjour\N[2]`, repaired)
	assert.NoError(t, Validate(original, repaired))
}

func TestRepairKeepsSurvivors(t *testing.T) {
	original := `\C[1]Hi\C[0]`
	// Suffix survived, prefix was lost.
	repaired, err := Repair(original, `Salut\C[0]`)
	require.NoError(t, err)
	assert.Equal(t, `\C[1]Salut\C[0]`, repaired)
}

func TestRepairPrefixChainOrder(t *testing.T) {
	original := `\C[1]\V[2]Text`
	repaired, err := Repair(original, "Texte")
	require.NoError(t, err)
	assert.Equal(t, `\C[1]\V[2]Texte`, repaired)
}

func TestRepairInlineNeighbor(t *testing.T) {
	original := `Have \V[1]\G now`
	// \G lost, its neighbor \V[1] survived.
	repaired, err := Repair(original, `Tiens \V[1] maintenant`)
	require.NoError(t, err)
	assert.NoError(t, Validate(original, repaired))
	assert.Contains(t, repaired, `\V[1]\G`)
}

func TestRepairGivesUpOnMidTextCode(t *testing.T) {
	original := `Go \C[2]north\C[0] now`
	_, err := Repair(original, "Allez au nord maintenant")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCodeMismatch))
}

func TestRepairNothingMissing(t *testing.T) {
	original := `\C[1]ok`
	out, err := Repair(original, `\C[1]bien`)
	require.NoError(t, err)
	assert.Equal(t, `\C[1]bien`, out)
}
