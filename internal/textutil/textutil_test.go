package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsCJK(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"hello world", false},
		{"これはテストです", true},
		{"千の言葉", true},
		{"한국어", true},
		{"mixed テキスト here", true},
		{"", false},
		{"Ünïcödé but not CJK", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ContainsCJK(c.in), "input %q", c.in)
	}
}

func TestHashStable(t *testing.T) {
	a := Hash("こんにちは")
	b := Hash("こんにちは")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Hash("こんばんは"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a\nb", Normalize("a\r\nb"))
	assert.Equal(t, "a\nb", Normalize("  a\rb\n"))
	assert.Equal(t, "", Normalize(" \t\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	// Rune-aware: never slices a multibyte character in half.
	assert.Equal(t, "こん...", Truncate("こんにちは", 2))
}
