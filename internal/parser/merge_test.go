package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResplitLines(t *testing.T) {
	cases := []struct {
		name string
		body string
		n    int
		want []string
	}{
		{"exact fit", "a\nb", 2, []string{"a", "b"}},
		{"surplus folds into last", "a\nb\nc", 2, []string{"a", "b\nc"}},
		{"missing pads empty", "a", 3, []string{"a", "", ""}},
		{"single record", "a\nb", 1, []string{"a\nb"}},
		{"empty body", "", 2, []string{"", ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resplitLines(tc.body, tc.n))
		})
	}
}
