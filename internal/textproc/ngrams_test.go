package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNGrams(t *testing.T) {
	tokens := []string{"a", "b", "c"}

	assert.Equal(t, []string{"a", "b", "c", "a b", "b c"}, NGrams(tokens, 1, 2))
	assert.Equal(t, []string{"a b", "b c", "a b c"}, NGrams(tokens, 2, 5))
	assert.Equal(t, []string{}, NGrams(tokens, 4, 5))
	assert.Equal(t, []string{}, NGrams(nil, 1, 3))
	assert.Equal(t, []string{}, NGrams(tokens, 3, 2))
}

func TestLongestNGram(t *testing.T) {
	cases := []struct {
		name string
		seq  []string
		want string
		ok   bool
	}{
		{"empty", nil, "", false},
		{"single", []string{"run"}, "run", true},
		{"generated order", NGrams([]string{"sad", "bale", "trudg"}, 1, 2), "bale trudg", true},
		{"unordered", []string{"x y z", "a", "b c"}, "x y z", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := LongestNGram(tc.seq)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLongestNGramMatchesLastGenerated(t *testing.T) {
	seq := NGrams([]string{"one", "two", "three", "four"}, 1, 3)
	got, ok := LongestNGram(seq)
	assert.True(t, ok)
	assert.Equal(t, seq[len(seq)-1], got)
}
