package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultNormalizer() *Normalizer {
	return New(Options{
		NgramMin:                 1,
		NgramMax:                 2,
		MinDashedWordsToParseURL: 4,
		ReincludedStopWords:      []string{"not"},
	})
}

func TestNormalizeStemsAndDropsStopWords(t *testing.T) {
	n := defaultNormalizer()

	tokens := n.Tokens("I love going hiking or rock climbing in the lake")
	assert.Equal(t, []string{"love", "go", "hike", "rock", "climb", "lake"}, tokens)

	tokens = n.Tokens("I love rocking a melody on my guitar")
	assert.Equal(t, []string{"love", "rock", "melodi", "guitar"}, tokens)
}

func TestNormalizeProducesAllNgramSizes(t *testing.T) {
	n := defaultNormalizer()
	seq := n.Normalize("hike rocks lake")
	assert.Equal(t, []string{"hike", "rock", "lake", "hike rock", "rock lake"}, seq)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := defaultNormalizer()
	texts := []string{
		"I'm worried about the vaccines. Can I have some information? \U0001f600",
		"πλέων ἐπὶ οἴνοπα πόντον ἐπ᾽ ἀλλοθρόους ἀνθρώπους",
		"see https://example.org/what-to-do-when-my-baby-has-a-fever now",
		"",
	}
	for _, text := range texts {
		first := n.Normalize(text)
		second := New(n.opts).Normalize(text)
		assert.Equal(t, first, second, text)
		assert.Equal(t, first, n.Normalize(text), text)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	n := defaultNormalizer()
	for _, text := range []string{"", "   ", "a the of", "?!..."} {
		seq := n.Normalize(text)
		require.NotNil(t, seq)
		assert.Empty(t, seq, text)
	}
}

func TestReincludedStopWords(t *testing.T) {
	with := defaultNormalizer()
	without := New(Options{NgramMin: 1, NgramMax: 2, MinDashedWordsToParseURL: 4})

	assert.Equal(t, []string{"not", "feel", "well"}, with.Tokens("I do not feel well"))
	assert.Equal(t, []string{"feel", "well"}, without.Tokens("I do not feel well"))
}

func TestContractionsExposeNegation(t *testing.T) {
	n := defaultNormalizer()
	assert.Equal(t, []string{"not", "feel", "well"}, n.Tokens("I don't feel well"))
	assert.Equal(t, []string{"not", "feel", "well"}, n.Tokens("I don’t feel well"))
}

func TestDashedURLExpansion(t *testing.T) {
	url := "https://www.health.org/what-to-do-baby-fever.html"

	n := defaultNormalizer()
	tokens := n.Tokens("read " + url)
	assert.Contains(t, tokens, "fever")
	assert.NotContains(t, tokens, "health")
	assert.NotContains(t, tokens, "html")

	strict := New(Options{NgramMin: 1, NgramMax: 1, MinDashedWordsToParseURL: 10})
	tokens = strict.Tokens("read " + url)
	assert.Contains(t, tokens, "health")
	assert.Contains(t, tokens, "fever")
}

func TestDashedNonURLStillSplits(t *testing.T) {
	n := defaultNormalizer()
	assert.Equal(t, []string{"well", "known", "lake"}, n.Tokens("well-known lake"))
}

func TestUnicodeFolding(t *testing.T) {
	n := defaultNormalizer()
	assert.Equal(t, n.Tokens("cafe"), n.Tokens("Café"))
	assert.Equal(t, n.Tokens("lake"), n.Tokens("ＬＡＫＥ"))
}

func TestNormalizeWithSpeller(t *testing.T) {
	n := New(Options{
		NgramMin:                 1,
		NgramMax:                 1,
		MinDashedWordsToParseURL: 4,
		Speller: NewSpellChecker(SpellOptions{
			Dictionary:  []string{"swimming", "diving"},
			MaxDistance: 2,
		}),
	})
	assert.Equal(t, []string{"swim", "dive"}, n.Normalize("swoming doving"))
}

func TestNormalizeSpellCorrectsStopWords(t *testing.T) {
	n := New(Options{
		NgramMin:                 1,
		NgramMax:                 2,
		MinDashedWordsToParseURL: 4,
		ReincludedStopWords:      []string{"not"},
		Speller: NewSpellChecker(SpellOptions{
			Dictionary:  []string{"not", "the", "fever"},
			MaxDistance: 1,
		}),
	})

	assert.Equal(t, []string{"not", "fever"}, n.Tokens("nott fevr"))
	assert.Contains(t, n.Normalize("nott fevr"), "not fever")

	// A correction that lands on a dropped stop word is dropped too.
	assert.Equal(t, []string{"fever"}, n.Tokens("thhe fevr"))
}

func TestNewClampsBounds(t *testing.T) {
	n := New(Options{NgramMin: 0, NgramMax: -1})
	assert.Equal(t, 1, n.NgramMin())
	assert.Equal(t, 1, n.NgramMax())
}
