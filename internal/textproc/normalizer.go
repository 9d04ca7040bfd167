// Package textproc turns raw message text into the normalized n-gram
// sequence that keyword rules are matched against.
package textproc

import (
	"strings"
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Options configures a Normalizer.
type Options struct {
	NgramMin                 int
	NgramMax                 int
	MinDashedWordsToParseURL int
	// ReincludedStopWords are kept even though they are stop words.
	ReincludedStopWords []string
	// Speller may be nil, in which case tokens are not spell corrected.
	Speller *SpellChecker
}

// Normalizer is immutable once built and safe for concurrent use. Equal
// Options give equal output for equal input.
type Normalizer struct {
	opts       Options
	reincluded map[string]struct{}
}

func New(opts Options) *Normalizer {
	if opts.NgramMin < 1 {
		opts.NgramMin = 1
	}
	if opts.NgramMax < opts.NgramMin {
		opts.NgramMax = opts.NgramMin
	}
	if opts.MinDashedWordsToParseURL < 1 {
		opts.MinDashedWordsToParseURL = 1
	}
	return &Normalizer{
		opts:       opts,
		reincluded: toSet(lowerAll(opts.ReincludedStopWords)),
	}
}

func (n *Normalizer) NgramMin() int { return n.opts.NgramMin }
func (n *Normalizer) NgramMax() int { return n.opts.NgramMax }

// Normalize runs the full pipeline and returns every n-gram of every
// configured size. Empty or stop-word-only text yields an empty sequence.
func (n *Normalizer) Normalize(text string) []string {
	return NGrams(n.Tokens(text), n.opts.NgramMin, n.opts.NgramMax)
}

// Tokens runs the pipeline up to, but not including, n-gram generation.
func (n *Normalizer) Tokens(text string) []string {
	text = expandDashedURLs(text, n.opts.MinDashedWordsToParseURL)
	text = foldUnicode(text)
	text = strings.ToLower(text)
	text = expandContractions(text)

	raw := strings.FieldsFunc(text, isSeparator)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		// Misspelt stop words ("nott") are recovered before the stop list
		// is consulted.
		if n.opts.Speller != nil && !IsStopWord(tok) {
			tok = n.opts.Speller.Correct(tok)
		}
		if IsStopWord(tok) {
			if _, keep := n.reincluded[tok]; keep {
				tokens = append(tokens, tok)
			}
			continue
		}
		tokens = append(tokens, stem(tok))
	}
	return tokens
}

// stem applies the Snowball English (Porter2) stemmer.
func stem(word string) string {
	env := snowballstem.NewEnv(word)
	english.Stem(env)
	return env.Current()
}

// foldUnicode decomposes compatibility characters and drops combining
// marks, so "café" and "cafe" tokenize alike.
func foldUnicode(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return norm.NFKD.String(text)
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '’' || r == '‘' || r == 'ʼ':
			return '\''
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, out)
}

func expandContractions(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		core := strings.TrimFunc(w, func(r rune) bool { return r != '\'' && isSeparator(r) })
		if expansion, ok := contractions[core]; ok {
			words[i] = strings.Replace(w, core, expansion, 1)
		}
	}
	return strings.Join(words, " ")
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
