package textproc

import "strings"

// NGrams returns every contiguous n-gram of size min..max over tokens,
// all unigrams first, then bigrams, and so on. Sizes larger than the token
// count are skipped.
func NGrams(tokens []string, min, max int) []string {
	if min < 1 {
		min = 1
	}
	if max < min {
		return []string{}
	}
	out := make([]string, 0, len(tokens)*(max-min+1))
	for size := min; size <= max && size <= len(tokens); size++ {
		for i := 0; i+size <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+size], " "))
		}
	}
	return out
}

// LongestNGram returns the phrase spanning the most words in seq. Among
// phrases of equal length the last one wins, so for a sequence built by
// NGrams it is the final element. ok is false for an empty sequence.
func LongestNGram(seq []string) (phrase string, ok bool) {
	best := -1
	for _, p := range seq {
		if n := len(strings.Fields(p)); n >= best {
			best = n
			phrase = p
		}
	}
	return phrase, best >= 0
}
