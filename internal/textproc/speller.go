package textproc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// SpellOptions configures a SpellChecker.
type SpellOptions struct {
	// Dictionary is the list of correctly spelled words. When empty, only
	// CorrectMap is applied.
	Dictionary []string
	// AcceptList words are treated as correct even if missing from the
	// dictionary.
	AcceptList []string
	// CorrectMap forces a correction for a word.
	CorrectMap map[string]string
	// PriorityWords are never altered and win ties between suggestions.
	PriorityWords []string
	// MaxDistance bounds suggestions by edit distance.
	MaxDistance int
}

// SpellChecker corrects single lower-cased tokens. It is read-only after
// construction and safe for concurrent use.
type SpellChecker struct {
	dictionary  map[string]struct{}
	byLength    map[int][]string
	accept      map[string]struct{}
	corrections map[string]string
	priority    map[string]struct{}
	maxDistance int
}

func NewSpellChecker(opts SpellOptions) *SpellChecker {
	sc := &SpellChecker{
		dictionary:  make(map[string]struct{}, len(opts.Dictionary)+len(opts.PriorityWords)),
		byLength:    make(map[int][]string),
		accept:      toSet(lowerAll(opts.AcceptList)),
		corrections: make(map[string]string, len(opts.CorrectMap)),
		priority:    toSet(lowerAll(opts.PriorityWords)),
		maxDistance: opts.MaxDistance,
	}
	for k, v := range opts.CorrectMap {
		sc.corrections[strings.ToLower(k)] = strings.ToLower(v)
	}
	words := append(lowerAll(opts.Dictionary), lowerAll(opts.PriorityWords)...)
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, dup := sc.dictionary[w]; dup {
			continue
		}
		sc.dictionary[w] = struct{}{}
		n := utf8.RuneCountInString(w)
		sc.byLength[n] = append(sc.byLength[n], w)
	}
	for n := range sc.byLength {
		sort.Strings(sc.byLength[n])
	}
	return sc
}

// Correct returns the corrected form of word. Priority words are never
// rewritten, not even by a forced correction. Forced corrections apply
// next, then known and accepted words come back unchanged; otherwise
// the closest dictionary word within MaxDistance is chosen, preferring
// priority words and then alphabetical order. Words with no suggestion are
// returned as is.
func (sc *SpellChecker) Correct(word string) string {
	if _, ok := sc.priority[word]; ok {
		return word
	}
	if fixed, ok := sc.corrections[word]; ok {
		return fixed
	}
	if sc.known(word) || len(sc.dictionary) == 0 || sc.maxDistance <= 0 || hasDigit(word) {
		return word
	}

	best, bestDist, bestPriority := "", sc.maxDistance+1, false
	n := utf8.RuneCountInString(word)
	for l := n - sc.maxDistance; l <= n+sc.maxDistance; l++ {
		for _, cand := range sc.byLength[l] {
			d := levenshtein.ComputeDistance(word, cand)
			if d > sc.maxDistance {
				continue
			}
			_, isPriority := sc.priority[cand]
			switch {
			case d < bestDist,
				d == bestDist && isPriority && !bestPriority,
				d == bestDist && isPriority == bestPriority && cand < best:
				best, bestDist, bestPriority = cand, d, isPriority
			}
		}
	}
	if best == "" {
		return word
	}
	return best
}

func (sc *SpellChecker) known(word string) bool {
	if _, ok := sc.priority[word]; ok {
		return true
	}
	if _, ok := sc.accept[word]; ok {
		return true
	}
	_, ok := sc.dictionary[word]
	return ok
}

// LoadDictionary reads one word per line; blank lines and lines starting
// with '#' are skipped.
func LoadDictionary(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return words, nil
}

// LoadDictionaryFile is LoadDictionary over a file path.
func LoadDictionaryFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return LoadDictionary(f)
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
