package rules

import (
	"strings"

	"urgency_detector/internal/apperr"
	"urgency_detector/internal/textproc"
)

// Report is the outcome of validating a proposed rule. The overlap and
// n-gram lists are nil when the stop-word check failed and they were
// skipped.
type Report struct {
	StopwordErrors []string `json:"stopword_error"`
	OverlapErrors  []string `json:"overlapping_include_exclude"`
	NgramErrors    []string `json:"ngram_check"`
	OK             bool     `json:"no_errors"`
}

// Validator checks proposed include/exclude phrases before they are
// persisted. It never writes anything.
type Validator struct {
	normalizer *textproc.Normalizer
}

func NewValidator(n *textproc.Normalizer) *Validator {
	return &Validator{normalizer: n}
}

// Validate runs the stop-word, overlap and n-gram bound checks. Stop-word
// failures short-circuit the other two.
func (v *Validator) Validate(include, exclude []string) Report {
	combined := make([]string, 0, len(include)+len(exclude))
	combined = append(combined, include...)
	combined = append(combined, exclude...)

	reduced := make([]string, len(combined))
	var stopword []string
	for i, phrase := range combined {
		longest, ok := textproc.LongestNGram(v.normalizer.Normalize(phrase))
		if !ok {
			stopword = append(stopword, phrase)
			continue
		}
		reduced[i] = longest
	}
	if len(stopword) > 0 {
		return Report{StopwordErrors: stopword}
	}

	report := Report{
		OverlapErrors: overlap(reduced[:len(include)], reduced[len(include):]),
		NgramErrors:   v.outOfBounds(combined),
	}
	report.OK = len(report.OverlapErrors) == 0 && len(report.NgramErrors) == 0
	return report
}

// Reduce normalizes each phrase to its longest n-gram, the form rules are
// stored and matched in. A phrase made only of stop words is a validation
// error.
func (v *Validator) Reduce(phrases []string) ([]string, error) {
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		longest, ok := textproc.LongestNGram(v.normalizer.Normalize(phrase))
		if !ok {
			return nil, apperr.New(apperr.KindValidation, "keyword reduces to stop words only: "+phrase)
		}
		out = append(out, longest)
	}
	return out, nil
}

func (v *Validator) outOfBounds(phrases []string) []string {
	out := make([]string, 0)
	for _, p := range phrases {
		n := len(strings.Fields(p))
		if n < v.normalizer.NgramMin() || n > v.normalizer.NgramMax() {
			out = append(out, p)
		}
	}
	return out
}

// overlap lists phrases present in both sets, in include order, once each.
func overlap(include, exclude []string) []string {
	ex := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		ex[p] = struct{}{}
	}
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, p := range include {
		if _, ok := ex[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
