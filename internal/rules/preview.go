package rules

// Preview is the result of trying a candidate rule against sample queries.
type Preview struct {
	Include       []string   `json:"preprocessed_include_kws"`
	Exclude       []string   `json:"preprocessed_exclude_kws"`
	Queries       [][]string `json:"preprocessed_queries"`
	UrgencyScores []int      `json:"urgency_scores"`
}

// Preview reduces the candidate keywords, normalizes every query and
// scores each query 1 or 0 against the single temporary rule.
func (v *Validator) Preview(include, exclude, queries []string) (Preview, error) {
	inc, err := v.Reduce(include)
	if err != nil {
		return Preview{}, err
	}
	exc, err := v.Reduce(exclude)
	if err != nil {
		return Preview{}, err
	}
	candidate := []Rule{{Title: "candidate", Include: inc, Exclude: exc}}

	p := Preview{
		Include:       inc,
		Exclude:       exc,
		Queries:       make([][]string, 0, len(queries)),
		UrgencyScores: make([]int, 0, len(queries)),
	}
	for _, q := range queries {
		seq := v.normalizer.Normalize(q)
		p.Queries = append(p.Queries, seq)
		p.UrgencyScores = append(p.UrgencyScores, *Score(Urgency(Evaluate(seq, candidate))))
	}
	return p, nil
}
