package rules

// Result pairs a rule with whether it fired.
type Result struct {
	Rule  Rule
	Fired bool
}

// Evaluate decides for each rule, in order, whether it fires against seq.
// The membership set is built once for all rules.
func Evaluate(seq []string, rules []Rule) []Result {
	present := make(map[string]struct{}, len(seq))
	for _, p := range seq {
		present[p] = struct{}{}
	}
	out := make([]Result, len(rules))
	for i, r := range rules {
		out[i] = Result{Rule: r, Fired: fires(present, r)}
	}
	return out
}

func fires(present map[string]struct{}, r Rule) bool {
	for _, p := range r.Include {
		if _, ok := present[p]; !ok {
			return false
		}
	}
	for _, p := range r.Exclude {
		if _, ok := present[p]; ok {
			return false
		}
	}
	return true
}

// Matched returns the fired rules in evaluation order.
func Matched(results []Result) []Rule {
	out := make([]Rule, 0)
	for _, res := range results {
		if res.Fired {
			out = append(out, res.Rule)
		}
	}
	return out
}

// Urgency is nil when there were no rules to evaluate, otherwise whether
// any rule fired.
func Urgency(results []Result) *bool {
	if len(results) == 0 {
		return nil
	}
	urgent := false
	for _, res := range results {
		if res.Fired {
			urgent = true
			break
		}
	}
	return &urgent
}

// Score renders an urgency as 1, 0 or nil.
func Score(urgency *bool) *int {
	if urgency == nil {
		return nil
	}
	s := 0
	if *urgency {
		s = 1
	}
	return &s
}
