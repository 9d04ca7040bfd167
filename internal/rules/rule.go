// Package rules holds the keyword rule model, the evaluator that decides
// which rules fire, the time-bucketed rule cache and the authoring
// validator.
package rules

import (
	"context"
	"strings"
	"time"
)

// Rule fires when every Include phrase is present and no Exclude phrase is.
// Phrases are stored lower-cased.
type Rule struct {
	ID      int64    `json:"rule_id" yaml:"id"`
	Title   string   `json:"title" yaml:"title"`
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

// Repository lists the current rules ordered by ID ascending.
type Repository interface {
	ListRules(ctx context.Context) ([]Rule, error)
}

// Pinger is implemented by repositories that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Snapshot is an immutable, versioned copy of the loaded rules. Callers
// must not modify Rules.
type Snapshot struct {
	Rules      []Rule
	Version    uint64
	Bucket     int64
	ComputedAt time.Time
}

// Len is zero for a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rules)
}

// LowerPhrases lower-cases and trims phrases, dropping empties. Repository
// adapters call it at the boundary.
func LowerPhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cloneRules(in []Rule) []Rule {
	out := make([]Rule, len(in))
	for i, r := range in {
		out[i] = Rule{
			ID:      r.ID,
			Title:   r.Title,
			Include: append([]string{}, r.Include...),
			Exclude: append([]string{}, r.Exclude...),
		}
	}
	return out
}
