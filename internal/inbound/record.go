// Package inbound stores checked messages and correlates later feedback
// with them through a per-record secret.
package inbound

import (
	"context"
	"encoding/json"
	"time"

	"urgency_detector/internal/rules"
)

// Record is one checked message. Feedback is nil until the first item
// arrives and is only ever appended to.
type Record struct {
	ID              int64             `json:"inbound_id"`
	Text            string            `json:"inbound_text"`
	Metadata        json.RawMessage   `json:"inbound_metadata,omitempty"`
	ReceivedAt      time.Time         `json:"inbound_utc"`
	ReturnedAt      time.Time         `json:"returned_utc"`
	MatchedRules    []rules.Rule      `json:"matched_rules"`
	ReturnedContent json.RawMessage   `json:"returned_content,omitempty"`
	FeedbackSecret  string            `json:"feedback_secret_key"`
	Feedback        []json.RawMessage `json:"returned_feedback,omitempty"`
}

// Store persists records. Update applies fn atomically with respect to
// other updates of the same record; when fn returns an error nothing is
// written.
type Store interface {
	Create(ctx context.Context, rec *Record) (int64, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Update(ctx context.Context, id int64, fn func(rec *Record) error) error
}
