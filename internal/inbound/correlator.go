package inbound

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"urgency_detector/internal/apperr"
)

// SecretBytes is the entropy of a feedback secret before encoding.
const SecretBytes = 32

// IssueSecret returns a fresh URL-safe feedback secret.
func IssueSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate feedback secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Correlator binds records to feedback secrets and appends feedback.
type Correlator struct {
	store Store
}

func NewCorrelator(store Store) *Correlator {
	return &Correlator{store: store}
}

// Create issues the record's secret and persists it. The secret is never
// re-issued.
func (c *Correlator) Create(ctx context.Context, rec *Record) (int64, error) {
	secret, err := IssueSecret()
	if err != nil {
		return 0, err
	}
	rec.FeedbackSecret = secret
	rec.Feedback = nil
	return c.store.Create(ctx, rec)
}

// AttachFeedback appends item to the record's feedback. It returns
// apperr.ErrNotFound for an unknown id and apperr.ErrUnauthorized when the
// secret does not match; in both cases nothing is written.
func (c *Correlator) AttachFeedback(ctx context.Context, id int64, secret string, item json.RawMessage) error {
	if len(item) == 0 {
		item = json.RawMessage("null")
	}
	return c.store.Update(ctx, id, func(rec *Record) error {
		if subtle.ConstantTimeCompare([]byte(rec.FeedbackSecret), []byte(secret)) != 1 {
			return apperr.ErrUnauthorized
		}
		rec.Feedback = append(rec.Feedback, append(json.RawMessage(nil), item...))
		return nil
	})
}
