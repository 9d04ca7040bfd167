package inbound

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urgency_detector/internal/apperr"
	"urgency_detector/internal/rules"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRecord(text string) *Record {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	return &Record{
		Text:         text,
		Metadata:     json.RawMessage(`{"channel":"sms"}`),
		ReceivedAt:   now,
		ReturnedAt:   now.Add(5 * time.Millisecond),
		MatchedRules: []rules.Rule{{ID: 3, Title: "hiking", Include: []string{"hike"}}},
	}
}

func TestIssueSecret(t *testing.T) {
	a, err := IssueSecret()
	require.NoError(t, err)
	b, err := IssueSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, base64.RawURLEncoding.EncodedLen(SecretBytes))
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "=")
}

func TestCorrelatorCreateIssuesSecret(t *testing.T) {
	store := openTestStore(t)
	c := NewCorrelator(store)

	rec := newRecord("i am 12. can i get the vaccine?")
	id, err := c.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.NotEmpty(t, rec.FeedbackSecret)

	got, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, rec.FeedbackSecret, got.FeedbackSecret)
	assert.Nil(t, got.Feedback)
	assert.JSONEq(t, `{"channel":"sms"}`, string(got.Metadata))
	assert.Equal(t, "hiking", got.MatchedRules[0].Title)
}

func TestAttachFeedback(t *testing.T) {
	store := openTestStore(t)
	c := NewCorrelator(store)
	ctx := context.Background()

	rec := newRecord("help")
	id, err := c.Create(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, c.AttachFeedback(ctx, id, rec.FeedbackSecret, json.RawMessage(`"test_feedback"`)))
	require.NoError(t, c.AttachFeedback(ctx, id, rec.FeedbackSecret, json.RawMessage(`{"helpful":false}`)))
	require.NoError(t, c.AttachFeedback(ctx, id, rec.FeedbackSecret, nil))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Feedback, 3)
	assert.JSONEq(t, `"test_feedback"`, string(got.Feedback[0]))
	assert.JSONEq(t, `{"helpful":false}`, string(got.Feedback[1]))
	assert.Equal(t, "null", string(got.Feedback[2]))
}

func TestAttachFeedbackNotFound(t *testing.T) {
	c := NewCorrelator(openTestStore(t))
	err := c.AttachFeedback(context.Background(), 999, "abcde", json.RawMessage(`""`))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAttachFeedbackWrongSecretDoesNotMutate(t *testing.T) {
	store := openTestStore(t)
	c := NewCorrelator(store)
	ctx := context.Background()

	rec := newRecord("help")
	id, err := c.Create(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, c.AttachFeedback(ctx, id, rec.FeedbackSecret, json.RawMessage(`"first"`)))

	err = c.AttachFeedback(ctx, id, "wrong_secret_key", json.RawMessage(`"sneaky"`))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	err = c.AttachFeedback(ctx, id, "", json.RawMessage(`"sneaky"`))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Feedback, 1)
	assert.JSONEq(t, `"first"`, string(got.Feedback[0]))
}

func TestConcurrentFeedbackIsNotLost(t *testing.T) {
	store := openTestStore(t)
	c := NewCorrelator(store)
	ctx := context.Background()

	rec := newRecord("help")
	id, err := c.Create(ctx, rec)
	require.NoError(t, err)
	other := newRecord("other")
	otherID, err := c.Create(ctx, other)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.AttachFeedback(ctx, id, rec.FeedbackSecret, json.RawMessage(fmt.Sprintf(`%d`, i))))
		}(i)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.AttachFeedback(ctx, otherID, other.FeedbackSecret, json.RawMessage(fmt.Sprintf(`%d`, i))))
		}(i)
	}
	wg.Wait()

	for _, rid := range []int64{id, otherID} {
		got, err := store.Get(ctx, rid)
		require.NoError(t, err)
		seen := make(map[string]bool)
		for _, item := range got.Feedback {
			seen[string(item)] = true
		}
		assert.Len(t, seen, writers)
	}
}

func TestStoreAssignsIncreasingIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, newRecord("a"))
	require.NoError(t, err)
	second, err := store.Create(ctx, newRecord("b"))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	_, err = store.Get(ctx, second+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestOpenBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBadger(BadgerConfig{Path: dir, GCInterval: time.Hour})
	require.NoError(t, err)

	id, err := s.Create(context.Background(), newRecord("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Text)
}
