package main

import (
	"encoding/json"
	"time"

	"urgency_detector/internal/rules"
)

// Request/Response structures
type InboundCheckRequest struct {
	// TextToMatch must be present; an empty string is a valid message.
	TextToMatch *string         `json:"text_to_match" validate:"required"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type InboundCheckResponse struct {
	// UrgencyScore is 1, 0, or null when no rules are loaded.
	UrgencyScore        *int         `json:"urgency_score"`
	MatchedUrgencyRules []rules.Rule `json:"matched_urgency_rules"`
	FeedbackSecretKey   string       `json:"feedback_secret_key"`
	InboundID           int64        `json:"inbound_id"`
}

// returnedContent is the part of the check response kept on the record.
type returnedContent struct {
	UrgencyScore        *int         `json:"urgency_score"`
	MatchedUrgencyRules []rules.Rule `json:"matched_urgency_rules"`
}

type FeedbackRequest struct {
	InboundID         int64           `json:"inbound_id"`
	FeedbackSecretKey string          `json:"feedback_secret_key"`
	Feedback          json.RawMessage `json:"feedback"`
}

type RuleValidationRequest struct {
	IncludeKeywords []string `json:"include_keywords" validate:"required,min=1"`
	ExcludeKeywords []string `json:"exclude_keywords"`
}

type RuleCheckRequest struct {
	IncludeKeywords []string `json:"include_keywords" validate:"required,min=1,max=10"`
	ExcludeKeywords []string `json:"exclude_keywords" validate:"max=10"`
	QueriesToCheck  []string `json:"queries_to_check" validate:"required,min=1,max=5"`
}

type CacheInfoResponse struct {
	Loaded     bool      `json:"loaded"`
	Version    uint64    `json:"version"`
	Bucket     int64     `json:"bucket"`
	ComputedAt time.Time `json:"computed_at,omitempty"`
	Rules      int       `json:"rules"`
	Periodic   bool      `json:"periodic_refresh"`
	Timestamp  time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}
