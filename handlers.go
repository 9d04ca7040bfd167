package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"urgency_detector/internal/apperr"
	"urgency_detector/internal/inbound"
	"urgency_detector/internal/rules"
)

const (
	msgSuccess         = "Success"
	msgNoMatches       = "No Matches"
	msgIncorrectSecret = "Incorrect Feedback Secret Key"
	msgHealthy         = "Healthy - Can connect to DB"
	msgUnhealthy       = "Failed DB connection"
)

func (s *Server) handleHealth(c echo.Context) error {
	pinger, ok := s.repo.(rules.Pinger)
	if !ok {
		return c.JSON(http.StatusOK, msgHealthy)
	}
	if err := pinger.Ping(c.Request().Context()); err != nil {
		s.logger.Error("rule repository ping failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, msgUnhealthy)
	}
	return c.JSON(http.StatusOK, msgHealthy)
}

func (s *Server) handleCacheInfo(c echo.Context) error {
	info := CacheInfoResponse{
		Periodic:  s.cache.Periodic(),
		Timestamp: s.now(),
	}
	if snap := s.cache.Peek(); snap != nil {
		info.Loaded = true
		info.Version = snap.Version
		info.Bucket = snap.Bucket
		info.ComputedAt = snap.ComputedAt
		info.Rules = snap.Len()
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleRefreshRules(c echo.Context) error {
	snap, err := s.cache.ForceRefresh(c.Request().Context())
	if err != nil {
		return c.JSON(apperr.HTTPStatus(err), errorResponse{Error: err.Error()})
	}
	if snap.Len() == 0 {
		return c.JSON(http.StatusOK, "Successfully refreshed but could not find urgency rules in DB")
	}
	return c.JSON(http.StatusOK, fmt.Sprintf("Successfully refreshed %d urgency rules", snap.Len()))
}

func (s *Server) handleInboundCheck(c echo.Context) error {
	var req InboundCheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	ctx := c.Request().Context()
	received := s.now()
	text := *req.TextToMatch

	snap, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Error("no rules available for inbound check", slog.String("error", err.Error()))
		return c.JSON(apperr.HTTPStatus(err), errorResponse{Error: err.Error()})
	}

	seq := s.normalizer.Normalize(text)
	results := rules.Evaluate(seq, snap.Rules)
	content := returnedContent{
		UrgencyScore:        rules.Score(rules.Urgency(results)),
		MatchedUrgencyRules: rules.Matched(results),
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to encode response"})
	}

	rec := &inbound.Record{
		Text:            text,
		Metadata:        req.Metadata,
		ReceivedAt:      received,
		ReturnedAt:      s.now(),
		MatchedRules:    content.MatchedUrgencyRules,
		ReturnedContent: raw,
	}
	id, err := s.correlator.Create(ctx, rec)
	if err != nil {
		s.logger.Error("failed to store inbound record", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to store inbound message"})
	}

	s.logger.Debug("inbound checked",
		slog.Int64("inbound_id", id),
		slog.Int("text_len", len(text)),
		slog.Int("matched", len(content.MatchedUrgencyRules)),
		slog.Uint64("rules_version", snap.Version))

	return c.JSON(http.StatusOK, InboundCheckResponse{
		UrgencyScore:        content.UrgencyScore,
		MatchedUrgencyRules: content.MatchedUrgencyRules,
		FeedbackSecretKey:   rec.FeedbackSecret,
		InboundID:           id,
	})
}

func (s *Server) handleFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request"})
	}

	err := s.correlator.AttachFeedback(c.Request().Context(), req.InboundID, req.FeedbackSecretKey, req.Feedback)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, msgSuccess)
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, msgNoMatches)
	case errors.Is(err, apperr.ErrUnauthorized):
		s.logger.Warn("feedback rejected", slog.Int64("inbound_id", req.InboundID))
		return c.JSON(http.StatusForbidden, msgIncorrectSecret)
	default:
		s.logger.Error("failed to save feedback",
			slog.Int64("inbound_id", req.InboundID),
			slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to save feedback"})
	}
}

func (s *Server) handleValidateRule(c echo.Context) error {
	var req RuleValidationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, s.validator.Validate(req.IncludeKeywords, req.ExcludeKeywords))
}

func (s *Server) handleCheckNewRules(c echo.Context) error {
	var req RuleCheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	preview, err := s.validator.Preview(req.IncludeKeywords, req.ExcludeKeywords, req.QueriesToCheck)
	if err != nil {
		return c.JSON(apperr.HTTPStatus(err), errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, preview)
}

// observed records the status and latency of h with observe. Handlers
// always write their own response, so the status is final when h returns.
func observed(observe func(status int, took time.Duration), h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := h(c)
		status := c.Response().Status
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else {
				status = http.StatusInternalServerError
			}
		}
		observe(status, time.Since(start))
		return err
	}
}
