package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/librevious/deliverability-checker/internal/emaillog"
	"github.com/librevious/deliverability-checker/internal/pkg/logger"
)

// BounceNotification is one provider event report. Only events with
// event type "bounce" are processed; anything else in a batch is
// skipped. Providers disagree on field names, so the common aliases
// are accepted.
type BounceNotification struct {
	Event  string `json:"event"`
	Email  string `json:"email"`
	Reason string `json:"reason"`

	// Provider aliases
	Recipient   string `json:"recipient,omitempty"`
	Description string `json:"description,omitempty"`
}

func (b BounceNotification) address() string {
	if b.Email != "" {
		return b.Email
	}
	return b.Recipient
}

func (b BounceNotification) why() string {
	if b.Reason != "" {
		return b.Reason
	}
	if b.Description != "" {
		return b.Description
	}
	return "bounced"
}

// handleBounce ingests bounce webhooks. The body may be a single
// notification or an array. The response is always 200 "OK" regardless
// of how much was processed: providers retry on errors, and a replayed
// bounce is harmless while a retry storm is not.
func (s *Server) handleBounce(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}()

	if s.cfg.Webhook.Secret != "" {
		presented := r.Header.Get("X-EDC-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.cfg.Webhook.Secret)) != 1 {
			logger.Warn("bounce webhook rejected: bad secret")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		logger.Warn("bounce webhook read failed", "error", err.Error())
		return
	}

	for _, n := range parseBounces(body) {
		if n.Event != "bounce" {
			continue
		}
		s.processBounce(r, n)
	}
}

// parseBounces accepts either a JSON array or a single object.
func parseBounces(body []byte) []BounceNotification {
	var many []BounceNotification
	if err := json.Unmarshal(body, &many); err == nil {
		return many
	}
	var one BounceNotification
	if err := json.Unmarshal(body, &one); err == nil {
		return []BounceNotification{one}
	}
	logger.Warn("bounce webhook payload unparseable")
	return nil
}

func (s *Server) processBounce(r *http.Request, n BounceNotification) {
	email := n.address()
	if email == "" {
		return
	}

	log, err := s.store.FindLatestLogByRecipient(r.Context(), email)
	if err != nil {
		if errors.Is(err, emaillog.ErrNotFound) {
			logger.Info("bounce for unknown recipient", "recipient", email)
		} else {
			logger.Error("bounce lookup failed", "recipient", email, "error", err.Error())
		}
		return
	}

	if err := s.store.RecordBounce(r.Context(), log.ID, n.why()); err != nil {
		logger.Error("record bounce failed", "log_id", log.ID, "error", err.Error())
		return
	}
	logger.Info("bounce recorded", "log_id", log.ID, "recipient", email)
}
