package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librevious/deliverability-checker/internal/emaillog"
	"github.com/librevious/deliverability-checker/internal/mailer"
	"github.com/librevious/deliverability-checker/internal/pkg/httputil"
)

// TestSendRequest is the admin test-send payload.
type TestSendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    bool   `json:"html"`
}

// handleTestSend sends a test email through the full pipeline so the
// result exercises logging, tracking injection and the real transport.
func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	if s.sender == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no mail transport configured")
		return
	}

	var req TestSendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.To == "" {
		httputil.BadRequest(w, "to is required")
		return
	}

	msg := &mailer.Message{
		To:      []string{req.To},
		Subject: req.Subject,
		Body:    req.Body,
	}
	if msg.Subject == "" {
		msg.Subject = "Deliverability test email"
	}
	if msg.Body == "" {
		msg.Body = "<p>This is a test email confirming your sending configuration works.</p>"
		req.HTML = true
	}
	if req.HTML {
		msg.Headers = []string{"Content-Type: text/html; charset=UTF-8"}
	}

	result, err := s.sender.Send(r.Context(), msg)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// handleLogs serves the filtered, paginated email log.
// Query parameters: search, status, from, to (YYYY-MM-DD), page, per_page.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	filter := emaillog.LogFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.BadRequest(w, "invalid from date, want YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.BadRequest(w, "invalid to date, want YYYY-MM-DD")
			return
		}
		filter.To = t
	}

	result, err := s.store.QueryLogs(r.Context(), filter)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// LogDetail is a log entry with its event history.
type LogDetail struct {
	Log    *emaillog.EmailLog    `json:"log"`
	Events []emaillog.EmailEvent `json:"events"`
}

// handleLogDetail serves one log entry plus its events, newest first.
func (s *Server) handleLogDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid log id")
		return
	}

	log, err := s.store.GetLog(r.Context(), id)
	if errors.Is(err, emaillog.ErrNotFound) {
		httputil.NotFound(w, "log not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, LogDetail{Log: log, Events: events})
}

// handleStats serves the lifetime send counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}
