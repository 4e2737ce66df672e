// Package api exposes the HTTP surface: the tracking endpoint, the
// bounce webhook, the diagnostics REST routes and the admin routes for
// test sends, logs and stats.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/librevious/deliverability-checker/internal/config"
	"github.com/librevious/deliverability-checker/internal/diag"
	"github.com/librevious/deliverability-checker/internal/emaillog"
	"github.com/librevious/deliverability-checker/internal/mailer"
	"github.com/librevious/deliverability-checker/internal/pkg/httputil"
	"github.com/librevious/deliverability-checker/internal/tracking"
)

// EventStore is the slice of the email log the HTTP handlers need.
type EventStore interface {
	RecordOpen(ctx context.Context, id int64) error
	RecordClick(ctx context.Context, id int64, url string) error
	RecordBounce(ctx context.Context, id int64, reason string) error
	FindLatestLogByRecipient(ctx context.Context, email string) (*emaillog.EmailLog, error)
	GetStats(ctx context.Context) (emaillog.Stats, error)
	QueryLogs(ctx context.Context, f emaillog.LogFilter) (emaillog.LogPage, error)
	GetLog(ctx context.Context, id int64) (*emaillog.EmailLog, error)
	ListEvents(ctx context.Context, logID int64) ([]emaillog.EmailEvent, error)
}

// Sender runs the send pipeline for the admin test-send endpoint.
type Sender interface {
	Send(ctx context.Context, msg *mailer.Message) (*mailer.SendResult, error)
}

// Server holds the wired dependencies behind the HTTP surface.
type Server struct {
	cfg     *config.Config
	checker *diag.Checker
	cache   *diag.ReportCache
	store   EventStore
	sender  Sender
	signer  *tracking.Signer
}

// NewServer wires the HTTP surface. cache may be nil when Redis is
// disabled; sender may be nil when no transport is configured.
func NewServer(cfg *config.Config, checker *diag.Checker, cache *diag.ReportCache, store EventStore, sender Sender) *Server {
	return &Server{
		cfg:     cfg,
		checker: checker,
		cache:   cache,
		store:   store,
		sender:  sender,
		signer:  tracking.NewSigner(cfg.Tracking.SigningKey),
	}
}

// Routes builds the router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-EDC-Webhook-Secret"},
		MaxAge:         300,
	}))

	// Tracking lives at the root so pixel and click URLs stay short
	r.Get("/", s.handleTracking)
	r.Get("/health", s.handleHealth)

	r.Post("/edc/v1/bounce", s.handleBounce)

	r.Route("/email-deliverability-checker/v1", func(r chi.Router) {
		r.Use(s.requireToken(s.cfg.Auth.HealthToken))
		r.Get("/checks", s.handleChecks)
		r.Get("/check-provider-config", s.handleProviderConfig)
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(s.requireToken(s.cfg.Auth.AdminToken))
		r.Post("/test-send", s.handleTestSend)
		r.Get("/logs", s.handleLogs)
		r.Get("/logs/{id}", s.handleLogDetail)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// requireToken gates a route group behind a bearer capability token.
// An empty configured token closes the group entirely rather than
// leaving it open.
func (s *Server) requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				httputil.Forbidden(w, "endpoint disabled: no access token configured")
				return
			}
			presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				httputil.Forbidden(w, "invalid access token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
