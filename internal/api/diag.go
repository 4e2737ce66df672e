package api

import (
	"net/http"

	"github.com/librevious/deliverability-checker/internal/pkg/httputil"
	"github.com/librevious/deliverability-checker/internal/pkg/logger"
)

// handleChecks runs the full diagnostics suite. With ?fresh=1 (or no
// cache configured) every probe runs live; otherwise a short-lived
// cached report may be served.
func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fresh := r.URL.Query().Get("fresh") == "1"

	if s.cache != nil && !fresh {
		if report, ok := s.cache.Get(ctx, s.cfg.Checks.Domain); ok {
			httputil.OK(w, report)
			return
		}
	}

	report := s.checker.AllChecks(ctx)

	if s.cache != nil {
		if err := s.cache.Set(ctx, report); err != nil {
			logger.Warn("cache report failed", "error", err.Error())
		}
	}

	httputil.OK(w, report)
}

// handleProviderConfig runs only the mail provider validation, always
// live. Credential changes need to show up immediately.
func (s *Server) handleProviderConfig(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, s.checker.ProviderCheck(r.Context()))
}
