package api

import (
	"net/http"
	"strconv"

	"github.com/librevious/deliverability-checker/internal/pkg/logger"
	"github.com/librevious/deliverability-checker/internal/tracking"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// handleTracking dispatches the root endpoint on the edc_track query
// parameter. Requests without it fall through to a 204 so the root URL
// stays unremarkable.
func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("edc_track") {
	case "open":
		s.handleOpen(w, r)
	case "click":
		s.handleClick(w, r)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleOpen records an open and serves the pixel. The pixel is served
// no matter what: a forged or stale token gets the image without the
// side effect, so probing the endpoint reveals nothing.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if err == nil && s.signer.Verify("open", id, q.Get("key")) {
		if err := s.store.RecordOpen(r.Context(), id); err != nil {
			logger.Warn("record open failed", "log_id", id, "error", err.Error())
		}
	}
	s.servePixel(w)
}

// handleClick verifies the destination hash, records the click, and
// redirects. Any verification failure falls through to a 204 rather
// than redirecting: the endpoint never becomes an open redirect.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	id, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	destination, err := tracking.DecodeClickURL(q.Get("url"), q.Get("hash"))
	if err != nil {
		logger.Warn("click verification failed", "log_id", id, "error", err.Error())
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.store.RecordClick(r.Context(), id, destination); err != nil {
		logger.Warn("record click failed", "log_id", id, "error", err.Error())
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

func (s *Server) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}
