package leaderboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet serves the current rankings.
// Route: GET /v1/leaderboards/{window}?mode=arcade&limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	window := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/leaderboards/"), "/")
	if !IsValidWindow(window) {
		http.Error(w, "unknown leaderboard window", http.StatusNotFound)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "arcade"
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := h.svc.Top(r.Context(), mode, window, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("window", window).Str("mode", mode).Msg("leaderboard fetch failed")
		http.Error(w, "leaderboard unavailable", http.StatusBadGateway)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"window":      window,
		"mode":        mode,
		"top":         entries,
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}
