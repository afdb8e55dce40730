package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/merge"
	"github.com/PascalSV/shopping-list-pwa/internal/snapshot"
	"github.com/PascalSV/shopping-list-pwa/internal/store"
	"github.com/PascalSV/shopping-list-pwa/internal/suggest"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
	"github.com/PascalSV/shopping-list-pwa/internal/validation"
)

// Options tunes request limits and identifies the running build.
type Options struct {
	Version         string
	MaxMutations    int
	SuggestionLimit int
	MaxBodyBytes    int64
	// SnapshotPath is the local snapshot served when no bucket is configured.
	SnapshotPath string
}

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	engine   *merge.Engine
	uploader snapshot.Uploader
	opts     Options
	now      func() time.Time
}

// NewHandler creates a new Handler. A nil uploader means local-only snapshots.
func NewHandler(s store.Store, e *merge.Engine, u snapshot.Uploader, opts Options) *Handler {
	if u == nil {
		u = &snapshot.NoopUploader{}
	}
	if opts.MaxMutations <= 0 {
		opts.MaxMutations = validation.DefaultMaxMutations
	}
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = 50
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		store:    s,
		engine:   e,
		uploader: u,
		opts:     opts,
		now:      time.Now,
	}
}

// Health handles GET /api/health. Clients probe it to detect connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	writeJSON(w, types.HealthResponse{
		Status:          "healthy",
		Version:         h.opts.Version,
		ListCount:       stats.ListCount,
		ItemCount:       stats.ItemCount,
		SuggestionCount: stats.SuggestionCount,
		LatestSequence:  stats.LatestSequence,
	})
}

// SuggestionsResponse is returned by GET /api/suggestions.
type SuggestionsResponse struct {
	Query       string          `json:"query"`
	Suggestions []suggest.Match `json:"suggestions"`
}

// Suggestions handles GET /api/suggestions?q=&limit=
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	limit := suggest.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, h.opts.SuggestionLimit)
	}

	var all []types.Suggestion
	if strings.TrimSpace(query) != "" {
		var err error
		all, err = h.store.ListSuggestions(r.Context(), 0)
		if err != nil {
			slog.Warn("suggestion read failed",
				"component", "api",
				"action", "suggestions",
				"error", err,
			)
		}
	}

	writeJSON(w, SuggestionsResponse{Query: query, Suggestions: suggest.Rank(all, query, limit)})
}

// Snapshot handles GET /api/snapshot. With a bucket configured it redirects
// to a pre-signed URL; otherwise it serves the latest local snapshot file.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	url, _, err := h.uploader.PresignedURL(r.Context())
	if err == nil {
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}
	if !errors.Is(err, snapshot.ErrNotConfigured) {
		slog.Error("presign snapshot failed", "component", "api", "action", "snapshot", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Snapshot storage unavailable")
		return
	}

	if h.opts.SnapshotPath == "" {
		WriteProblem(w, r, http.StatusNotFound, "No snapshot available")
		return
	}
	if _, err := os.Stat(h.opts.SnapshotPath); err != nil {
		WriteProblem(w, r, http.StatusNotFound, "No snapshot available")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	http.ServeFile(w, r, h.opts.SnapshotPath)
}
