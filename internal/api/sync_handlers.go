package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/store"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
	"github.com/PascalSV/shopping-list-pwa/internal/validation"
)

// Bootstrap handles GET /api/bootstrap.
// Returns every live list and item plus the top suggestions. The cursor is
// taken before the reads so nothing written during them is skipped by the
// client's next sync.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	cursor := h.now().UnixMilli()

	resp := h.readState(ctx, store.Query{}, "bootstrap")
	resp.Cursor = cursor
	resp.EnsureArrays()

	slog.Info("bootstrap served",
		"component", "api",
		"action", "bootstrap",
		"caller", CallerFromContext(ctx),
		"lists", len(resp.Lists),
		"items", len(resp.Items),
		"cursor", cursor,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, resp)
}

// Sync handles POST /api/sync.
// Applies the client's mutations with last-write-wins, then returns every
// list and item changed since the client's cursor, tombstones included.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	cursor := h.now().UnixMilli()

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	var req types.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateSyncRequest(req, h.opts.MaxMutations); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	source := sourceID(r)
	result, err := h.engine.Apply(ctx, source, req.Mutations)
	if err != nil {
		slog.Error("sync apply failed",
			"component", "api",
			"action", "sync",
			"source_id", source,
			"applied", result.Applied,
			"error", err,
		)
		MapStoreError(w, r, err)
		return
	}

	resp := h.readState(ctx, store.Query{Since: req.Since, IncludeDeleted: true}, "sync")
	resp.Cursor = cursor
	resp.EnsureArrays()

	slog.Info("sync completed",
		"component", "api",
		"action", "sync",
		"source_id", source,
		"since", req.Since,
		"mutations", len(req.Mutations),
		"applied", result.Applied,
		"stale", result.Stale,
		"ignored", result.Ignored,
		"suggestions_bumped", result.SuggestionsBumped,
		"returned_lists", len(resp.Lists),
		"returned_items", len(resp.Items),
		"cursor", cursor,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, resp)
}

// readState loads lists, items and suggestions. A failed read is logged and
// yields an empty slice rather than failing the request.
func (h *Handler) readState(ctx context.Context, q store.Query, action string) types.SyncResponse {
	var resp types.SyncResponse
	var err error

	if resp.Lists, err = h.store.ListLists(ctx, q); err != nil {
		slog.Warn("list read failed", "component", "api", "action", action, "error", err)
		resp.Lists = nil
	}
	if resp.Items, err = h.store.ListItems(ctx, q); err != nil {
		slog.Warn("item read failed", "component", "api", "action", action, "error", err)
		resp.Items = nil
	}
	if resp.Suggestions, err = h.store.ListSuggestions(ctx, h.opts.SuggestionLimit); err != nil {
		slog.Warn("suggestion read failed", "component", "api", "action", action, "error", err)
		resp.Suggestions = nil
	}
	return resp
}
