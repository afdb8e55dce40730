// Package shoplist is the offline-first client for the shopping list sync
// server. Edits are applied to a local SQLite replica and queued, then
// pushed to the server; the server's answer is taken as the truth.
package shoplist

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/suggest"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// Records shared with the server.
type (
	List       = types.List
	Item       = types.Item
	Suggestion = types.Suggestion
	Match      = suggest.Match
)

// Config holds the client configuration
type Config struct {
	LocalPath      string        // Local replica database path
	ServerURL      string        // Sync server base URL
	Token          string        // Bearer token (API key or JWT)
	ClientID       string        // Install id; generated and stored locally when empty
	SyncInterval   time.Duration // Background sync interval (default: 5s)
	ProbeInterval  time.Duration // Health probe interval while offline (default: 15s)
	RequestTimeout time.Duration // Per-request timeout (default: 30s)
	AutoSync       bool          // Run the background sync loop
	OfflineMode    bool          // Never contact the server
	Logger         *slog.Logger  // Defaults to slog.Default()
	HTTPClient     *http.Client  // Defaults to a client with RequestTimeout
}

// AppState is a snapshot of what the user sees: live lists and items, the
// suggestion table, and the selected list.
type AppState struct {
	Lists         []List
	Items         []Item
	Suggestions   []Suggestion
	CurrentListID string
	Cursor        int64
	Pending       int
	Online        bool
}

// CurrentList returns the selected list.
func (s AppState) CurrentList() (List, bool) {
	for _, l := range s.Lists {
		if l.ID == s.CurrentListID {
			return l, true
		}
	}
	return List{}, false
}

// CurrentItems returns the live items of the selected list: open items
// first, then most recently updated first.
func (s AppState) CurrentItems() []Item {
	out := make([]Item, 0)
	for _, it := range s.Items {
		if it.ListID == s.CurrentListID && !it.IsDeleted {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Done != out[j].Done {
			return !out[i].Done
		}
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

// HasLabel reports whether listID already holds a live item whose label
// matches label case-insensitively, ignoring the item excludeID.
func (s AppState) HasLabel(listID, label, excludeID string) bool {
	key := types.NormalizeLabel(label)
	for _, it := range s.Items {
		if it.ListID == listID && !it.IsDeleted && it.ID != excludeID && types.NormalizeLabel(it.Label) == key {
			return true
		}
	}
	return false
}

// Suggest ranks the state's suggestions against query and marks those
// already on the selected list.
func Suggest(state AppState, query string) []Match {
	return suggest.Annotate(suggest.Rank(state.Suggestions, query, suggest.DefaultLimit), state.Items, state.CurrentListID)
}

// SyncStats describes one completed sync round trip.
type SyncStats struct {
	Pushed   int   // Mutations sent
	Lists    int   // Lists received
	Items    int   // Items received
	Cursor   int64 // Cursor stored for the next sync
	Duration time.Duration
}
