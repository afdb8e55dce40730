// Package suggest ranks known item labels against a typed query for
// autocomplete.
package suggest

import (
	"sort"
	"strings"

	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// DefaultLimit is the number of matches shown while typing.
const DefaultLimit = 10

// Match is a ranked suggestion. OnList is set by Annotate.
type Match struct {
	types.Suggestion
	Prefix bool `json:"prefix"`
	OnList bool `json:"onList"`
}

// Rank filters suggestions whose label contains query (case-insensitive) and
// orders them: prefix matches first, then by count descending, then label.
// An empty query matches nothing. A non-positive limit uses DefaultLimit.
func Rank(suggestions []types.Suggestion, query string, limit int) []Match {
	q := types.NormalizeLabel(query)
	if q == "" {
		return []Match{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	matches := make([]Match, 0)
	for _, sg := range suggestions {
		display := strings.ToLower(sg.DisplayLabel)
		if !strings.Contains(display, q) && !strings.Contains(sg.Label, q) {
			continue
		}
		matches = append(matches, Match{
			Suggestion: sg,
			Prefix:     strings.HasPrefix(display, q) || strings.HasPrefix(sg.Label, q),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Prefix != b.Prefix {
			return a.Prefix
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Label < b.Label
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Annotate marks matches whose label is already a live item on listID.
func Annotate(matches []Match, items []types.Item, listID string) []Match {
	onList := make(map[string]struct{})
	for _, it := range items {
		if it.ListID == listID && !it.IsDeleted {
			onList[types.NormalizeLabel(it.Label)] = struct{}{}
		}
	}

	for i := range matches {
		_, matches[i].OnList = onList[matches[i].Label]
	}
	return matches
}
