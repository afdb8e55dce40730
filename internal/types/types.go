package types

import "strings"

// List is a named shopping list. Rows are never removed; IsDeleted marks a tombstone.
type List struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UpdatedAt  int64  `json:"updatedAt"`
	IsDeleted  bool   `json:"isDeleted"`
	IsFavorite bool   `json:"isFavorite"`
}

// Item is an entry on a List. Items are not cascade-deleted with their list.
type Item struct {
	ID        string `json:"id"`
	ListID    string `json:"listId"`
	Label     string `json:"label"`
	Remark    string `json:"remark"`
	Done      bool   `json:"done"`
	UpdatedAt int64  `json:"updatedAt"`
	IsDeleted bool   `json:"isDeleted"`
}

// Suggestion is a usage counter for an item label, keyed by the normalized label.
type Suggestion struct {
	Label        string `json:"label"`
	DisplayLabel string `json:"displayLabel"`
	Count        int64  `json:"count"`
}

// NormalizeLabel returns the case-insensitive key used for suggestions and
// duplicate detection.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// MutationType tags the variant carried by a SyncMutation.
type MutationType string

const (
	MutationUpsertItem MutationType = "upsert-item"
	MutationDeleteItem MutationType = "delete-item"
	MutationUpsertList MutationType = "upsert-list"
	MutationDeleteList MutationType = "delete-list"
)

// MutationTypes lists every valid mutation tag.
var MutationTypes = []MutationType{
	MutationUpsertItem,
	MutationDeleteItem,
	MutationUpsertList,
	MutationDeleteList,
}

// Valid reports whether t is a known mutation tag.
func (t MutationType) Valid() bool {
	for _, known := range MutationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Table returns the entity table the mutation targets.
func (t MutationType) Table() string {
	switch t {
	case MutationUpsertItem, MutationDeleteItem:
		return TableItems
	case MutationUpsertList, MutationDeleteList:
		return TableLists
	default:
		return ""
	}
}

// Operation returns "upsert" or "delete".
func (t MutationType) Operation() string {
	switch t {
	case MutationUpsertItem, MutationUpsertList:
		return OperationUpsert
	case MutationDeleteItem, MutationDeleteList:
		return OperationDelete
	default:
		return ""
	}
}

// Table and operation names recorded in the change log.
const (
	TableItems = "items"
	TableLists = "lists"

	OperationUpsert = "upsert"
	OperationDelete = "delete"
)

// SyncMutation is one intended change. Upserts carry the full record in Item
// or List; deletes carry only ID and UpdatedAt.
type SyncMutation struct {
	Type      MutationType `json:"type"`
	Item      *Item        `json:"item,omitempty"`
	List      *List        `json:"list,omitempty"`
	ID        string       `json:"id,omitempty"`
	UpdatedAt int64        `json:"updatedAt,omitempty"`
}

// UpsertItem builds an upsert-item mutation.
func UpsertItem(item Item) SyncMutation {
	return SyncMutation{Type: MutationUpsertItem, Item: &item}
}

// DeleteItem builds a delete-item mutation.
func DeleteItem(id string, updatedAt int64) SyncMutation {
	return SyncMutation{Type: MutationDeleteItem, ID: id, UpdatedAt: updatedAt}
}

// UpsertList builds an upsert-list mutation.
func UpsertList(list List) SyncMutation {
	return SyncMutation{Type: MutationUpsertList, List: &list}
}

// DeleteList builds a delete-list mutation.
func DeleteList(id string, updatedAt int64) SyncMutation {
	return SyncMutation{Type: MutationDeleteList, ID: id, UpdatedAt: updatedAt}
}

// EntityID returns the id of the record the mutation targets.
func (m SyncMutation) EntityID() string {
	switch m.Type {
	case MutationUpsertItem:
		if m.Item != nil {
			return m.Item.ID
		}
	case MutationUpsertList:
		if m.List != nil {
			return m.List.ID
		}
	case MutationDeleteItem, MutationDeleteList:
		return m.ID
	}
	return ""
}

// Timestamp returns the logical timestamp the mutation was written at.
func (m SyncMutation) Timestamp() int64 {
	switch m.Type {
	case MutationUpsertItem:
		if m.Item != nil {
			return m.Item.UpdatedAt
		}
	case MutationUpsertList:
		if m.List != nil {
			return m.List.UpdatedAt
		}
	case MutationDeleteItem, MutationDeleteList:
		return m.UpdatedAt
	}
	return 0
}

// SyncRequest is the body of POST /api/sync. A missing Since means 0.
type SyncRequest struct {
	Since     int64          `json:"since,omitempty"`
	Mutations []SyncMutation `json:"mutations"`
}

// SyncResponse is returned by both bootstrap and sync.
type SyncResponse struct {
	Cursor      int64        `json:"cursor"`
	Lists       []List       `json:"lists"`
	Items       []Item       `json:"items"`
	Suggestions []Suggestion `json:"suggestions"`
}

// EnsureArrays replaces nil slices so they encode as [] rather than null.
func (r *SyncResponse) EnsureArrays() {
	if r.Lists == nil {
		r.Lists = []List{}
	}
	if r.Items == nil {
		r.Items = []Item{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []Suggestion{}
	}
}

// StoreStats holds aggregate counts over the server store.
type StoreStats struct {
	ListCount       int64 `json:"list_count"`
	ItemCount       int64 `json:"item_count"`
	SuggestionCount int64 `json:"suggestion_count"`
	LatestSequence  int64 `json:"latest_sequence"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	ListCount       int64  `json:"list_count"`
	ItemCount       int64  `json:"item_count"`
	SuggestionCount int64  `json:"suggestion_count"`
	LatestSequence  int64  `json:"latest_sequence"`
}
