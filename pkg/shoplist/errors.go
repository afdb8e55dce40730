package shoplist

import "errors"

var (
	// ErrStoreNotInitialized is returned by LocalStore operations after Close.
	ErrStoreNotInitialized = errors.New("local store not initialized")

	// ErrClosed is returned by Client operations after Shutdown.
	ErrClosed = errors.New("client is closed")

	// ErrOffline is returned by SyncNow when the client runs in offline mode
	// or has no server configured.
	ErrOffline = errors.New("client is in offline mode")

	// ErrDuplicateItem is returned when a live item with the same label
	// (case-insensitive) already exists on the list.
	ErrDuplicateItem = errors.New("item already exists on this list")

	// ErrEmptyLabel is returned when an item label is blank after trimming.
	ErrEmptyLabel = errors.New("item label must not be empty")

	// ErrEmptyName is returned when a list name is blank after trimming.
	ErrEmptyName = errors.New("list name must not be empty")

	// ErrListNotFound is returned when a list is missing or deleted locally.
	ErrListNotFound = errors.New("list not found")

	// ErrItemNotFound is returned when an item is missing or deleted locally.
	ErrItemNotFound = errors.New("item not found")

	// ErrSyncFailed is wrapped by every error returned from a failed
	// bootstrap or sync round trip.
	ErrSyncFailed = errors.New("sync failed")
)
