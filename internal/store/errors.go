package store

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrNotInitialized = errors.New("store not initialized")
)
