package store

import "errors"

// Sentinel errors for snapshot store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates no file exists for the requested key.
	ErrNotFound = errors.New("store: snapshot not found")

	// ErrEmpty indicates the file exists but has not been written yet.
	// Callers treat this the same as "no cached snapshot".
	ErrEmpty = errors.New("store: snapshot empty")
)
