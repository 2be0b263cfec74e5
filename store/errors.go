package store

import "errors"

var (
	// ErrNotFound is returned by Get for an absent key.
	ErrNotFound = errors.New("store: key not found")

	// ErrCorrupt is returned when a stored list value does not decode.
	ErrCorrupt = errors.New("store: stored value is corrupt")
)
