package store

import "errors"

var (
	// ErrNotFound is returned when a lookup matches nothing, including lookups
	// by an id that is not well formed.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)
