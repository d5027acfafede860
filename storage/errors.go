package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidID is returned for a record id that is not a UUID.
	ErrInvalidID = errors.New("invalid record id")
)
