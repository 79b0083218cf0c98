package storage

import "errors"

// Journal errors.
var (
	// ErrDuplicateKey is returned when an insert collides with an existing
	// record. The journal is append-only; nothing is ever updated in place.
	ErrDuplicateKey = errors.New("duplicate key: journal is append-only")

	// ErrInvalidInput is returned when a record fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
