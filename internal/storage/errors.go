package storage

import "errors"

// Store errors. Runs, transactions and price points are write-once.
var (
	// ErrNotFound is returned when no run matches the requested key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run ID, (run ID, seq) pair or
	// (symbol, date) pair is already stored.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for nil records or empty keys.
	ErrInvalidInput = errors.New("invalid input")
)
