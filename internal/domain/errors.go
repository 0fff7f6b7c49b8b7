package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced account or item does not exist.
	// Withdrawn items are reported as not found to borrowers.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a required field is missing or empty.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage marks failures of the underlying store (connection loss, timeouts, I/O).
	// It is never used for semantic outcomes.
	ErrStorage = errors.New("storage unavailable")
)
