package store

import "errors"

var (
	// ErrShiftNotFound is returned by backends when the singleton
	// current-shift record does not exist.
	ErrShiftNotFound = errors.New("current shift record not found")
)
