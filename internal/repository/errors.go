package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update found the record in a
	// state other than the one it was conditioned on.
	ErrConflict = errors.New("conditional update lost")

	// ErrDependencyUnavailable wraps connectivity failures of the backing store.
	ErrDependencyUnavailable = errors.New("store unavailable")
)
