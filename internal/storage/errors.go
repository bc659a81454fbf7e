// Package storage manages pooled access to the relational store and executes
// transactional units of work against it. This file centralizes the storage
// error taxonomy so callers can classify failures with errors.Is.
package storage

import "errors"

var (
	// ErrPoolInit indicates the connection pool could not be established
	// after all bounded retries. Fatal at startup.
	ErrPoolInit = errors.New("storage: pool initialization failed")

	// ErrUnavailable indicates a connectivity-class failure (dropped
	// connection, dial failure, closed handle). The pool reinitializes
	// itself when this surfaces; callers must treat the operation as failed
	// and must not retry indefinitely.
	ErrUnavailable = errors.New("storage: connection unavailable")

	// ErrConflict indicates a unique-constraint violation. Callers treat it
	// as a benign no-op wherever upsert semantics are intended.
	ErrConflict = errors.New("storage: conflict")
)
