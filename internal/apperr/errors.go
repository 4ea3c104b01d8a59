// Package apperr defines the error taxonomy shared by the store, the
// engines, and the external adapters. Callers branch with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound means a referenced id is absent from the store.
	ErrNotFound = errors.New("not found")
	// ErrNotPersisted means a write produced no row.
	ErrNotPersisted = errors.New("not persisted")
	// ErrConstraint means a relation endpoint does not reference an existing entity.
	ErrConstraint = errors.New("constraint violation")
	// ErrAdapterFailure means an external search or extraction call failed or timed out.
	ErrAdapterFailure = errors.New("adapter failure")
)
