package store

import "errors"

var (
	// ErrSchemaMismatch indicates the database schema version doesn't match
	// the version this binary expects.
	ErrSchemaMismatch = errors.New("schema version mismatch")

	// ErrNotFound is returned when a case or asset does not exist.
	ErrNotFound = errors.New("record not found")
)
