// Package domain provides domain-specific error definitions and utilities.
package domain

import "errors"

// Record lookup errors.
var (
	ErrRecordNotFound = errors.New("record not found")
)

// Migration outcome errors.
var (
	// ErrRecordAlreadyMigrated marks a source record whose destination copy is
	// as new or newer. It is an expected outcome, counted as skipped.
	ErrRecordAlreadyMigrated = errors.New("record already migrated")
	ErrMissingDependency     = errors.New("required dependency not found in destination")
	ErrWriteRejected         = errors.New("destination rejected the write")
	ErrInvalidSourceRecord   = errors.New("invalid source record")
)

// Infrastructure errors.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
)

// General domain errors.
var (
	ErrInvalidInput = errors.New("invalid input")
)
