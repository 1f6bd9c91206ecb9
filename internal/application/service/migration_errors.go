package service

import (
	"errors"
	"fmt"
	"granulemigration/internal/domain/errors/domain"
	"time"
)

// MigrationErrorType represents different types of migration errors.
type MigrationErrorType string

const (
	// ErrorTypeAlreadyMigrated marks a record whose destination copy is current.
	ErrorTypeAlreadyMigrated MigrationErrorType = "already_migrated"
	// ErrorTypeMissingDependency indicates a referenced row is absent from the destination.
	ErrorTypeMissingDependency MigrationErrorType = "missing_dependency"
	// ErrorTypeWriteRejected indicates an upsert that affected zero rows.
	ErrorTypeWriteRejected MigrationErrorType = "write_rejected"
	// ErrorTypeTransientUnavailable indicates the source or destination could not be reached.
	ErrorTypeTransientUnavailable MigrationErrorType = "transient_unavailable"
	// ErrorTypeTranslation indicates a source record that cannot be mapped.
	ErrorTypeTranslation MigrationErrorType = "translation"
	// ErrorTypeDatabase indicates any other destination failure.
	ErrorTypeDatabase MigrationErrorType = "database"
)

// MigrationError represents a migration-specific error with record context.
type MigrationError struct {
	Type         MigrationErrorType `json:"type"`
	Message      string             `json:"message"`
	GranuleID    string             `json:"granule_id,omitempty"`
	CollectionID string             `json:"collection_id,omitempty"`
	Cause        error              `json:"cause,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.GranuleID != "" {
		return fmt.Sprintf("migration error [%s] for granule '%s': %s", e.Type, e.GranuleID, msg)
	}
	return fmt.Sprintf("migration error [%s]: %s", e.Type, msg)
}

// Unwrap returns the underlying cause.
func (e *MigrationError) Unwrap() error {
	return e.Cause
}

// Is maps the error type onto its domain sentinel.
func (e *MigrationError) Is(target error) bool {
	switch e.Type {
	case ErrorTypeAlreadyMigrated:
		return target == domain.ErrRecordAlreadyMigrated
	case ErrorTypeMissingDependency:
		return target == domain.ErrMissingDependency
	case ErrorTypeWriteRejected:
		return target == domain.ErrWriteRejected
	case ErrorTypeTransientUnavailable:
		return target == domain.ErrStoreUnavailable
	case ErrorTypeTranslation:
		return target == domain.ErrInvalidSourceRecord
	default:
		return false
	}
}

// IsRetryable reports whether rerunning the pipeline may succeed without a data fix.
func (e *MigrationError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTransientUnavailable, ErrorTypeWriteRejected, ErrorTypeDatabase:
		return true
	default:
		return false
	}
}

// NewMigrationError creates a new migration error for a granule.
func NewMigrationError(errorType MigrationErrorType, message, granuleID, collectionID string) *MigrationError {
	return &MigrationError{
		Type:         errorType,
		Message:      message,
		GranuleID:    granuleID,
		CollectionID: collectionID,
		Timestamp:    time.Now(),
	}
}

// NewMigrationErrorWithCause creates a new migration error with an underlying cause.
func NewMigrationErrorWithCause(
	errorType MigrationErrorType,
	message, granuleID, collectionID string,
	cause error,
) *MigrationError {
	err := NewMigrationError(errorType, message, granuleID, collectionID)
	err.Cause = cause
	return err
}

// classifyStoreError wraps a destination error, promoting unavailability.
func classifyStoreError(message, granuleID, collectionID string, err error) error {
	var migrationErr *MigrationError
	if errors.As(err, &migrationErr) {
		return err
	}
	errType := ErrorTypeDatabase
	if errors.Is(err, domain.ErrStoreUnavailable) {
		errType = ErrorTypeTransientUnavailable
	}
	return NewMigrationErrorWithCause(errType, message, granuleID, collectionID, err)
}
