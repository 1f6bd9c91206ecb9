package repository

import (
	"context"
	"errors"
	"fmt"
	"granulemigration/internal/domain/errors/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common error types
var (
	ErrAlreadyExists       = errors.New("record already exists")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrConstraintViolation = errors.New("constraint violation")
)

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, domain.ErrRecordNotFound)
}

// IsConstraintViolationError checks if an error is a constraint violation
func IsConstraintViolationError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// PostgreSQL error codes:
		// 23505: unique_violation
		// 23503: foreign_key_violation
		// 23514: check_violation
		// 23502: not_null_violation
		switch pgErr.Code {
		case "23505", "23503", "23514", "23502":
			return true
		}
	}

	return errors.Is(err, ErrConstraintViolation) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrForeignKeyViolation)
}

// IsConnectionError checks if an error means the database cannot be reached
// or is refusing work.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return false
		}
		switch pgErr.Code[:2] {
		case "08": // Connection exception
			return true
		case "53": // Insufficient resources (too many connections)
			return true
		case "57": // Operator intervention (includes connection errors)
			return true
		}
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	return pgconn.Timeout(err) || pgconn.SafeToRetry(err) || errors.Is(err, domain.ErrStoreUnavailable)
}

// WrapError wraps a database error with appropriate context
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if IsNotFoundError(err) {
		return fmt.Errorf("%s failed: %w", operation, domain.ErrRecordNotFound)
	}

	if IsConstraintViolationError(err) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation
				return fmt.Errorf("%s failed: %w: %w", operation, ErrAlreadyExists, err)
			case "23503": // foreign_key_violation
				return fmt.Errorf("%s failed: %w: %w", operation, ErrForeignKeyViolation, err)
			}
		}
		return fmt.Errorf("%s failed: %w: %w", operation, ErrConstraintViolation, err)
	}

	if IsConnectionError(err) {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return fmt.Errorf("%s failed: %w", operation, err)
		}
		return fmt.Errorf("%s failed: %w: %w", operation, domain.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}
