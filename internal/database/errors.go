package database

import (
	"errors"
	"fmt"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classifyError maps driver errors from either lib/pq or pgx onto the domain sentinels
// callers retry on. Other errors are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var code, constraint string
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code, constraint = string(pqErr.Code), pqErr.Constraint
	case errors.As(err, &pgErr):
		code, constraint = pgErr.Code, pgErr.ConstraintName
	default:
		return err
	}

	switch code {
	case pgUniqueViolation:
		return fmt.Errorf("%w (%s): %v", models.ErrDuplicateReference, constraint, err)
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %v", models.ErrSerializationFailure, err)
	}
	return err
}

// IsRetryable reports whether a transaction failed in a way that is safe to retry from scratch
func IsRetryable(err error) bool {
	return errors.Is(err, models.ErrDuplicateReference) || errors.Is(err, models.ErrSerializationFailure)
}
