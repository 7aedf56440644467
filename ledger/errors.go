/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Validation errors - malformed trip data, missing justifications
  2. Not-found errors - amend/void against a trip absent from the projection
  3. Repository errors - durable storage failures, always propagated

  Chain integrity violations are deliberately NOT errors: VerifyLedger
  reports a broken chain as data (Verification.IsValid == false), because
  detecting tampering is an expected, non-exceptional outcome.

PROPAGATION POLICY:
  The Service performs no silent recovery and no automatic retries. Every
  failure surfaces to the caller, which owns user-facing messaging.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTripNotFound is returned when an operation targets a trip that is
	// absent from the live projection (never created, or already voided).
	ErrTripNotFound = errors.New("trip not found in projection")

	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrRepository is the root of all durable storage failures.
	ErrRepository = errors.New("repository operation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes rejected input: a missing justification, a
// malformed trip, an empty import batch.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies which trip an amend/void missed. A voided trip
// is gone from the projection, so acting on it fails the same way.
type NotFoundError struct {
	TripID TripID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("trip %s not found in projection", e.TripID)
}

func (e *NotFoundError) Unwrap() error { return ErrTripNotFound }

// RepositoryError wraps a storage failure with the operation that hit it.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return ErrRepository }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a trip missing from the projection.
func IsNotFound(err error) bool { return errors.Is(err, ErrTripNotFound) }

// IsValidation reports whether err is due to invalid caller input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsRepository reports whether err originated in durable storage.
func IsRepository(err error) bool { return errors.Is(err, ErrRepository) }

func repoErr(op string, err error) error {
	return &RepositoryError{Op: op, Err: err}
}
