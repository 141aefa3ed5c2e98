package storage

import "errors"

// Sentinel errors for the failure kinds the store distinguishes. Callers
// match them with errors.Is; the wrapped message carries the specifics.
//
// Validation, not-found, conflict, and cycle errors mean "nothing happened"
// and are safe to retry with a modified request. Integrity errors mean the
// store may be inconsistent and should be escalated.
var (
	// ErrNotFound indicates the referenced task or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a malformed field: empty title, out-of-range
	// priority, unknown type/status/kind, or a bad parent reference.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a blocked deletion or a duplicate dependency
	// triple.
	ErrConflict = errors.New("conflict")

	// ErrCycle indicates a blocking edge would create a cycle.
	ErrCycle = errors.New("dependency cycle detected")

	// ErrIntegrity indicates identifier-generation entropy exhaustion or
	// corrupted on-disk state.
	ErrIntegrity = errors.New("integrity failure")

	// ErrIO indicates a filesystem failure during import or export.
	ErrIO = errors.New("io failure")
)

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation checks if an error is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict checks if an error is or wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsCycle checks if an error is or wraps ErrCycle.
func IsCycle(err error) bool { return errors.Is(err, ErrCycle) }

// IsIntegrity checks if an error is or wraps ErrIntegrity.
func IsIntegrity(err error) bool { return errors.Is(err, ErrIntegrity) }

// IsIO checks if an error is or wraps ErrIO.
func IsIO(err error) bool { return errors.Is(err, ErrIO) }
