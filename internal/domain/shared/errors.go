// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
	"time"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrPrecondition    = errors.New("precondition failed")

	// Concurrency errors
	ErrOptimisticLock = errors.New("optimistic lock failure")
	ErrMissingVersion = errors.New("missing version for optimistic locking")
	ErrDuplicateKey   = errors.New("duplicate key")

	// Infrastructure errors
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrStoreFailure     = errors.New("store failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "player", "ranking", "season"
	Op      string // Operation that failed, e.g., "Update", "Close"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// LockConflictError is returned when a version-gated update matched zero rows
// because a concurrent writer advanced the version (or the row was deleted).
// It carries the row's current version and last-modified time so callers can
// offer a "someone else edited this, reload?" flow.
type LockConflictError struct {
	Resource       string
	ID             int64
	CurrentVersion int
	LastModified   time.Time
}

// Error implements the error interface.
func (e *LockConflictError) Error() string {
	return fmt.Sprintf(
		"%s %d was modified concurrently (current version %d, last modified %s)",
		e.Resource, e.ID, e.CurrentVersion, e.LastModified.Format(time.RFC3339),
	)
}

// Is matches ErrOptimisticLock.
func (e *LockConflictError) Is(target error) bool {
	return errors.Is(ErrOptimisticLock, target)
}

// DuplicateKeyError is returned by unique-constraint pre-checks. It is scoped
// to the offending field so the caller can point at the right form input.
type DuplicateKeyError struct {
	Resource string
	Field    string
	Value    string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Resource, e.Field, e.Value)
}

// Is matches ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool {
	return errors.Is(ErrDuplicateKey, target)
}

// PreconditionError is returned when a finalization workflow's preconditions
// do not hold (season not open, tournament already completed, no results).
// It always aborts before any writes.
type PreconditionError struct {
	Domain  string
	Message string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Domain, e.Message)
}

// Is matches ErrPrecondition.
func (e *PreconditionError) Is(target error) bool {
	return errors.Is(ErrPrecondition, target)
}

// Player domain errors
var (
	ErrPlayerNotFound    = NewDomainError("player", "Find", ErrNotFound, "player not found")
	ErrAggregateNotFound = NewDomainError("player", "FindAggregate", ErrNotFound, "player aggregate not found")
)

// Season domain errors
var (
	ErrSeasonNotFound = NewDomainError("season", "Find", ErrNotFound, "season not found")
	ErrSeasonNotOpen  = NewDomainError("season", "Close", ErrPrecondition, "season is not open")
	ErrSeasonClosed   = NewDomainError("season", "Mutate", ErrInvalidState, "season is already closed")
)

// Tournament domain errors
var (
	ErrTournamentNotFound  = NewDomainError("tournament", "Find", ErrNotFound, "tournament not found")
	ErrTournamentNoResults = NewDomainError("tournament", "Finalize", ErrPrecondition, "tournament has no contributing point records")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a concurrency or uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock) || errors.Is(err, ErrDuplicateKey)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrMissingVersion)
}

// IsPrecondition checks if the error is a finalization precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}
