// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound     = errors.New("entity not found")
	ErrDuplicateKey = errors.New("duplicate key")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrAlreadyDeleted  = errors.New("entity already soft-deleted")

	// Realtime errors
	ErrDeliveryFailure   = errors.New("event delivery failed")
	ErrRegistryExhausted = errors.New("subscription registry at capacity")
	ErrConnectionClosed  = errors.New("connection closed")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "score", "catalog", "realtime"
	Op      string // Operation that failed, e.g., "Create", "Restore"
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

// Catalog domain errors (councils, majors, rubrics, groups)
var (
	ErrCouncilNotFound = NewDomainError("catalog", "FindCouncil", ErrNotFound, "council not found")
	ErrMajorNotFound   = NewDomainError("catalog", "FindMajor", ErrNotFound, "major not found")
	ErrRubricNotFound  = NewDomainError("catalog", "FindRubric", ErrNotFound, "rubric not found")
	ErrGroupNotFound   = NewDomainError("catalog", "FindGroup", ErrNotFound, "group not found")
	ErrDuplicateName   = NewDomainError("catalog", "Create", ErrDuplicateKey, "name already in use")
)

// Defense domain errors (sessions, scores, transcripts)
var (
	ErrSessionNotFound    = NewDomainError("defense", "FindSession", ErrNotFound, "defense session not found")
	ErrScoreNotFound      = NewDomainError("defense", "FindScore", ErrNotFound, "score not found")
	ErrTranscriptNotFound = NewDomainError("defense", "FindTranscript", ErrNotFound, "transcript not found")
	ErrDuplicateScore     = NewDomainError("defense", "CreateScore", ErrDuplicateKey, "score already recorded for this rubric, student and evaluator")
	ErrInvalidScoreValue  = NewDomainError("defense", "Validate", ErrValueOutOfRange, "score value must be between 0 and 10")
	ErrSessionTransition  = NewDomainError("defense", "UpdateStatus", ErrStateTransition, "invalid session status transition")
)

// Coordinator errors
var (
	ErrUnitTerminal   = NewDomainError("coordinator", "Reuse", ErrInvalidState, "unit of work already committed or rolled back")
	ErrUnitNotStarted = NewDomainError("coordinator", "Commit", ErrInvalidState, "unit of work not started")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateKey checks if the error is a uniqueness violation.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsInvalidState checks if the error is a terminal-state or transition error.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrStateTransition)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}
