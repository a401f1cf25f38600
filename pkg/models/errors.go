package models

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Base errors. Each one maps to a single HTTP status in the API error handler.
var (
	// ErrInvalidTransition: no edge exists for the requested (from, to) pair.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden: actor/role mismatch or cross-tenant access.
	ErrForbidden = errors.New("forbidden")

	// ErrGuardNotSatisfied: edge exists and actor matches but a precondition is false.
	ErrGuardNotSatisfied = errors.New("guard not satisfied")

	// ErrConflict: a concurrent mutation won the race for the same case.
	ErrConflict = errors.New("conflict")

	// ErrNotFound: unknown case or document.
	ErrNotFound = errors.New("not found")

	// ErrDocumentLocked: client document mutation while a lawyer review is pending.
	ErrDocumentLocked = errors.New("documents locked")

	// ErrValidation: malformed input that never reached the state machine.
	ErrValidation = errors.New("validation failed")
)

// GuardReason is the machine-readable code attached to guard failures.
type GuardReason string

const (
	ReasonMissingRequiredFields GuardReason = "MISSING_REQUIRED_FIELDS"
	ReasonNoNewDocuments        GuardReason = "NO_NEW_DOCUMENTS"
	ReasonDocumentsLocked       GuardReason = "DOCUMENTS_LOCKED"
	ReasonDocumentsNotMutable   GuardReason = "DOCUMENTS_NOT_MUTABLE"
	ReasonReasonRequired        GuardReason = "REASON_REQUIRED"
	ReasonNoDocumentsApproved   GuardReason = "NO_DOCUMENTS_APPROVED"
	ReasonDocumentNotPending    GuardReason = "DOCUMENT_NOT_PENDING"
	ReasonDocumentsRequired     GuardReason = "DOCUMENTS_REQUIRED"
	ReasonNotClaimed            GuardReason = "NOT_CLAIMED"
	ReasonAlreadyClaimed        GuardReason = "ALREADY_CLAIMED"
	ReasonCaseNotEditable       GuardReason = "CASE_NOT_EDITABLE"
	ReasonNonMonotonicTimestamp GuardReason = "NON_MONOTONIC_TIMESTAMP"
	ReasonStalePreviousStatus   GuardReason = "STALE_PREVIOUS_STATUS"
)

// GuardError is a guard failure with its reason code.
type GuardError struct {
	Reason  GuardReason
	Message string
}

// NewGuardError builds a guard failure with a formatted message.
func NewGuardError(reason GuardReason, format string, args ...any) *GuardError {
	return &GuardError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (e *GuardError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Is makes every GuardError match ErrGuardNotSatisfied, and DOCUMENTS_LOCKED
// failures additionally match ErrDocumentLocked.
func (e *GuardError) Is(target error) bool {
	switch target {
	case ErrGuardNotSatisfied:
		return true
	case ErrDocumentLocked:
		return e.Reason == ReasonDocumentsLocked
	}
	return false
}

// ReasonOf extracts the guard reason from err, if any.
func ReasonOf(err error) (GuardReason, bool) {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Reason, true
	}
	return "", false
}

// Transition errors
func InvalidTransition(from, to CaseStatus) error {
	return errors.Wrapf(ErrInvalidTransition, "no transition from %s to %s", from, to)
}

func ForbiddenActor(actor Actor, from, to CaseStatus) error {
	return errors.Wrapf(ErrForbidden, "%s may not move a case from %s to %s", actor, from, to)
}

// Tenancy errors
var ErrNotCaseParticipant = errors.Wrap(ErrForbidden, "caller is neither the owning client nor the assigned lawyer")

// Persistence errors
var (
	ErrCaseNotFound     = errors.Wrap(ErrNotFound, "case not found")
	ErrDocumentNotFound = errors.Wrap(ErrNotFound, "document not found")
	ErrStaleVersion     = errors.Wrap(ErrConflict, "case was modified by a concurrent request")
	ErrCaseBusy         = errors.Wrap(ErrConflict, "case is locked by a concurrent request")
	ErrDocumentTaken    = errors.Wrap(ErrConflict, "document id or content already in use")
)

// CodeOf returns the stable tag of a domain error, or INTERNAL.
// DOCUMENT_LOCKED is checked before the guard tag it also matches.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrDocumentLocked):
		return "DOCUMENT_LOCKED"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrGuardNotSatisfied):
		return "GUARD_NOT_SATISFIED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	}
	return "INTERNAL"
}
