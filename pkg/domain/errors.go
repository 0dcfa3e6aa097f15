package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Callers branch with errors.Is; the typed structs below
// carry the machine-readable detail and unwrap to these.
var (
	ErrValidation         = errors.New("VALIDATION_ERROR")
	ErrInvalidState       = errors.New("INVALID_STATE")
	ErrDuplicateSignature = errors.New("DUPLICATE_SIGNATURE")
	ErrSelfApproval       = errors.New("SELF_APPROVAL")
	ErrNotAuthorized      = errors.New("NOT_AUTHORIZED")
	ErrNotFound           = errors.New("NOT_FOUND")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("VALIDATION_ERROR: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStateError names the illegal (from, to) pair, or a wrong-state
// operation when To carries the state the caller needed.
type InvalidStateError struct {
	RequestID string
	From      RequestStatus
	To        RequestStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("INVALID_STATE: request %s: illegal transition %s -> %s", e.RequestID, e.From, e.To)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// RequestNotPendingError is the InvalidState subtype for late signature
// submission after expiry or a terminal transition.
type RequestNotPendingError struct {
	RequestID string
	Status    RequestStatus
}

func (e *RequestNotPendingError) Error() string {
	return fmt.Sprintf("REQUEST_NOT_PENDING: request %s has status %s", e.RequestID, e.Status)
}

func (e *RequestNotPendingError) Unwrap() error { return ErrInvalidState }

type DuplicateSignatureError struct {
	RequestID  string
	ApproverID string
}

func (e *DuplicateSignatureError) Error() string {
	return fmt.Sprintf("DUPLICATE_SIGNATURE: approver %s already signed request %s", e.ApproverID, e.RequestID)
}

func (e *DuplicateSignatureError) Unwrap() error { return ErrDuplicateSignature }

type SelfApprovalError struct {
	RequestID string
	UserID    string
}

func (e *SelfApprovalError) Error() string {
	return fmt.Sprintf("SELF_APPROVAL: user %s may not sign own request %s", e.UserID, e.RequestID)
}

func (e *SelfApprovalError) Unwrap() error { return ErrSelfApproval }

type NotAuthorizedError struct {
	UserID string
	Reason string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("NOT_AUTHORIZED: user %s: %s", e.UserID, e.Reason)
}

func (e *NotAuthorizedError) Unwrap() error { return ErrNotAuthorized }
