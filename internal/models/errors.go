package models

import "fmt"

// ValidationError reports bad input shape or range. Nothing was mutated; the
// caller can correct the request and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports an unauthenticated or unauthorized caller.
// Security relevant: callers of errors.As should log these for audit.
type AuthorizationError struct {
	Caller string
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("caller %s is not authorized to %s", e.Caller, e.Action)
}

// StateConflictError reports an operation that is invalid for the entity's
// current lifecycle state, e.g. settling premium against a non-pending policy
// or paying an already-paid claim.
type StateConflictError struct {
	Entity  string
	ID      string
	Current string
	Op      string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %s is %s, cannot %s", e.Entity, e.ID, e.Current, e.Op)
}

// TransientError wraps an external failure (weather provider, network) that
// the automation layer retries with backoff. It never reaches the ledger.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IntegrityError reports a durable-anchor write or verify failure. The
// current automation cycle aborts entirely; an observation is never submitted
// without its anchor.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity failure in %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }
