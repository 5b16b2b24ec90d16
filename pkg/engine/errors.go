package engine

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or invalid field for the chosen intent
// type. No partial intent is created when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid intent: field %s: %s", e.Field, e.Reason)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required"}
}

func invalidField(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ExecutionError reports a network or contract failure during execution
// submission. Non-fatal: the intent keeps its pre-execution status and the
// user must re-trigger manually.
type ExecutionError struct {
	IntentID string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of intent %s failed: %v", e.IntentID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

var (
	// ErrWalletCancelled indicates the user declined to sign. Non-fatal;
	// the intent status is unchanged.
	ErrWalletCancelled = errors.New("wallet: signing cancelled by user")

	// ErrExecutionInFlight indicates another execution attempt for the
	// same intent is already in progress.
	ErrExecutionInFlight = errors.New("execution already in flight for this intent")

	// ErrNoAccount indicates no wallet account is connected.
	ErrNoAccount = errors.New("no connected account")

	// ErrIntentNotFound indicates the intent ID is not in the store.
	ErrIntentNotFound = errors.New("intent not found")

	// ErrVenueUnavailable indicates the venue's circuit breaker is open.
	ErrVenueUnavailable = errors.New("venue temporarily unavailable")

	// ErrNotExecutable indicates the intent's status does not allow
	// execution.
	ErrNotExecutable = errors.New("intent is not in an executable state")
)
