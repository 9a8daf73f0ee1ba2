package disburse

import (
	"errors"
	"fmt"
)

// Fatal reasons. Any of these aborts the invocation before a transfer is
// issued, so the host returns the attached deposit.
var (
	ErrEmptyRecipientList         = errors.New("empty recipient list")
	ErrNoPaymentAttached          = errors.New("no payment attached")
	ErrInvalidAmount              = errors.New("attached amount must be a non-negative integer")
	ErrInvalidDirectoryIdentifier = errors.New("invalid directory identifier")
	ErrDirectoryLookupFailed      = errors.New("directory lookup failed")
	ErrNoRecipientsFound          = errors.New("no recipients found")
	ErrBudgetExhausted            = errors.New("budget exhausted")
	ErrDivisionByZero             = errors.New("division by zero")
)

// ErrUnknownContinuation is returned by the registry for unregistered names.
var ErrUnknownContinuation = errors.New("unknown continuation")

// AbortError is returned by the engine's entry points when an invocation
// fails before any funds left the operating account.
type AbortError struct {
	Stage Stage
	err   error
}

// Aborted wraps err with the stage at which the invocation failed.
func Aborted(stage Stage, err error) error {
	return &AbortError{Stage: stage, err: err}
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("invocation aborted while %s: %v", e.Stage, e.err)
}

func (e *AbortError) Unwrap() error {
	return e.err
}

// IsFatal reports whether err carries one of the fatal abort reasons.
func IsFatal(err error) bool {
	var abort *AbortError
	if errors.As(err, &abort) {
		return true
	}
	for _, reason := range []error{
		ErrEmptyRecipientList,
		ErrNoPaymentAttached,
		ErrInvalidAmount,
		ErrInvalidDirectoryIdentifier,
		ErrDirectoryLookupFailed,
		ErrNoRecipientsFound,
		ErrBudgetExhausted,
		ErrDivisionByZero,
	} {
		if errors.Is(err, reason) {
			return true
		}
	}
	return false
}

// ErrPrivateContinuation is returned by Invoke when a continuation is called
// by anyone other than the operating account itself.
var ErrPrivateContinuation = errors.New("method is private")
