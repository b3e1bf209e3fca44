/**
 * @description
 * This file defines the error taxonomy shared by the service and API layers.
 * Three error classes cover every non-success outcome of a ledger operation:
 *
 *   - ValidationError: the request is well-formed but violates a business rule
 *     the caller can correct (bad amount, currency mismatch, overdraft, bad
 *     cursor, non-zero balance on delete, ...). Maps to HTTP 400.
 *   - ConflictError: an idempotency token collided with an existing payment.
 *     Distinct from validation failures so clients can recognize replays.
 *     Maps to HTTP 409.
 *   - PreconditionError: an internal contract was violated (e.g. the settlement
 *     primitive was handed accounts that do not belong to the payment). This is
 *     a programming error, logged and surfaced as HTTP 500, never as a client
 *     mistake.
 *
 * Not-found conditions use sentinel errors in the store package.
 */

package domain

import "fmt"

// ValidationError reports a business rule violation the caller can correct.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError with a formatted reason.
func Validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports a duplicate idempotency token.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Conflictf builds a ConflictError with a formatted reason.
func Conflictf(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// PreconditionError reports a violated internal contract. Callers treat it as a
// defect: it is logged at error level and never presented as a client mistake.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// Preconditionf builds a PreconditionError with a formatted reason.
func Preconditionf(format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}
