/*
errors.go - Error taxonomy for the leave workflow

CATEGORIES:
  1. Validation errors  - rejected before any write (ErrInvalidRange,
     ErrEmptyReason, ErrUnknownLeaveType)
  2. State conflicts    - a conditional predicate no longer held
     (ErrAlreadyProcessed)
  3. Resource errors    - ErrNotFound, ErrNotOwner, ErrInsufficientBalance;
     InsufficientBalance is never silently clamped

Conflicts are reported immediately, never retried: a retry would mask a
legitimate race, such as two approvers acting on the same request.
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned for malformed date ranges, including
	// half-day requests spanning more than one day.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrEmptyReason is returned when a rejection carries no reason.
	ErrEmptyReason = errors.New("rejection reason required")

	// ErrUnknownLeaveType is returned when the requested type is not in the
	// catalog.
	ErrUnknownLeaveType = errors.New("unknown leave type")

	// ErrAllocationBelowUsed is returned when a re-allocation would set
	// allocated below the days already used, which would drive the balance
	// negative.
	ErrAllocationBelowUsed = errors.New("allocation below days already used")

	// ErrNotFound is returned when the referenced request doesn't exist.
	ErrNotFound = errors.New("leave request not found")

	// ErrAlreadyProcessed is returned when the request left pending before
	// this transition could apply. Expected outcome of losing a race.
	ErrAlreadyProcessed = errors.New("leave request already processed")

	// ErrNotOwner is returned when a cancellation comes from someone other
	// than the requester.
	ErrNotOwner = errors.New("not the request owner")

	// ErrInsufficientBalance is returned when a debit would drive the
	// balance negative. The ledger is left unchanged.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrDuplicateDebit is returned by the store when a ledger entry for the
	// request already exists. The ledger treats it as idempotent success.
	ErrDuplicateDebit = errors.New("duplicate debit for request")
)

// IsConflict reports whether err is a state conflict the caller should render
// as "already handled".
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsValidation reports whether err is rejected client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrEmptyReason) ||
		errors.Is(err, ErrUnknownLeaveType) ||
		errors.Is(err, ErrAllocationBelowUsed)
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientBalanceError details a balance shortfall.
type InsufficientBalanceError struct {
	UserID      string
	LeaveTypeID string
	Year        int
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s (%s/%s/%d)",
		e.Available, e.Requested, e.UserID, e.LeaveTypeID, e.Year)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidRangeError details a rejected date range.
type InvalidRangeError struct {
	Start, End string
	Detail     string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range %s..%s: %s", e.Start, e.End, e.Detail)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }
