package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyCheckedIn is returned when a record for (user, day) already
	// has a check-in. Expected outcome of double-tapping the check-in button
	// or of losing the conditional-insert race.
	ErrAlreadyCheckedIn = errors.New("already checked in today")

	// ErrNotCheckedIn is returned on checkout when no record exists for the day.
	ErrNotCheckedIn = errors.New("not checked in today")

	// ErrAlreadyCheckedOut is returned when the day's record is already closed.
	ErrAlreadyCheckedOut = errors.New("already checked out today")
)

// IsConflict reports whether err is a state-conflict the caller should render
// as "already handled" rather than a generic failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyCheckedIn) || errors.Is(err, ErrAlreadyCheckedOut)
}

// ConflictError carries the day the conflict happened on.
type ConflictError struct {
	UserID string
	Date   string
	Kind   error // ErrAlreadyCheckedIn or ErrAlreadyCheckedOut
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: user %s on %s", e.Kind, e.UserID, e.Date)
}

func (e *ConflictError) Unwrap() error { return e.Kind }
