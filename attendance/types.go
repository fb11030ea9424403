/*
Package attendance manages the daily check-in/check-out lifecycle.

PURPOSE:
  Enforces at-most-one attendance record per user per calendar day and drives
  each record through its strictly monotonic state machine:

    {no record} -> {checked in} -> {checked out}

  There is no reopening. Both transitions are conditionally-applied writes:
  check-in relies on the store's UNIQUE(user_id, date) constraint, check-out
  on an UPDATE guarded by check_out_time IS NULL. Two concurrent attempts at
  either transition produce exactly one winner.

STATUS DERIVATION:
  Statuses are resolved by the shift package once, at write time, against the
  shift window captured when the record was created. The persisted status is
  the single source of truth; it is never recomputed from the stored
  timestamps.

SEE ALSO:
  - shift: window resolution and status rules
  - manager.go: the check-in/check-out operations
  - store/sqlite: the conditional-write implementation
*/
package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/peoplekit/hr-engine/shift"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one user's attendance for one calendar day. Unique per
// (UserID, Date). CheckOut fields stay nil until the day is closed.
type Record struct {
	ID     string
	UserID string
	Date   string // calendar day key in the org timezone, YYYY-MM-DD

	// Shift window captured at check-in, so checkout is judged against the
	// same window even if the user's configured hours change mid-day.
	ShiftStart time.Time
	ShiftEnd   time.Time

	CheckInTime    time.Time
	CheckInStatus  shift.CheckInStatus
	CheckOutTime   *time.Time
	CheckOutStatus *shift.CheckOutStatus

	// Derived on checkout. Straight wall-clock difference; this system has
	// no unpaid-break policy.
	TotalHours    decimal.Decimal
	OvertimeHours decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the record is awaiting checkout.
func (r *Record) Open() bool { return r.CheckOutTime == nil }

// Window reconstructs the shift window captured at check-in.
func (r *Record) Window() shift.Window {
	return shift.Window{Start: r.ShiftStart, End: r.ShiftEnd}
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence contract for attendance records. Implementations
// must make Insert fail with ErrAlreadyCheckedIn on a (user_id, date)
// collision and make CloseOpen apply only while check_out_time is unset.
type Store interface {
	// Insert creates the day's record. A second insert for the same
	// (UserID, Date) returns ErrAlreadyCheckedIn.
	Insert(ctx context.Context, rec *Record) error

	// CloseOpen sets the checkout fields on the open record for
	// (userID, date). Returns false when no open record matched, without
	// distinguishing "never checked in" from "already checked out" - the
	// manager disambiguates with a read.
	CloseOpen(ctx context.Context, rec *Record) (bool, error)

	// Get returns the record for (userID, date), nil when absent.
	Get(ctx context.Context, userID, date string) (*Record, error)

	// ListRange returns records for userID with Date in [from, to],
	// newest first.
	ListRange(ctx context.Context, userID, from, to string) ([]*Record, error)
}
