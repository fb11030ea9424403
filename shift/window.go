/*
Package shift resolves daily shift windows and derives attendance statuses.

PURPOSE:
  Pure calendar/time logic for the attendance lifecycle. Given a worker's
  configured shift hours and a wall-clock instant, this package answers two
  questions:
    1. What is the shift window for the day containing that instant?
    2. What status does a check-in or check-out at that instant get?

DESIGN PRINCIPLES:
  1. Purity: no I/O, no clocks, no stores. Callers pass the instant in.
  2. Stability: the same inputs always produce the same window, so callers
     can recompute freely without flicker.
  3. Write-once statuses: statuses derived here are persisted at write time
     and never re-derived from stored timestamps. The stored value is the
     single source of truth for every downstream consumer.

TIMEZONE:
  The organization runs on a single fixed-offset timezone. Shift windows
  never cross midnight: start hour must be strictly before end hour within
  one calendar day, and configurations violating that fail validation.

SEE ALSO:
  - status.go: check-in/check-out status derivation
  - attendance/manager.go: the only writer of derived statuses
*/
package shift

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidShiftHours is returned for hours outside 0-23 or for a shift
	// that would span midnight (start >= end).
	ErrInvalidShiftHours = errors.New("invalid shift hours")
)

// InvalidShiftHoursError carries the offending configuration.
type InvalidShiftHoursError struct {
	StartHour int
	EndHour   int
}

func (e *InvalidShiftHoursError) Error() string {
	return fmt.Sprintf("invalid shift hours: start=%d end=%d (require 0 <= start < end <= 23)",
		e.StartHour, e.EndHour)
}

func (e *InvalidShiftHoursError) Unwrap() error { return ErrInvalidShiftHours }

// =============================================================================
// WINDOW
// =============================================================================

// Window is the daily interval during which on-time attendance is expected.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Resolve computes the shift window for the calendar day containing ref,
// expressed in loc (the organization's fixed-offset timezone).
//
// Resolve is a pure function: repeated calls with the same arguments always
// return the same window.
func Resolve(loc *time.Location, startHour, endHour int, ref time.Time) (Window, error) {
	if err := ValidateHours(startHour, endHour); err != nil {
		return Window{}, err
	}

	day := ref.In(loc)
	return Window{
		Start: time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc),
		End:   time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, loc),
	}, nil
}

// ValidateHours rejects out-of-range hours and midnight-spanning shifts.
func ValidateHours(startHour, endHour int) error {
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 || startHour >= endHour {
		return &InvalidShiftHoursError{StartHour: startHour, EndHour: endHour}
	}
	return nil
}

// DateKey returns the calendar-day key for ref in loc. Attendance records are
// unique per (user, DateKey).
func DateKey(loc *time.Location, ref time.Time) string {
	return ref.In(loc).Format("2006-01-02")
}
