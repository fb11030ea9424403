package shift

import "time"

// =============================================================================
// STATUS DERIVATION - computed once at write time, then stored
// =============================================================================

// CheckInStatus classifies a check-in instant against the shift window.
type CheckInStatus string

const (
	CheckInOnTime CheckInStatus = "ontime"
	CheckInLate   CheckInStatus = "late"
)

// CheckOutStatus classifies a check-out instant against the shift window.
type CheckOutStatus string

const (
	CheckOutOnTime    CheckOutStatus = "ontime"
	CheckOutOvertime  CheckOutStatus = "overtime"
	CheckOutLeftEarly CheckOutStatus = "leftearly"
)

// CheckOutTolerance absorbs clock skew at the exact shift-end boundary.
// A check-out within this grace past shift end is still on time.
const CheckOutTolerance = 60 * time.Second

// ResolveCheckIn derives the check-in status. Exactly at shift start is on time.
func ResolveCheckIn(w Window, at time.Time) CheckInStatus {
	if !at.After(w.Start) {
		return CheckInOnTime
	}
	return CheckInLate
}

// ResolveCheckOut derives the check-out status. Leaving before shift end is
// leftearly; anything past end+tolerance is overtime; the boundary band between
// them, tolerance included, is on time.
func ResolveCheckOut(w Window, at time.Time) CheckOutStatus {
	if at.Before(w.End) {
		return CheckOutLeftEarly
	}
	if at.After(w.End.Add(CheckOutTolerance)) {
		return CheckOutOvertime
	}
	return CheckOutOnTime
}

// OvertimeDuration returns how far past shift end the check-out landed, zero
// unless the derived status is overtime.
func OvertimeDuration(w Window, at time.Time) time.Duration {
	if ResolveCheckOut(w, at) != CheckOutOvertime {
		return 0
	}
	return at.Sub(w.End)
}
