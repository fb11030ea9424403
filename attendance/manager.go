package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/peoplekit/hr-engine/identity"
	"github.com/peoplekit/hr-engine/shift"
)

// =============================================================================
// MANAGER - orchestrates check-in/check-out as conditional writes
// =============================================================================

// Manager runs the attendance lifecycle for one organization.
type Manager struct {
	store Store
	users identity.Directory
	zone  *time.Location
	log   *logrus.Logger
}

// NewManager wires the manager. zone is the organization's fixed-offset
// timezone; all day boundaries and shift windows are resolved in it.
func NewManager(store Store, users identity.Directory, zone *time.Location, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{store: store, users: users, zone: zone, log: log}
}

// CheckIn opens the day's attendance record for userID at instant now.
//
// The write is a conditional insert: the store's UNIQUE(user_id, date)
// constraint guarantees that two concurrent check-ins produce exactly one
// record, with the loser surfacing ErrAlreadyCheckedIn. Never retried - a
// conflict here is a legitimate answer, not a transient fault.
func (m *Manager) CheckIn(ctx context.Context, userID string, now time.Time) (*Record, error) {
	user, err := m.users.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, identity.ErrUnauthorized
	}

	window, err := shift.Resolve(m.zone, user.ShiftStartHour, user.ShiftEndHour, now)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            uuid.NewString(),
		UserID:        userID,
		Date:          shift.DateKey(m.zone, now),
		ShiftStart:    window.Start,
		ShiftEnd:      window.End,
		CheckInTime:   now,
		CheckInStatus: shift.ResolveCheckIn(window, now),
		TotalHours:    decimal.Zero,
		OvertimeHours: decimal.Zero,
	}

	if err := m.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"user_id": userID,
		"date":    rec.Date,
		"status":  rec.CheckInStatus,
	}).Info("checked in")

	return rec, nil
}

// CheckOut closes the day's open record for userID at instant now.
//
// The mutation is a single conditional update (WHERE check_out_time IS NULL):
// at most one checkout ever lands, and the loser of a race gets
// ErrAlreadyCheckedOut. The checkout status is judged against the shift
// window captured at check-in.
func (m *Manager) CheckOut(ctx context.Context, userID string, now time.Time) (*Record, error) {
	date := shift.DateKey(m.zone, now)

	rec, err := m.store.Get(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	if rec == nil {
		return nil, &ConflictError{UserID: userID, Date: date, Kind: ErrNotCheckedIn}
	}

	window := rec.Window()
	status := shift.ResolveCheckOut(window, now)

	worked := now.Sub(rec.CheckInTime)
	overtime := shift.OvertimeDuration(window, now)

	closed := *rec
	closed.CheckOutTime = &now
	closed.CheckOutStatus = &status
	closed.TotalHours = hoursOf(worked)
	closed.OvertimeHours = hoursOf(overtime)

	applied, err := m.store.CloseOpen(ctx, &closed)
	if err != nil {
		return nil, err
	}
	if !applied {
		// The record existed a moment ago, so the predicate failed because
		// someone already closed it.
		return nil, &ConflictError{UserID: userID, Date: date, Kind: ErrAlreadyCheckedOut}
	}

	m.log.WithFields(logrus.Fields{
		"user_id":        userID,
		"date":           date,
		"status":         status,
		"total_hours":    closed.TotalHours.String(),
		"overtime_hours": closed.OvertimeHours.String(),
	}).Info("checked out")

	return &closed, nil
}

// Today returns the record for the day containing now, nil when the user has
// not checked in yet.
func (m *Manager) Today(ctx context.Context, userID string, now time.Time) (*Record, error) {
	return m.store.Get(ctx, userID, shift.DateKey(m.zone, now))
}

// History returns the user's records between from and to inclusive.
func (m *Manager) History(ctx context.Context, userID string, from, to time.Time) ([]*Record, error) {
	return m.store.ListRange(ctx, userID, shift.DateKey(m.zone, from), shift.DateKey(m.zone, to))
}

// hoursOf converts a duration to decimal hours with two-place precision.
func hoursOf(d time.Duration) decimal.Decimal {
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(d / time.Second)).
		Div(decimal.NewFromInt(3600)).
		Round(2)
}
