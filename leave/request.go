package leave

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// REQUEST SERVICE - submission and the pending -> terminal transitions
// =============================================================================

// Service drives the leave-request state machine. The approve path is the
// critical transactional operation: the status transition and the ledger
// debit commit together or not at all.
type Service struct {
	store   TxStore
	emitter Emitter
	log     *logrus.Logger
}

// NewService wires the request service. emitter may be nil; notifications
// are then dropped silently.
func NewService(store TxStore, emitter Emitter, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, emitter: emitter, log: log}
}

// Store exposes the underlying store for read paths and ledger construction.
func (s *Service) Store() TxStore { return s.store }

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and persists a new pending request. Nothing is reserved
// against the ledger at submission time.
func (s *Service) Submit(ctx context.Context, userID, leaveTypeID string, start, end time.Time, dayType DayType, reason string) (*Request, error) {
	lt, err := s.store.LeaveType(ctx, leaveTypeID)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrUnknownLeaveType
	}

	start = truncateDate(start)
	end = truncateDate(end)
	if end.Before(start) {
		return nil, &InvalidRangeError{
			Start:  start.Format("2006-01-02"),
			End:    end.Format("2006-01-02"),
			Detail: "end before start",
		}
	}
	if dayType != DayFull && dayType != DayHalf {
		return nil, &InvalidRangeError{
			Start:  start.Format("2006-01-02"),
			End:    end.Format("2006-01-02"),
			Detail: "day type must be full or half",
		}
	}
	if dayType == DayHalf && !start.Equal(end) {
		return nil, &InvalidRangeError{
			Start:  start.Format("2006-01-02"),
			End:    end.Format("2006-01-02"),
			Detail: "half day applies to single-day requests only",
		}
	}

	now := time.Now().UTC()
	req := &Request{
		ID:          uuid.NewString(),
		UserID:      userID,
		LeaveTypeID: leaveTypeID,
		StartDate:   start,
		EndDate:     end,
		DayType:     dayType,
		TotalDays:   TotalDaysFor(start, end, dayType),
		Status:      StatusPending,
		Reason:      reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user_id":    userID,
		"leave_type": leaveTypeID,
		"total_days": req.TotalDays.String(),
	}).Info("leave request submitted")

	return req, nil
}

// =============================================================================
// APPROVE - the critical transactional operation
// =============================================================================

// Approve moves the request to approved and debits the ledger, atomically.
//
// Inside one database transaction:
//  1. conditional transition WHERE status = 'pending' - a miss means another
//     processor won; the caller gets ErrAlreadyProcessed
//  2. ledger debit keyed by the request ID - a shortfall rolls the whole
//     transaction back, leaving the request pending and the ledger unchanged
//
// The approval notification is emitted after commit, best effort.
func (s *Service) Approve(ctx context.Context, requestID, approverID string) (*Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	err = s.store.WithTx(ctx, func(tx Store) error {
		applied, err := tx.Transition(ctx, requestID, StatusApproved, approverID, now, "")
		if err != nil {
			return err
		}
		if !applied {
			return ErrAlreadyProcessed
		}
		return debit(ctx, tx, req.UserID, req.LeaveTypeID, req.Year(), req.TotalDays, req.ID)
	})
	if err != nil {
		return nil, err
	}

	req.Status = StatusApproved
	req.ApprovedBy = approverID
	req.ApprovedAt = &now
	req.UpdatedAt = now

	s.emit(ctx, Event{
		Type:      EventApproved,
		UserID:    req.UserID,
		RequestID: req.ID,
		StartDate: req.StartDate.Format("2006-01-02"),
		EndDate:   req.EndDate.Format("2006-01-02"),
	})

	return req, nil
}

// =============================================================================
// REJECT
// =============================================================================

// Reject moves the request to rejected. Requires a non-empty reason. The
// ledger is never touched: pending requests reserve nothing.
func (s *Service) Reject(ctx context.Context, requestID, approverID, reason string) (*Request, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrEmptyReason
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	applied, err := s.store.Transition(ctx, requestID, StatusRejected, approverID, now, reason)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadyProcessed
	}

	req.Status = StatusRejected
	req.ApprovedBy = approverID
	req.ApprovedAt = &now
	req.RejectionReason = reason
	req.UpdatedAt = now

	s.emit(ctx, Event{
		Type:      EventRejected,
		UserID:    req.UserID,
		RequestID: req.ID,
		StartDate: req.StartDate.Format("2006-01-02"),
		EndDate:   req.EndDate.Format("2006-01-02"),
		Reason:    reason,
	})

	return req, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel lets the requester withdraw a still-pending request. No notification
// is emitted; the requester initiated it themselves.
func (s *Service) Cancel(ctx context.Context, requestID, requesterID string) (*Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}
	if req.UserID != requesterID {
		return nil, ErrNotOwner
	}

	now := time.Now().UTC()
	applied, err := s.store.Transition(ctx, requestID, StatusCancelled, requesterID, now, "")
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadyProcessed
	}

	req.Status = StatusCancelled
	req.UpdatedAt = now
	return req, nil
}

// =============================================================================
// READS
// =============================================================================

// Pending returns all pending requests, oldest first.
func (s *Service) Pending(ctx context.Context) ([]*Request, error) {
	return s.store.PendingRequests(ctx)
}

// ForUser returns the user's requests, newest first.
func (s *Service) ForUser(ctx context.Context, userID string) ([]*Request, error) {
	return s.store.RequestsByUser(ctx, userID)
}

// Get returns a single request, ErrNotFound when absent.
func (s *Service) Get(ctx context.Context, requestID string) (*Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}
	return req, nil
}

// emit delivers a notification best effort. Failures are logged, never
// propagated: the state transition has already committed.
func (s *Service) emit(ctx context.Context, ev Event) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":      ev.Type,
			"request_id": ev.RequestID,
		}).Warn("notification emission failed")
	}
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
