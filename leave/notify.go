package leave

import (
	"context"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// NOTIFICATION CONTRACT - fire and forget from the engine's perspective
// =============================================================================

// EventType identifies a leave lifecycle event.
type EventType string

const (
	EventApproved EventType = "leave_approved"
	EventRejected EventType = "leave_rejected"
)

// Event is the payload handed to the notification sink on a terminal
// transition. The engine guarantees correct content, not delivery.
type Event struct {
	Type      EventType
	UserID    string
	RequestID string
	StartDate string // YYYY-MM-DD
	EndDate   string
	Reason    string // rejection reason, empty for approvals
}

// Emitter is the external notification collaborator. Emission happens after
// the state transition has committed; a failed Emit is logged by the caller
// and never propagated or rolled back.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// LogEmitter writes events to the structured log. Default sink when no real
// delivery channel is configured.
type LogEmitter struct {
	Log *logrus.Logger
}

func (e *LogEmitter) Emit(_ context.Context, ev Event) error {
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"event":      ev.Type,
		"user_id":    ev.UserID,
		"request_id": ev.RequestID,
		"start_date": ev.StartDate,
		"end_date":   ev.EndDate,
		"reason":     ev.Reason,
	}).Info("leave notification")
	return nil
}
