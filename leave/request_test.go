package leave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplekit/hr-engine/leave"
	"github.com/peoplekit/hr-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// recordingEmitter captures emitted events; Fail makes every emission error.
type recordingEmitter struct {
	mu     sync.Mutex
	events []leave.Event
	Fail   bool
}

func (e *recordingEmitter) Emit(_ context.Context, ev leave.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Fail {
		return errors.New("downstream unavailable")
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEmitter) Events() []leave.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]leave.Event, len(e.events))
	copy(out, e.events)
	return out
}

func newTestService(t *testing.T) (*leave.Service, *leave.Ledger, *sqlite.Store, *recordingEmitter) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	emitter := &recordingEmitter{}
	return leave.NewService(store, emitter, log), leave.NewLedger(store), store, emitter
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func submitDays(t *testing.T, svc *leave.Service, userID string, n int) *leave.Request {
	t.Helper()
	start := date(2025, time.June, 2)
	req, err := svc.Submit(context.Background(), userID, "annual",
		start, start.AddDate(0, 0, n-1), leave.DayFull, "family trip")
	require.NoError(t, err)
	return req
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_FullDayRange(t *testing.T) {
	// GIVEN: a 3-day inclusive range
	// WHEN:  submitting a full-day request
	// THEN:  pending, total_days 3, nothing reserved against the ledger

	svc, ledger, _, _ := newTestService(t)

	req := submitDays(t, svc, "emp-1", 3)

	assert.Equal(t, leave.StatusPending, req.Status)
	assert.True(t, req.TotalDays.Equal(decimal.NewFromInt(3)))

	b, err := ledger.Balance(context.Background(), "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.IsZero(), "submission reserves nothing")
}

func TestSubmit_HalfDay(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	d := date(2025, time.June, 2)

	req, err := svc.Submit(context.Background(), "emp-1", "annual", d, d, leave.DayHalf, "")
	require.NoError(t, err)
	assert.True(t, req.TotalDays.Equal(decimal.NewFromFloat(0.5)))
}

func TestSubmit_EndBeforeStart_InvalidRange(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), "emp-1", "annual",
		date(2025, time.June, 5), date(2025, time.June, 2), leave.DayFull, "")
	assert.ErrorIs(t, err, leave.ErrInvalidRange)
	assert.True(t, leave.IsValidation(err))
}

func TestSubmit_MultiDayHalf_InvalidRange(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), "emp-1", "annual",
		date(2025, time.June, 2), date(2025, time.June, 3), leave.DayHalf, "")
	assert.ErrorIs(t, err, leave.ErrInvalidRange)
}

func TestSubmit_UnknownLeaveType(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	d := date(2025, time.June, 2)

	_, err := svc.Submit(context.Background(), "emp-1", "sabbatical", d, d, leave.DayFull, "")
	assert.ErrorIs(t, err, leave.ErrUnknownLeaveType)
}

// =============================================================================
// APPROVE
// =============================================================================

func TestApprove_DebitsLedgerAndNotifies(t *testing.T) {
	// GIVEN: balance 12 and a pending 2-day request
	// WHEN:  an admin approves
	// THEN:  approved, balance 10, one approval event emitted

	svc, ledger, _, emitter := newTestService(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(12))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 2)

	approved, err := svc.Approve(ctx, req.ID, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, "admin-1", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(10)))
	assert.True(t, b.Used.Equal(decimal.NewFromInt(2)))

	events := emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, leave.EventApproved, events[0].Type)
	assert.Equal(t, "emp-1", events[0].UserID)
	assert.Equal(t, req.ID, events[0].RequestID)
}

func TestApprove_Twice_AlreadyProcessed(t *testing.T) {
	svc, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(12))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 2)

	_, err = svc.Approve(ctx, req.ID, "admin-1")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, "admin-2")
	assert.ErrorIs(t, err, leave.ErrAlreadyProcessed)

	// The losing approval must not double-debit.
	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(decimal.NewFromInt(2)))
}

func TestApprove_InsufficientBalance_RollsBack(t *testing.T) {
	// GIVEN: balance 2 and a pending 3-day request
	// WHEN:  approving
	// THEN:  InsufficientBalanceError, request still pending, balance still 2

	svc, ledger, store, emitter := newTestService(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(2))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 3)

	_, err = svc.Approve(ctx, req.ID, "admin-1")
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status, "transition rolled back")

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(2)))

	assert.Empty(t, emitter.Events(), "no notification on failed approval")

	// The request stays approvable once funds arrive.
	_, err = ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, "admin-1")
	require.NoError(t, err)
}

func TestApprove_Unknown_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Approve(context.Background(), "nope", "admin-1")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestApprove_Concurrent_ExactlyOneWinner(t *testing.T) {
	// Two admins race on the same pending request: one wins, the other gets
	// ErrAlreadyProcessed, and the ledger is debited exactly once.

	svc, ledger, _, emitter := newTestService(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(12))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Approve(ctx, req.ID, "admin-1")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, leave.ErrAlreadyProcessed)
		}
	}
	assert.Equal(t, 1, wins)

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(decimal.NewFromInt(2)), "single debit")
	assert.Len(t, emitter.Events(), 1)
}

func TestApprove_EmitterFailure_DoesNotFailApproval(t *testing.T) {
	svc, ledger, store, emitter := newTestService(t)
	ctx := context.Background()
	emitter.Fail = true

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(12))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 1)

	approved, err := svc.Approve(ctx, req.ID, "admin-1")
	require.NoError(t, err, "notification failure must not surface")
	assert.Equal(t, leave.StatusApproved, approved.Status)

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
}

// =============================================================================
// REJECT
// =============================================================================

func TestReject_RequiresReason(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	req := submitDays(t, svc, "emp-1", 1)

	_, err := svc.Reject(context.Background(), req.ID, "admin-1", "   ")
	assert.ErrorIs(t, err, leave.ErrEmptyReason)
}

func TestReject_StampsReasonAndNotifies(t *testing.T) {
	svc, ledger, _, emitter := newTestService(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(12))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 2)

	rejected, err := svc.Reject(ctx, req.ID, "admin-1", "blackout period")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, rejected.Status)
	assert.Equal(t, "blackout period", rejected.RejectionReason)

	// Rejection never touches the ledger.
	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.IsZero())

	events := emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, leave.EventRejected, events[0].Type)
	assert.Equal(t, "blackout period", events[0].Reason)
}

func TestReject_AfterApprove_AlreadyProcessed(t *testing.T) {
	svc, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(12))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 1)

	_, err = svc.Approve(ctx, req.ID, "admin-1")
	require.NoError(t, err)

	_, err = svc.Reject(ctx, req.ID, "admin-2", "too late")
	assert.ErrorIs(t, err, leave.ErrAlreadyProcessed)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_ByOwner(t *testing.T) {
	svc, _, _, emitter := newTestService(t)
	req := submitDays(t, svc, "emp-1", 1)

	cancelled, err := svc.Cancel(context.Background(), req.ID, "emp-1")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	assert.Empty(t, emitter.Events(), "cancellation is requester-initiated, no notification")
}

func TestCancel_ByNonOwner_Forbidden(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	req := submitDays(t, svc, "emp-1", 1)

	_, err := svc.Cancel(context.Background(), req.ID, "emp-2")
	assert.ErrorIs(t, err, leave.ErrNotOwner)
}

func TestApprove_AfterCancel_AlreadyProcessed(t *testing.T) {
	svc, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(12))
	require.NoError(t, err)
	req := submitDays(t, svc, "emp-1", 2)

	_, err = svc.Cancel(ctx, req.ID, "emp-1")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, "admin-1")
	assert.ErrorIs(t, err, leave.ErrAlreadyProcessed)

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.IsZero())
}

// =============================================================================
// READS
// =============================================================================

func TestPendingAndForUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a := submitDays(t, svc, "emp-1", 1)
	b := submitDays(t, svc, "emp-2", 2)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	mine, err := svc.ForUser(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "emp-2", got.UserID)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}
