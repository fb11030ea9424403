package leave_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peoplekit/hr-engine/leave"
	"github.com/peoplekit/hr-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*leave.Ledger, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return leave.NewLedger(store), store
}

func days(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func debit(t *testing.T, store *sqlite.Store, userID, typeID string, year int, amount decimal.Decimal, requestID string) error {
	t.Helper()
	return leave.NewLedger(store).Debit(context.Background(), userID, typeID, year, amount, requestID)
}

// =============================================================================
// BALANCE / ALLOCATE
// =============================================================================

func TestBalance_NoAllocation_ZeroValue(t *testing.T) {
	// GIVEN: no allocation for the year
	// WHEN:  reading the balance
	// THEN:  a zero-value row, not an error

	ledger, _ := newTestLedger(t)

	b, err := ledger.Balance(context.Background(), "emp-1", "annual", 2025)
	require.NoError(t, err)

	assert.True(t, b.Allocated.IsZero())
	assert.True(t, b.Used.IsZero())
	assert.True(t, b.Balance.IsZero())
}

func TestAllocate_CreatesBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)

	b, err := ledger.Allocate(context.Background(), "emp-1", "annual", 2025, days(12))
	require.NoError(t, err)

	assert.True(t, b.Allocated.Equal(days(12)))
	assert.True(t, b.Used.IsZero())
	assert.True(t, b.Balance.Equal(days(12)))
}

func TestAllocate_NegativeDays_Rejected(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Allocate(context.Background(), "emp-1", "annual", 2025, days(-1))
	assert.Error(t, err)
}

func TestAllocate_UnknownType_Rejected(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Allocate(context.Background(), "emp-1", "sabbatical", 2025, days(5))
	assert.ErrorIs(t, err, leave.ErrUnknownLeaveType)
}

func TestAllocateDefault_UsesAnnualQuota(t *testing.T) {
	ledger, _ := newTestLedger(t)

	b, err := ledger.AllocateDefault(context.Background(), "emp-1", "sick", 2025)
	require.NoError(t, err)
	assert.True(t, b.Allocated.Equal(days(10)), "sick quota is 10 days")
}

func TestReallocate_PreservesUsedDays(t *testing.T) {
	// GIVEN: 12 allocated, 2 used
	// WHEN:  re-allocating 15 for the same year
	// THEN:  used stays 2 and balance becomes 13

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(12))
	require.NoError(t, err)
	require.NoError(t, debit(t, store, "emp-1", "annual", 2025, days(2), uuid.NewString()))

	b, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(15))
	require.NoError(t, err)

	assert.True(t, b.Used.Equal(days(2)))
	assert.True(t, b.Balance.Equal(days(13)))
}

func TestReallocate_BelowUsed_Rejected(t *testing.T) {
	// GIVEN: 12 allocated, 10 used
	// WHEN:  re-allocating 5 for the same year
	// THEN:  rejected, because balance would go negative; row unchanged

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(12))
	require.NoError(t, err)
	require.NoError(t, debit(t, store, "emp-1", "annual", 2025, days(10), uuid.NewString()))

	_, err = ledger.Allocate(ctx, "emp-1", "annual", 2025, days(5))
	assert.ErrorIs(t, err, leave.ErrAllocationBelowUsed)
	assert.True(t, leave.IsValidation(err))

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Allocated.Equal(days(12)))
	assert.True(t, b.Used.Equal(days(10)))
	assert.True(t, b.Balance.Equal(days(2)))
	assert.False(t, b.Balance.IsNegative(), "balance must never be negative")
}

// =============================================================================
// DEBIT
// =============================================================================

func TestDebit_MaintainsLedgerInvariant(t *testing.T) {
	// balance = allocated - used, after every debit

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(12))
	require.NoError(t, err)

	require.NoError(t, debit(t, store, "emp-1", "annual", 2025, days(2.5), uuid.NewString()))

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(days(2.5)))
	assert.True(t, b.Balance.Equal(days(9.5)))
	assert.True(t, b.Balance.Equal(b.Allocated.Sub(b.Used)))
}

func TestDebit_Insufficient_LeavesLedgerUnchanged(t *testing.T) {
	// GIVEN: balance 2
	// WHEN:  debiting 3
	// THEN:  InsufficientBalanceError, balance still 2

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(2))
	require.NoError(t, err)

	err = debit(t, store, "emp-1", "annual", 2025, days(3), uuid.NewString())
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	var ibe *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.True(t, ibe.Available.Equal(days(2)))
	assert.True(t, ibe.Requested.Equal(days(3)))

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(days(2)))
	assert.True(t, b.Used.IsZero())
}

func TestDebit_NoAllocation_Insufficient(t *testing.T) {
	_, store := newTestLedger(t)

	err := debit(t, store, "emp-1", "annual", 2025, days(1), uuid.NewString())
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
}

func TestDebit_SameRequestID_Idempotent(t *testing.T) {
	// GIVEN: a debit already applied for a request
	// WHEN:  retrying the same request ID
	// THEN:  success, and the balance moved only once

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(12))
	require.NoError(t, err)

	reqID := uuid.NewString()
	require.NoError(t, debit(t, store, "emp-1", "annual", 2025, days(2), reqID))
	require.NoError(t, debit(t, store, "emp-1", "annual", 2025, days(2), reqID))

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(days(2)), "debit applied exactly once")
	assert.True(t, b.Balance.Equal(days(10)))
}

func TestDebit_FailedAttempt_LeavesNoLedgerEntry(t *testing.T) {
	// GIVEN: a debit that failed on insufficient balance
	// WHEN:  retrying the same request ID after funds arrive
	// THEN:  the retry applies, proving the failed attempt left no entry
	//        behind to short-circuit it as a duplicate

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(1))
	require.NoError(t, err)

	reqID := uuid.NewString()
	err = debit(t, store, "emp-1", "annual", 2025, days(2), reqID)
	require.ErrorIs(t, err, leave.ErrInsufficientBalance)

	_, err = ledger.Allocate(ctx, "emp-1", "annual", 2025, days(5))
	require.NoError(t, err)
	require.NoError(t, debit(t, store, "emp-1", "annual", 2025, days(2), reqID))

	b, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(days(2)))
	assert.True(t, b.Balance.Equal(days(3)))
}

func TestDebit_NonPositive_Rejected(t *testing.T) {
	_, store := newTestLedger(t)

	err := debit(t, store, "emp-1", "annual", 2025, days(0), uuid.NewString())
	assert.Error(t, err)

	err = debit(t, store, "emp-1", "annual", 2025, days(-1), uuid.NewString())
	assert.Error(t, err)
}

func TestDebit_IndependentYears(t *testing.T) {
	// Balances are per benefit year; debiting 2025 leaves 2026 alone.

	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, "emp-1", "annual", 2025, days(12))
	require.NoError(t, err)
	_, err = ledger.Allocate(ctx, "emp-1", "annual", 2026, days(12))
	require.NoError(t, err)

	require.NoError(t, debit(t, store, "emp-1", "annual", 2025, days(4), uuid.NewString()))

	b25, err := ledger.Balance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	b26, err := ledger.Balance(ctx, "emp-1", "annual", 2026)
	require.NoError(t, err)

	assert.True(t, b25.Balance.Equal(days(8)))
	assert.True(t, b26.Balance.Equal(days(12)))
}
