package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE LEDGER
// =============================================================================

// Ledger tracks allocated/used/remaining leave per user, type and year.
// Debits are idempotent on the request ID and can never drive a balance
// negative. No credit path exists outside Allocate.
type Ledger struct {
	store TxStore
}

// NewLedger creates a ledger over the given store. Requiring a TxStore keeps
// the two debit writes inseparable: there is no way to run them outside a
// transaction.
func NewLedger(store TxStore) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the row for (userID, leaveTypeID, year). Lazy allocation:
// when no row exists yet the zero-value balance is returned, not an error.
func (l *Ledger) Balance(ctx context.Context, userID, leaveTypeID string, year int) (*Balance, error) {
	b, err := l.store.GetBalance(ctx, userID, leaveTypeID, year)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	if b == nil {
		return ZeroBalance(userID, leaveTypeID, year), nil
	}
	return b, nil
}

// Allocate creates or resets the benefit-year allocation. Used days are
// preserved on re-allocation. Administrative path only.
func (l *Ledger) Allocate(ctx context.Context, userID, leaveTypeID string, year int, days decimal.Decimal) (*Balance, error) {
	if days.IsNegative() {
		return nil, fmt.Errorf("allocation must not be negative, got %s", days)
	}
	lt, err := l.store.LeaveType(ctx, leaveTypeID)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrUnknownLeaveType
	}
	return l.store.UpsertAllocation(ctx, userID, leaveTypeID, year, days)
}

// AllocateDefault allocates the leave type's annual quota for the year.
func (l *Ledger) AllocateDefault(ctx context.Context, userID, leaveTypeID string, year int) (*Balance, error) {
	lt, err := l.store.LeaveType(ctx, leaveTypeID)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrUnknownLeaveType
	}
	return l.store.UpsertAllocation(ctx, userID, leaveTypeID, year, lt.AnnualQuota)
}

// Debit consumes days from the balance on behalf of requestID, in its own
// transaction. A shortfall returns InsufficientBalanceError and rolls back,
// leaving the ledger unchanged. Request approval skips this wrapper and runs
// the same writes inside its transition transaction via debit.
func (l *Ledger) Debit(ctx context.Context, userID, leaveTypeID string, year int, days decimal.Decimal, requestID string) error {
	return l.store.WithTx(ctx, func(tx Store) error {
		return debit(ctx, tx, userID, leaveTypeID, year, days, requestID)
	})
}

// debit performs the two debit writes on a tx-scoped store, in order:
//  1. append the ledger entry (UNIQUE on request ID - a duplicate means the
//     debit already applied, and debit returns success without touching the
//     balance again)
//  2. the conditional balance update, guarded by balance >= days
func debit(ctx context.Context, store Store, userID, leaveTypeID string, year int, days decimal.Decimal, requestID string) error {
	if !days.IsPositive() {
		return fmt.Errorf("debit must be positive, got %s", days)
	}

	entry := &LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		LeaveTypeID: leaveTypeID,
		Year:        year,
		RequestID:   requestID,
		Days:        days,
		CreatedAt:   time.Now().UTC(),
	}

	if err := store.InsertLedgerEntry(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateDebit) {
			// Retry of an already-applied debit.
			return nil
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}

	applied, err := store.DebitBalance(ctx, userID, leaveTypeID, year, days)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if !applied {
		available := decimal.Zero
		if b, berr := store.GetBalance(ctx, userID, leaveTypeID, year); berr == nil && b != nil {
			available = b.Balance
		}
		return &InsufficientBalanceError{
			UserID:      userID,
			LeaveTypeID: leaveTypeID,
			Year:        year,
			Available:   available,
			Requested:   days,
		}
	}

	return nil
}
