/*
Package leave implements the leave-request approval workflow and the
leave-balance ledger it mutates.

PURPOSE:
  Two tightly coupled pieces live here:

  1. Balance ledger (ledger.go): allocated/used/balance per
     (user, leave type, year). Balances never go negative, balance always
     equals allocated - used, and the ONLY code path that debits the ledger
     is request approval.

  2. Request state machine (request.go):

       pending -> approved   (admin, debits ledger)
       pending -> rejected   (admin, reason required, ledger untouched)
       pending -> cancelled  (requester, ledger untouched)

     Terminal states are immutable. Every transition is a conditional update
     (WHERE status = 'pending'), so a race between two approvers - or an
     approval racing a cancellation - has exactly one winner; the loser gets
     ErrAlreadyProcessed.

RESERVATION POLICY:
  Balance is debited on approval only. Pending requests reserve nothing;
  rejection and cancellation never touch the ledger.

NOTIFICATIONS:
  Approval and rejection emit an event through the Emitter contract AFTER the
  transition has committed. Emission is best effort: failures are logged and
  never propagated or rolled back.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for day amounts (half days exist).
  2. Idempotency: debits are keyed by request ID and survive retries.
  3. One winner per conditional predicate; conflicts are answers, not faults.

SEE ALSO:
  - ledger.go: balance ledger
  - request.go: request lifecycle
  - store/sqlite: conditional-write implementation
*/
package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPES - static catalog
// =============================================================================

// Type is a leave category with an annual quota policy.
type Type struct {
	ID          string
	Name        string          // "annual", "sick", "unpaid"
	AnnualQuota decimal.Decimal // default days allocated per benefit year
}

// =============================================================================
// BALANCE - one row per (user, leave type, year)
// =============================================================================

// Balance is the ledger row for one user, leave type and benefit year.
// Invariant: Balance = Allocated - Used and Balance >= 0.
type Balance struct {
	UserID      string
	LeaveTypeID string
	Year        int
	Allocated   decimal.Decimal
	Used        decimal.Decimal
	Balance     decimal.Decimal
}

// ZeroBalance is what GetBalance returns before any allocation exists for the
// year (lazy allocation: absence of a row is a zero balance, not an error).
func ZeroBalance(userID, leaveTypeID string, year int) *Balance {
	return &Balance{
		UserID:      userID,
		LeaveTypeID: leaveTypeID,
		Year:        year,
		Allocated:   decimal.Zero,
		Used:        decimal.Zero,
		Balance:     decimal.Zero,
	}
}

// LedgerEntry is an immutable record of one debit. UNIQUE(RequestID) makes
// the debit idempotent across retries.
type LedgerEntry struct {
	ID          string
	UserID      string
	LeaveTypeID string
	Year        int
	RequestID   string
	Days        decimal.Decimal
	CreatedAt   time.Time
}

// =============================================================================
// REQUESTS
// =============================================================================

// Status of a leave request. Pending is the only non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool { return s != StatusPending }

// DayType distinguishes full-day from half-day requests.
type DayType string

const (
	DayFull DayType = "full"
	DayHalf DayType = "half"
)

// Request is a leave request moving through the approval workflow.
type Request struct {
	ID          string
	UserID      string
	LeaveTypeID string
	StartDate   time.Time // date granularity, org timezone midnight
	EndDate     time.Time
	DayType     DayType
	TotalDays   decimal.Decimal
	Status      Status
	Reason      string

	// Stamped by the terminal transition. For rejections ApprovedBy acts as
	// "processed by".
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Year returns the benefit year the request debits against.
func (r *Request) Year() int { return r.StartDate.Year() }

// TotalDaysFor derives the day count from an inclusive date range and the
// day type. Half days apply to single-day requests only; validation upstream
// guarantees start <= end.
func TotalDaysFor(start, end time.Time, dayType DayType) decimal.Decimal {
	days := int(end.Sub(start).Hours()/24) + 1
	total := decimal.NewFromInt(int64(days))
	if dayType == DayHalf {
		total = total.Mul(decimal.NewFromFloat(0.5))
	}
	return total
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence contract for the leave workflow. All mutations are
// single conditional writes; see store/sqlite for the reference implementation.
type Store interface {
	// CreateRequest persists a new pending request.
	CreateRequest(ctx context.Context, req *Request) error

	// GetRequest returns the request, nil when absent.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// Transition moves the request from pending to a terminal status,
	// stamping the processor and timestamp (and rejection reason when set).
	// Applied only WHERE status = 'pending'; returns false when the
	// predicate did not hold.
	Transition(ctx context.Context, id string, to Status, processedBy string, processedAt time.Time, rejectionReason string) (bool, error)

	// PendingRequests returns all pending requests, oldest first.
	PendingRequests(ctx context.Context) ([]*Request, error)

	// RequestsByUser returns a user's requests, newest first.
	RequestsByUser(ctx context.Context, userID string) ([]*Request, error)

	// GetBalance returns the balance row, nil when no allocation exists yet.
	GetBalance(ctx context.Context, userID, leaveTypeID string, year int) (*Balance, error)

	// UpsertAllocation creates or resets the year's allocation, preserving
	// used days. The only credit path in the system. An allocation below the
	// days already used returns ErrAllocationBelowUsed and changes nothing.
	UpsertAllocation(ctx context.Context, userID, leaveTypeID string, year int, allocated decimal.Decimal) (*Balance, error)

	// InsertLedgerEntry appends a debit record. A duplicate RequestID
	// returns ErrDuplicateDebit.
	InsertLedgerEntry(ctx context.Context, entry *LedgerEntry) error

	// DebitBalance applies used += days, balance -= days, guarded by
	// balance >= days. Returns false when the guard did not hold (including
	// when no row exists).
	DebitBalance(ctx context.Context, userID, leaveTypeID string, year int, days decimal.Decimal) (bool, error)

	// LeaveType returns the catalog entry, nil when unknown.
	LeaveType(ctx context.Context, id string) (*Type, error)
}

// TxStore is a Store that can run a function within a database transaction.
// The Store handed to fn operates inside that transaction and is NOT a
// TxStore (no nesting).
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
