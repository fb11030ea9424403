/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements identity.Directory, attendance.Store and leave.TxStore using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

CONDITIONAL WRITES:
  Every mutating operation is a single conditional write rather than a
  read-then-write:
  - attendance check-in:  INSERT guarded by UNIQUE(user_id, date)
  - attendance check-out: UPDATE ... WHERE check_out_time IS NULL
  - request transitions:  UPDATE ... WHERE status = 'pending'
  - ledger debit:         UPDATE ... WHERE balance >= :days, paired with an
                          append-only entry table UNIQUE(request_id)
  A predicate miss is reported to the domain layer, never retried here.

KEY TABLES:
  users                 Identity records (read-only to the engine)
  leave_types           Static catalog, seeded on migrate
  attendance_records    One row per (user_id, date)
  leave_balances        One row per (user_id, leave_type_id, year)
  leave_ledger_entries  Append-only debit log, UNIQUE(request_id)
  leave_requests        Approval workflow rows

AMOUNT STORAGE:
  Day and hour quantities are REAL columns so the conditional debit can do
  its arithmetic inside the single UPDATE. All quantities in this system are
  multiples of 0.5, which REAL represents exactly; the domain layer converts
  back to decimal at the boundary.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block and
  there is a single writer at a time.

MIGRATION:
  Schema is auto-migrated on New(). For production use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - attendance/types.go, leave/types.go: interface definitions
  - leave/request.go: the transactional approve path built on WithTx
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/peoplekit/hr-engine/attendance"
	"github.com/peoplekit/hr-engine/identity"
	"github.com/peoplekit/hr-engine/leave"
	"github.com/peoplekit/hr-engine/shift"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// dbtx abstracts *sql.DB and *sql.Tx so the same query helpers serve both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: serializes writers at the pool level and keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Identity (owned by the identity subsystem; the engine only reads)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'employee',
		shift_start_hour INTEGER NOT NULL,
		shift_end_hour INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Static leave catalog
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		annual_quota REAL NOT NULL
	);

	-- One attendance record per user per calendar day
	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		shift_start TEXT NOT NULL,
		shift_end TEXT NOT NULL,
		check_in_time TEXT NOT NULL,
		check_in_status TEXT NOT NULL,
		check_out_time TEXT,
		check_out_status TEXT,
		total_hours REAL NOT NULL DEFAULT 0,
		overtime_hours REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at-most-one record per user per day. Concurrent check-ins
	-- race on this index and exactly one insert wins.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_user_date
		ON attendance_records(user_id, date);

	CREATE INDEX IF NOT EXISTS idx_attendance_user
		ON attendance_records(user_id, date DESC);

	-- Balance row per (user, leave type, benefit year)
	CREATE TABLE IF NOT EXISTS leave_balances (
		user_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		allocated REAL NOT NULL DEFAULT 0,
		used REAL NOT NULL DEFAULT 0,
		balance REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, leave_type_id, year)
	);

	-- Append-only debit log; UNIQUE(request_id) is the idempotency key
	CREATE TABLE IF NOT EXISTS leave_ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		request_id TEXT NOT NULL UNIQUE,
		days REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user
		ON leave_ledger_entries(user_id, leave_type_id, year);

	-- Leave requests (approval workflow)
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		day_type TEXT NOT NULL,
		total_days REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT,
		approved_by TEXT,
		approved_at TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user
		ON leave_requests(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.seedLeaveTypes()
}

// seedLeaveTypes installs the static catalog. INSERT OR IGNORE keeps
// operator edits across restarts.
func (s *Store) seedLeaveTypes() error {
	seed := []leave.Type{
		{ID: "annual", Name: "Annual Leave", AnnualQuota: decimal.NewFromInt(12)},
		{ID: "sick", Name: "Sick Leave", AnnualQuota: decimal.NewFromInt(10)},
		{ID: "unpaid", Name: "Unpaid Leave", AnnualQuota: decimal.NewFromInt(30)},
	}
	for _, lt := range seed {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO leave_types (id, name, annual_quota) VALUES (?, ?, ?)",
			lt.ID, lt.Name, lt.AnnualQuota.InexactFloat64(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// IDENTITY (identity.Directory)
// =============================================================================

// UserByID returns the user, or nil when no such user exists.
func (s *Store) UserByID(ctx context.Context, id string) (*identity.User, error) {
	var u identity.User
	var role string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, shift_start_hour, shift_end_hour FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &role, &u.ShiftStartHour, &u.ShiftEndHour)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = identity.Role(role)
	return &u, nil
}

// SaveUser upserts a user. Admin/seed path; shift hours are validated so a
// midnight-spanning shift can never be configured.
func (s *Store) SaveUser(ctx context.Context, u identity.User) error {
	if err := shift.ValidateHours(u.ShiftStartHour, u.ShiftEndHour); err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, name, email, role, shift_start_hour, shift_end_hour, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			shift_start_hour = excluded.shift_start_hour,
			shift_end_hour = excluded.shift_end_hour
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, string(u.Role), u.ShiftStartHour, u.ShiftEndHour,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]identity.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, shift_start_hour, shift_end_hour FROM users ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		var u identity.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &u.ShiftStartHour, &u.ShiftEndHour); err != nil {
			return nil, err
		}
		u.Role = identity.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// ATTENDANCE (attendance.Store)
// =============================================================================

// Insert creates the day's attendance record. The UNIQUE(user_id, date)
// index turns a concurrent duplicate into ErrAlreadyCheckedIn.
func (s *Store) Insert(ctx context.Context, rec *attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO attendance_records
		(id, user_id, date, shift_start, shift_end, check_in_time, check_in_status,
		 total_hours, overtime_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Date,
		rec.ShiftStart.Format(time.RFC3339),
		rec.ShiftEnd.Format(time.RFC3339),
		rec.CheckInTime.Format(time.RFC3339),
		string(rec.CheckInStatus),
		rec.TotalHours.InexactFloat64(),
		rec.OvertimeHours.InexactFloat64(),
		now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &attendance.ConflictError{
				UserID: rec.UserID,
				Date:   rec.Date,
				Kind:   attendance.ErrAlreadyCheckedIn,
			}
		}
		return fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return nil
}

// CloseOpen applies the checkout fields, guarded by check_out_time IS NULL.
func (s *Store) CloseOpen(ctx context.Context, rec *attendance.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE attendance_records
		SET check_out_time = ?, check_out_status = ?, total_hours = ?,
		    overtime_hours = ?, updated_at = ?
		WHERE user_id = ? AND date = ? AND check_out_time IS NULL
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.CheckOutTime.Format(time.RFC3339),
		string(*rec.CheckOutStatus),
		rec.TotalHours.InexactFloat64(),
		rec.OvertimeHours.InexactFloat64(),
		time.Now().UTC().Format(time.RFC3339),
		rec.UserID, rec.Date,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close attendance record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get returns the record for (userID, date), nil when absent.
func (s *Store) Get(ctx context.Context, userID, date string) (*attendance.Record, error) {
	recs, err := s.queryAttendance(ctx,
		attendanceSelect+" WHERE user_id = ? AND date = ?", userID, date)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// ListRange returns records with date in [from, to], newest first.
func (s *Store) ListRange(ctx context.Context, userID, from, to string) ([]*attendance.Record, error) {
	return s.queryAttendance(ctx,
		attendanceSelect+" WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date DESC",
		userID, from, to)
}

const attendanceSelect = `
	SELECT id, user_id, date, shift_start, shift_end, check_in_time, check_in_status,
	       check_out_time, check_out_status, total_hours, overtime_hours,
	       created_at, updated_at
	FROM attendance_records`

func (s *Store) queryAttendance(ctx context.Context, query string, args ...any) ([]*attendance.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []*attendance.Record
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanAttendance(rows *sql.Rows) (*attendance.Record, error) {
	var (
		rec                           attendance.Record
		shiftStart, shiftEnd, checkIn string
		checkInStatus                 string
		checkOutTime, checkOutStatus  sql.NullString
		totalHours, overtimeHours     float64
		createdAt, updatedAt          string
	)

	err := rows.Scan(
		&rec.ID, &rec.UserID, &rec.Date, &shiftStart, &shiftEnd,
		&checkIn, &checkInStatus, &checkOutTime, &checkOutStatus,
		&totalHours, &overtimeHours, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendance record: %w", err)
	}

	rec.ShiftStart, _ = time.Parse(time.RFC3339, shiftStart)
	rec.ShiftEnd, _ = time.Parse(time.RFC3339, shiftEnd)
	rec.CheckInTime, _ = time.Parse(time.RFC3339, checkIn)
	rec.CheckInStatus = shift.CheckInStatus(checkInStatus)
	if checkOutTime.Valid {
		t, _ := time.Parse(time.RFC3339, checkOutTime.String)
		rec.CheckOutTime = &t
	}
	if checkOutStatus.Valid {
		st := shift.CheckOutStatus(checkOutStatus.String)
		rec.CheckOutStatus = &st
	}
	rec.TotalHours = decimal.NewFromFloat(totalHours)
	rec.OvertimeHours = decimal.NewFromFloat(overtimeHours)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &rec, nil
}

// =============================================================================
// LEAVE CATALOG (leave.Store)
// =============================================================================

// LeaveType returns the catalog entry, nil when unknown.
func (s *Store) LeaveType(ctx context.Context, id string) (*leave.Type, error) {
	return leaveTypeIn(ctx, s.db, id)
}

func leaveTypeIn(ctx context.Context, q dbtx, id string) (*leave.Type, error) {
	var lt leave.Type
	var quota float64
	err := q.QueryRowContext(ctx,
		"SELECT id, name, annual_quota FROM leave_types WHERE id = ?", id,
	).Scan(&lt.ID, &lt.Name, &quota)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lt.AnnualQuota = decimal.NewFromFloat(quota)
	return &lt, nil
}

// ListLeaveTypes returns the full catalog.
func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.Type, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, annual_quota FROM leave_types ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []leave.Type
	for rows.Next() {
		var lt leave.Type
		var quota float64
		if err := rows.Scan(&lt.ID, &lt.Name, &quota); err != nil {
			return nil, err
		}
		lt.AnnualQuota = decimal.NewFromFloat(quota)
		types = append(types, lt)
	}
	return types, rows.Err()
}

// =============================================================================
// LEAVE BALANCES (leave.Store)
// =============================================================================

// GetBalance returns the balance row, nil when no allocation exists yet.
func (s *Store) GetBalance(ctx context.Context, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	return getBalanceIn(ctx, s.db, userID, leaveTypeID, year)
}

func getBalanceIn(ctx context.Context, q dbtx, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	var b leave.Balance
	var allocated, used, balance float64
	err := q.QueryRowContext(ctx,
		`SELECT user_id, leave_type_id, year, allocated, used, balance
		 FROM leave_balances WHERE user_id = ? AND leave_type_id = ? AND year = ?`,
		userID, leaveTypeID, year,
	).Scan(&b.UserID, &b.LeaveTypeID, &b.Year, &allocated, &used, &balance)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Allocated = decimal.NewFromFloat(allocated)
	b.Used = decimal.NewFromFloat(used)
	b.Balance = decimal.NewFromFloat(balance)
	return &b, nil
}

// UpsertAllocation creates or resets the year's allocation. Used days are
// preserved; balance is recomputed so balance == allocated - used holds.
func (s *Store) UpsertAllocation(ctx context.Context, userID, leaveTypeID string, year int, allocated decimal.Decimal) (*leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertAllocationIn(ctx, s.db, userID, leaveTypeID, year, allocated)
}

func upsertAllocationIn(ctx context.Context, q dbtx, userID, leaveTypeID string, year int, allocated decimal.Decimal) (*leave.Balance, error) {
	// The WHERE on DO UPDATE guards the balance >= 0 invariant: an allocation
	// below the days already used misses the predicate and updates nothing.
	query := `
		INSERT INTO leave_balances (user_id, leave_type_id, year, allocated, used, balance)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(user_id, leave_type_id, year) DO UPDATE SET
			allocated = excluded.allocated,
			balance = excluded.allocated - leave_balances.used
		WHERE excluded.allocated >= leave_balances.used
	`
	a := allocated.InexactFloat64()
	res, err := q.ExecContext(ctx, query, userID, leaveTypeID, year, a, a)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert allocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, leave.ErrAllocationBelowUsed
	}
	return getBalanceIn(ctx, q, userID, leaveTypeID, year)
}

// InsertLedgerEntry appends a debit record. Duplicate request_id means the
// debit already applied once.
func (s *Store) InsertLedgerEntry(ctx context.Context, entry *leave.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLedgerEntryIn(ctx, s.db, entry)
}

func insertLedgerEntryIn(ctx context.Context, q dbtx, entry *leave.LedgerEntry) error {
	query := `
		INSERT INTO leave_ledger_entries (id, user_id, leave_type_id, year, request_id, days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.LeaveTypeID, entry.Year,
		entry.RequestID, entry.Days.InexactFloat64(),
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrDuplicateDebit
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// DebitBalance is the single conditional write at the heart of the ledger:
// the arithmetic and the non-negative guard live in one UPDATE, so no
// interleaving of concurrent debits can overdraw.
func (s *Store) DebitBalance(ctx context.Context, userID, leaveTypeID string, year int, days decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return debitBalanceIn(ctx, s.db, userID, leaveTypeID, year, days)
}

func debitBalanceIn(ctx context.Context, q dbtx, userID, leaveTypeID string, year int, days decimal.Decimal) (bool, error) {
	query := `
		UPDATE leave_balances
		SET used = used + ?, balance = balance - ?
		WHERE user_id = ? AND leave_type_id = ? AND year = ? AND balance >= ?
	`
	d := days.InexactFloat64()
	res, err := q.ExecContext(ctx, query, d, d, userID, leaveTypeID, year, d)
	if err != nil {
		return false, fmt.Errorf("failed to debit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// LEAVE REQUESTS (leave.Store)
// =============================================================================

// CreateRequest persists a new pending request.
func (s *Store) CreateRequest(ctx context.Context, req *leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createRequestIn(ctx, s.db, req)
}

func createRequestIn(ctx context.Context, q dbtx, req *leave.Request) error {
	query := `
		INSERT INTO leave_requests
		(id, user_id, leave_type_id, start_date, end_date, day_type, total_days,
		 status, reason, approved_by, rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		req.ID, req.UserID, req.LeaveTypeID,
		req.StartDate.Format("2006-01-02"),
		req.EndDate.Format("2006-01-02"),
		string(req.DayType),
		req.TotalDays.InexactFloat64(),
		string(req.Status), req.Reason,
		req.CreatedAt.Format(time.RFC3339),
		req.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID, nil when absent.
func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	return getRequestIn(ctx, s.db, id)
}

func getRequestIn(ctx context.Context, q dbtx, id string) (*leave.Request, error) {
	reqs, err := queryRequests(ctx, q, requestSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return reqs[0], nil
}

// Transition moves a request out of pending. The WHERE status = 'pending'
// predicate makes racing processors resolve to exactly one winner.
// Cancellations do not stamp the processed-by fields.
func (s *Store) Transition(ctx context.Context, id string, to leave.Status, processedBy string, processedAt time.Time, rejectionReason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transitionIn(ctx, s.db, id, to, processedBy, processedAt, rejectionReason)
}

func transitionIn(ctx context.Context, q dbtx, id string, to leave.Status, processedBy string, processedAt time.Time, rejectionReason string) (bool, error) {
	var (
		res sql.Result
		err error
	)
	stamp := processedAt.Format(time.RFC3339)

	if to == leave.StatusCancelled {
		res, err = q.ExecContext(ctx, `
			UPDATE leave_requests
			SET status = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'`,
			string(to), stamp, id)
	} else {
		res, err = q.ExecContext(ctx, `
			UPDATE leave_requests
			SET status = ?, approved_by = ?, approved_at = ?, rejection_reason = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'`,
			string(to), processedBy, stamp, rejectionReason, stamp, id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to transition request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PendingRequests returns all pending requests, oldest first.
func (s *Store) PendingRequests(ctx context.Context) ([]*leave.Request, error) {
	return queryRequests(ctx, s.db,
		requestSelect+" WHERE status = 'pending' ORDER BY created_at ASC")
}

// RequestsByUser returns a user's requests, newest first.
func (s *Store) RequestsByUser(ctx context.Context, userID string) ([]*leave.Request, error) {
	return queryRequests(ctx, s.db,
		requestSelect+" WHERE user_id = ? ORDER BY created_at DESC", userID)
}

const requestSelect = `
	SELECT id, user_id, leave_type_id, start_date, end_date, day_type, total_days,
	       status, reason, approved_by, approved_at, rejection_reason,
	       created_at, updated_at
	FROM leave_requests`

func queryRequests(ctx context.Context, q dbtx, query string, args ...any) ([]*leave.Request, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*leave.Request
	for rows.Next() {
		var (
			req                  leave.Request
			startDate, endDate   string
			dayType, status      string
			totalDays            float64
			reason, approvedBy   sql.NullString
			approvedAt           sql.NullString
			rejectionReason      sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.LeaveTypeID, &startDate, &endDate,
			&dayType, &totalDays, &status, &reason, &approvedBy, &approvedAt,
			&rejectionReason, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}

		req.StartDate, _ = time.Parse("2006-01-02", startDate)
		req.EndDate, _ = time.Parse("2006-01-02", endDate)
		req.DayType = leave.DayType(dayType)
		req.TotalDays = decimal.NewFromFloat(totalDays)
		req.Status = leave.Status(status)
		req.Reason = reason.String
		req.ApprovedBy = approvedBy.String
		req.RejectionReason = rejectionReason.String
		if approvedAt.Valid && approvedAt.String != "" {
			t, _ := time.Parse(time.RFC3339, approvedAt.String)
			req.ApprovedAt = &t
		}
		req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		requests = append(requests, &req)
	}
	return requests, rows.Err()
}

// =============================================================================
// TRANSACTIONS (leave.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. The Store handed to fn
// runs every operation on that transaction; a returned error rolls everything
// back.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the in-transaction view of the leave store. It deliberately does
// not implement WithTx: transactions don't nest.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateRequest(ctx context.Context, req *leave.Request) error {
	return createRequestIn(ctx, ts.tx, req)
}

func (ts *txStore) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	return getRequestIn(ctx, ts.tx, id)
}

func (ts *txStore) Transition(ctx context.Context, id string, to leave.Status, processedBy string, processedAt time.Time, rejectionReason string) (bool, error) {
	return transitionIn(ctx, ts.tx, id, to, processedBy, processedAt, rejectionReason)
}

func (ts *txStore) PendingRequests(ctx context.Context) ([]*leave.Request, error) {
	return queryRequests(ctx, ts.tx,
		requestSelect+" WHERE status = 'pending' ORDER BY created_at ASC")
}

func (ts *txStore) RequestsByUser(ctx context.Context, userID string) ([]*leave.Request, error) {
	return queryRequests(ctx, ts.tx,
		requestSelect+" WHERE user_id = ? ORDER BY created_at DESC", userID)
}

func (ts *txStore) GetBalance(ctx context.Context, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	return getBalanceIn(ctx, ts.tx, userID, leaveTypeID, year)
}

func (ts *txStore) UpsertAllocation(ctx context.Context, userID, leaveTypeID string, year int, allocated decimal.Decimal) (*leave.Balance, error) {
	return upsertAllocationIn(ctx, ts.tx, userID, leaveTypeID, year, allocated)
}

func (ts *txStore) InsertLedgerEntry(ctx context.Context, entry *leave.LedgerEntry) error {
	return insertLedgerEntryIn(ctx, ts.tx, entry)
}

func (ts *txStore) DebitBalance(ctx context.Context, userID, leaveTypeID string, year int, days decimal.Decimal) (bool, error) {
	return debitBalanceIn(ctx, ts.tx, userID, leaveTypeID, year, days)
}

func (ts *txStore) LeaveType(ctx context.Context, id string) (*leave.Type, error) {
	return leaveTypeIn(ctx, ts.tx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
