/*
handlers.go - HTTP handlers for the attendance and leave engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization and validation, then delegates to the domain layer.

ENDPOINTS:
  Attendance:
    POST /api/attendance/check-in        Open today's record
    POST /api/attendance/check-out       Close today's record
    GET  /api/attendance/today           Today's record (204 when none)
    GET  /api/attendance/history         Records in ?from=..&to=..

  Leave:
    POST /api/leave/requests             Submit a request
    GET  /api/leave/requests             Caller's requests
    GET  /api/leave/requests/pending     Pending queue        (admin)
    POST /api/leave/requests/{id}/approve                     (admin)
    POST /api/leave/requests/{id}/reject                      (admin)
    POST /api/leave/requests/{id}/cancel Requester withdraws
    GET  /api/leave/balance              ?leave_type_id=..&year=..
    GET  /api/leave/types                Catalog

  Admin:
    POST /api/admin/users                Upsert a user        (admin)
    POST /api/admin/allocations          Benefit-year grant   (admin)

ERROR MAPPING:
  400 validation          422 insufficient balance
  401 unauthenticated     404 not found
  403 role / ownership    409 state conflict (already checked in/out,
                              already processed)
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/peoplekit/hr-engine/attendance"
	"github.com/peoplekit/hr-engine/identity"
	"github.com/peoplekit/hr-engine/leave"
	"github.com/peoplekit/hr-engine/shift"
	"github.com/peoplekit/hr-engine/store/sqlite"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Attendance *attendance.Manager
	Leave      *leave.Service
	Ledger     *leave.Ledger
	Store      *sqlite.Store
	Zone       *time.Location
	Log        *logrus.Logger

	validate *validator.Validate

	// Clock indirection so tests can pin "now".
	Now func() time.Time
}

// NewHandler wires a handler over the store and the org timezone.
func NewHandler(store *sqlite.Store, zone *time.Location, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	ledger := leave.NewLedger(store)
	emitter := &leave.LogEmitter{Log: log}

	return &Handler{
		Attendance: attendance.NewManager(store, store, zone, log),
		Leave:      leave.NewService(store, emitter, log),
		Ledger:     ledger,
		Store:      store,
		Zone:       zone,
		Log:        log,
		validate:   validator.New(),
		Now:        time.Now,
	}
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// CheckIn opens the caller's attendance record for today.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	rec, err := h.Attendance.CheckIn(r.Context(), user.ID, h.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(rec))
}

// CheckOut closes the caller's attendance record for today.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	rec, err := h.Attendance.CheckOut(r.Context(), user.ID, h.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(rec))
}

// Today returns the caller's record for today, 204 when not checked in.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	rec, err := h.Attendance.Today(r.Context(), user.ID, h.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(rec))
}

// History returns the caller's records between ?from and ?to (YYYY-MM-DD),
// defaulting to the last 30 days.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	now := h.Now()

	from := now.AddDate(0, 0, -30)
	to := now
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.Zone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date (use YYYY-MM-DD)", err)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.Zone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date (use YYYY-MM-DD)", err)
			return
		}
		to = t
	}

	recs, err := h.Attendance.History(r.Context(), user.ID, from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]AttendanceDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// SubmitLeave creates a pending leave request for the caller.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var body SubmitLeaveRequest
	if !h.decodeValid(w, r, &body) {
		return
	}

	start, _ := time.ParseInLocation("2006-01-02", body.StartDate, h.Zone)
	end, _ := time.ParseInLocation("2006-01-02", body.EndDate, h.Zone)

	req, err := h.Leave.Submit(r.Context(), user.ID, body.LeaveTypeID, start, end,
		leave.DayType(body.DayType), body.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(req))
}

// MyLeaveRequests returns the caller's requests, newest first.
func (h *Handler) MyLeaveRequests(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	reqs, err := h.Leave.ForUser(r.Context(), user.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// PendingLeaveRequests returns the approval queue, oldest first.
func (h *Handler) PendingLeaveRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Leave.Pending(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ApproveLeave approves a pending request and debits the ledger.
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	req, err := h.Leave.Approve(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// RejectLeave rejects a pending request. Reason is mandatory.
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var body RejectLeaveRequest
	if !h.decodeValid(w, r, &body) {
		return
	}

	req, err := h.Leave.Reject(r.Context(), chi.URLParam(r, "id"), user.ID, body.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// CancelLeave lets the requester withdraw a still-pending request.
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	req, err := h.Leave.Cancel(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// GetBalance returns the caller's balance for ?leave_type_id and ?year
// (year defaults to the current benefit year).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	leaveTypeID := r.URL.Query().Get("leave_type_id")
	if leaveTypeID == "" {
		leaveTypeID = "annual"
	}
	year := h.Now().In(h.Zone).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, ok := parseYear(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid year", nil)
			return
		}
		year = parsed
	}

	b, err := h.Ledger.Balance(r.Context(), user.ID, leaveTypeID, year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// ListLeaveTypes returns the static catalog.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListLeaveTypes(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = LeaveTypeDTO{ID: lt.ID, Name: lt.Name, AnnualQuota: lt.AnnualQuota.InexactFloat64()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreateUser upserts a user record. Seed/admin path.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body CreateUserRequest
	if !h.decodeValid(w, r, &body) {
		return
	}

	u := identity.User{
		ID:             body.ID,
		Name:           body.Name,
		Email:          body.Email,
		Role:           identity.Role(body.Role),
		ShiftStartHour: body.ShiftStartHour,
		ShiftEndHour:   body.ShiftEndHour,
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(&u))
}

// CreateAllocation grants a benefit-year allocation, defaulting to the leave
// type's annual quota when days is omitted.
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	var body AllocationRequest
	if !h.decodeValid(w, r, &body) {
		return
	}

	var (
		b   *leave.Balance
		err error
	)
	if body.Days == nil {
		b, err = h.Ledger.AllocateDefault(r.Context(), body.UserID, body.LeaveTypeID, body.Year)
	} else {
		b, err = h.Ledger.Allocate(r.Context(), body.UserID, body.LeaveTypeID, body.Year,
			decimal.NewFromFloat(*body.Days))
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBalanceDTO(b))
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeValid decodes the JSON body and runs struct validation, writing the
// 400 itself on failure.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, leave.ErrNotFound):
		writeError(w, http.StatusNotFound, "leave request not found", nil)
	case errors.Is(err, leave.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not the request owner", nil)
	case attendance.IsConflict(err),
		errors.Is(err, attendance.ErrNotCheckedIn),
		leave.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, leave.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case leave.IsValidation(err), errors.Is(err, shift.ErrInvalidShiftHours):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		h.Log.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func parseYear(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y < 2000 || y > 2200 {
		return 0, false
	}
	return y, true
}
