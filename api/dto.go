/*
dto.go - Request/response data structures for the HTTP API

Request DTOs carry validator tags; handlers validate before touching the
domain layer so malformed input never reaches a write path.
*/
package api

import (
	"time"

	"github.com/peoplekit/hr-engine/attendance"
	"github.com/peoplekit/hr-engine/identity"
	"github.com/peoplekit/hr-engine/leave"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitLeaveRequest is the body of POST /api/leave/requests.
type SubmitLeaveRequest struct {
	LeaveTypeID string `json:"leave_type_id" validate:"required"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	DayType     string `json:"day_type" validate:"required,oneof=full half"`
	Reason      string `json:"reason" validate:"max=500"`
}

// RejectLeaveRequest is the body of POST /api/leave/requests/{id}/reject.
type RejectLeaveRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// CreateUserRequest is the body of POST /api/admin/users.
type CreateUserRequest struct {
	ID             string `json:"id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
	Role           string `json:"role" validate:"required,oneof=employee hr_admin"`
	ShiftStartHour int    `json:"shift_start_hour" validate:"min=0,max=23"`
	ShiftEndHour   int    `json:"shift_end_hour" validate:"min=0,max=23"`
}

// AllocationRequest is the body of POST /api/admin/allocations. Days omitted
// means "use the leave type's annual quota".
type AllocationRequest struct {
	UserID      string   `json:"user_id" validate:"required"`
	LeaveTypeID string   `json:"leave_type_id" validate:"required"`
	Year        int      `json:"year" validate:"required,min=2000,max=2200"`
	Days        *float64 `json:"days" validate:"omitempty,gte=0"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// AttendanceDTO mirrors one attendance record.
type AttendanceDTO struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Date           string  `json:"date"`
	ShiftStart     string  `json:"shift_start"`
	ShiftEnd       string  `json:"shift_end"`
	CheckInTime    string  `json:"check_in_time"`
	CheckInStatus  string  `json:"check_in_status"`
	CheckOutTime   *string `json:"check_out_time,omitempty"`
	CheckOutStatus *string `json:"check_out_status,omitempty"`
	TotalHours     float64 `json:"total_hours"`
	OvertimeHours  float64 `json:"overtime_hours"`
}

func toAttendanceDTO(rec *attendance.Record) AttendanceDTO {
	dto := AttendanceDTO{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Date:          rec.Date,
		ShiftStart:    rec.ShiftStart.Format(time.RFC3339),
		ShiftEnd:      rec.ShiftEnd.Format(time.RFC3339),
		CheckInTime:   rec.CheckInTime.Format(time.RFC3339),
		CheckInStatus: string(rec.CheckInStatus),
		TotalHours:    rec.TotalHours.InexactFloat64(),
		OvertimeHours: rec.OvertimeHours.InexactFloat64(),
	}
	if rec.CheckOutTime != nil {
		s := rec.CheckOutTime.Format(time.RFC3339)
		dto.CheckOutTime = &s
	}
	if rec.CheckOutStatus != nil {
		s := string(*rec.CheckOutStatus)
		dto.CheckOutStatus = &s
	}
	return dto
}

// LeaveRequestDTO mirrors one leave request.
type LeaveRequestDTO struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	LeaveTypeID     string  `json:"leave_type_id"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	DayType         string  `json:"day_type"`
	TotalDays       float64 `json:"total_days"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason,omitempty"`
	ApprovedBy      string  `json:"approved_by,omitempty"`
	ApprovedAt      *string `json:"approved_at,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toLeaveRequestDTO(req *leave.Request) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:              req.ID,
		UserID:          req.UserID,
		LeaveTypeID:     req.LeaveTypeID,
		StartDate:       req.StartDate.Format("2006-01-02"),
		EndDate:         req.EndDate.Format("2006-01-02"),
		DayType:         string(req.DayType),
		TotalDays:       req.TotalDays.InexactFloat64(),
		Status:          string(req.Status),
		Reason:          req.Reason,
		ApprovedBy:      req.ApprovedBy,
		RejectionReason: req.RejectionReason,
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
	}
	if req.ApprovedAt != nil {
		s := req.ApprovedAt.Format(time.RFC3339)
		dto.ApprovedAt = &s
	}
	return dto
}

func toLeaveRequestDTOs(reqs []*leave.Request) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}

// BalanceDTO mirrors one leave balance row.
type BalanceDTO struct {
	UserID      string  `json:"user_id"`
	LeaveTypeID string  `json:"leave_type_id"`
	Year        int     `json:"year"`
	Allocated   float64 `json:"allocated"`
	Used        float64 `json:"used"`
	Balance     float64 `json:"balance"`
}

func toBalanceDTO(b *leave.Balance) BalanceDTO {
	return BalanceDTO{
		UserID:      b.UserID,
		LeaveTypeID: b.LeaveTypeID,
		Year:        b.Year,
		Allocated:   b.Allocated.InexactFloat64(),
		Used:        b.Used.InexactFloat64(),
		Balance:     b.Balance.InexactFloat64(),
	}
}

// UserDTO mirrors one user record.
type UserDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Role           string `json:"role"`
	ShiftStartHour int    `json:"shift_start_hour"`
	ShiftEndHour   int    `json:"shift_end_hour"`
}

func toUserDTO(u *identity.User) UserDTO {
	return UserDTO{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           string(u.Role),
		ShiftStartHour: u.ShiftStartHour,
		ShiftEndHour:   u.ShiftEndHour,
	}
}

// LeaveTypeDTO mirrors one catalog entry.
type LeaveTypeDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	AnnualQuota float64 `json:"annual_quota"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
