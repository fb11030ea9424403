/*
Package identity defines the user model consumed by the engine.

Users are owned by the identity subsystem and are read-only here: the engine
needs the role for authorization decisions at the API edge and the configured
shift hours to resolve attendance windows. Session issuance and credential
handling live outside this repository; callers arrive already authenticated.
*/
package identity

import (
	"context"
	"errors"
)

// Role gates HR-admin operations (approval, rejection, allocation).
type Role string

const (
	RoleEmployee Role = "employee"
	RoleHRAdmin  Role = "hr_admin"
)

// User is the engine's read-only view of a worker.
type User struct {
	ID             string
	Name           string
	Email          string
	Role           Role
	ShiftStartHour int
	ShiftEndHour   int
}

// IsAdmin reports whether the user may process leave requests.
func (u *User) IsAdmin() bool { return u.Role == RoleHRAdmin }

// ErrUnauthorized is returned when no authenticated user can be resolved.
var ErrUnauthorized = errors.New("unauthorized")

// Directory resolves users by ID. Implemented by the store.
type Directory interface {
	// UserByID returns the user, or nil when no such user exists.
	UserByID(ctx context.Context, id string) (*User, error)
}
