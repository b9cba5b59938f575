// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// Role is a user's function within an agency. Phone numbers are unique per
// (agency, phone, role), so the same person can hold several roles.
type Role string

// User roles.
const (
	RoleAgent  Role = "agent"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// Valid returns true for a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleOwner, RoleAdmin, RoleDriver:
		return true
	}
	return false
}

// Status is a user account's lifecycle state.
type Status string

// User statuses.
const (
	StatusNew       Status = "new"
	StatusInactive  Status = "inactive"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Name length constraint from the platform schema.
const MaxNameLength = 30

// phoneRegex matches a bare 10-digit subscriber number.
var phoneRegex = regexp.MustCompile(`^[0-9]{10}$`)

// User is an identity record within an agency (the tenant boundary).
// The auth core mutates only the password hash, the login/logout stamps,
// and the lockout bookkeeping; everything else belongs to the fleet domain.
type User struct {
	ID             string
	AgencyID       string
	Name           string
	Phone          string
	Email          string
	PasswordHash   string
	Role           Role
	Status         Status
	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
	LastLogout     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User instance. The ID is left empty; the
// directory assigns it on insert.
func NewUser(agencyID, name, phone, email, passwordHash string, role Role) (*User, error) {
	if agencyID == "" {
		return nil, oops.Code("USER_INVALID_AGENCY").Errorf("agency ID cannot be empty")
	}
	if name == "" || len(name) > MaxNameLength {
		return nil, oops.Code("USER_INVALID_NAME").
			With("max", MaxNameLength).
			Errorf("name must be 1-%d characters", MaxNameLength)
	}
	if err := ValidatePhone(phone); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("USER_INVALID_ROLE").
			With("role", string(role)).
			Errorf("unknown role: %s", role)
	}

	now := time.Now()
	return &User{
		AgencyID:     agencyID,
		Name:         name,
		Phone:        phone,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       StatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLocked returns true if the user is currently locked out.
func (u *User) IsLocked() bool {
	return IsLockedOut(u.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (u *User) RecordFailure() {
	u.FailedAttempts++
	u.LockedUntil = ComputeLockoutTime(u.FailedAttempts)
	u.UpdatedAt = time.Now()
}

// RecordSuccess resets failure counter and lockout.
func (u *User) RecordSuccess() {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = time.Now()
}

// ValidatePhone validates a login phone number: exactly ten digits, no
// punctuation. Country handling happens upstream in the UI.
func ValidatePhone(phone string) error {
	if phone == "" {
		return oops.Code("USER_INVALID_PHONE").Errorf("phone cannot be empty")
	}
	if !phoneRegex.MatchString(phone) {
		return oops.Code("USER_INVALID_PHONE").
			With("phone_length", len(phone)).
			Errorf("phone must be exactly 10 digits")
	}
	return nil
}

// UserDirectory manages user identity persistence. It is the auth core's only
// view of the fleet schema's users table.
type UserDirectory interface {
	// Create stores a new user and assigns its ID.
	Create(ctx context.Context, user *User) error

	// FindByID retrieves a user by ID.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByPhone retrieves a user by phone within an agency. A non-empty role
	// narrows the match; the zero Role matches any role.
	FindByPhone(ctx context.Context, agencyID, phone string, role Role) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateLastLogin stamps the user's last successful login.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdateLastLogout stamps the user's last logout.
	UpdateLastLogout(ctx context.Context, id string, at time.Time) error

	// Delete removes a user.
	Delete(ctx context.Context, id string) error
}
