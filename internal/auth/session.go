// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is how long a session lives without renewal.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is the server-side record proving a user is authenticated.
// A user may hold any number of concurrent sessions.
type Session struct {
	ID        ulid.ULID
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a validated Session instance.
// The expiry must be strictly in the future.
func NewSession(userID string, expiresAt time.Time) (*Session, error) {
	if userID == "" {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be empty")
	}
	if !expiresAt.After(time.Now()) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}

	now := time.Now()
	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsExpiredAt returns true if the session would be expired at the given time.
// Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// SessionStore manages session persistence.
//
// The store is the source of truth for revocation: a signed token is only ever
// a hint, and a session deleted here is dead no matter what tokens still
// reference it.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by its ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id ulid.ULID) (*Session, error)

	// Renew extends the session's expiry to the given time and returns the
	// updated session. Returns ErrNotFound if the session is absent or already
	// expired; an expired row is never silently extended.
	Renew(ctx context.Context, id ulid.ULID, expiresAt time.Time) (*Session, error)

	// Delete removes a session by ID. Deleting a non-existent session is not
	// an error.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all sessions for a user.
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes all expired sessions and returns the count of
	// deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
