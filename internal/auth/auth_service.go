// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/fleetpass/fleetpass/pkg/errutil"
)

// Service provides authentication operations over the dual store: the signed
// client token and the server-side session table.
type Service struct {
	users    UserDirectory
	sessions SessionStore
	hasher   PasswordHasher
	codec    *TokenCodec
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates a Service with the default session TTL.
func NewService(users UserDirectory, sessions SessionStore, hasher PasswordHasher, codec *TokenCodec) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, codec, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(users UserDirectory, sessions SessionStore, hasher PasswordHasher, codec *TokenCodec, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user directory is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token codec is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		codec:    codec,
		ttl:      DefaultSessionTTL,
		logger:   logger,
	}, nil
}

// SetSessionTTL overrides the default session lifetime. Non-positive values
// are ignored. Call before the service starts handling requests.
func (s *Service) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$2a$10$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates a user by agency-scoped phone number and issues a
// session: the row is durably created first, then a token encoding exactly
// that row's id and expiry is signed and handed to the carrier.
//
// Unknown phone and wrong password produce the same AUTH_INVALID_CREDENTIALS
// failure, and a dummy hash is verified for missing users so response time
// does not reveal which factor was wrong. Repeated failures attach an
// escalating retry-delay hint to the error context, and a locked account
// reports the seconds remaining on the lockout.
func (s *Service) Login(ctx context.Context, carrier CredentialCarrier, agencyID, phone, password string) (*User, error) {
	user, lookupErr := s.users.FindByPhone(ctx, agencyID, phone, "")

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			targetHash = dummyPasswordHash
			userExists = false
		} else {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find user by phone").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify the password, even against the dummy hash.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid phone or password")
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		if userExists {
			// Record failure only for existing users.
			user.RecordFailure()
			if err := s.users.Update(ctx, user); err != nil {
				errutil.LogError(s.logger, "failed to record login failure", err)
			}
			// The delay hint escalates with the failure count. It travels in
			// the error context only; the client-visible message stays
			// identical to the unknown-phone case.
			if limit := CheckFailures(user.FailedAttempts, user.LockedUntil); limit.Delay > 0 {
				return nil, oops.Code("AUTH_INVALID_CREDENTIALS").
					With("retry_delay", limit.Delay.String()).
					Errorf("invalid phone or password")
			}
		}
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid phone or password")
	}

	// Check lockout AFTER password verification to maintain constant time.
	if user.IsLocked() {
		limit := CheckFailures(user.FailedAttempts, user.LockedUntil)
		// Rounded up so a compliant client never retries before the lockout ends.
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", user.LockedUntil).
			With("retry_after_seconds", int(limit.LockoutRemaining.Seconds())+1).
			Errorf("account is temporarily locked")
	}

	user.RecordSuccess()
	if err := s.users.Update(ctx, user); err != nil {
		// Login succeeds regardless; the counter reset is best effort.
		errutil.LogError(s.logger, "failed to reset login failure counter", err)
	}

	session, err := NewSession(user.ID, time.Now().Add(s.ttl))
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	// The row must be committed before any token referencing it exists.
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	token, err := s.codec.Sign(SessionTokenPayload{
		SessionID: session.ID,
		UserID:    user.ID,
		ExpiresAt: session.ExpiresAt,
	}, SessionTokenTTL)
	if err != nil {
		// The client never saw this session; remove the orphan row.
		if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil {
			errutil.LogError(s.logger, "failed to remove orphan session", delErr)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "sign session token").
			Wrap(err)
	}

	carrier.Set(token, session.ExpiresAt)

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		errutil.LogError(s.logger, "failed to stamp last login", err)
	}

	return user, nil
}

// CurrentUser resolves the authenticated user from the carried token.
//
// An absent, malformed, tampered, or expired token resolves to (nil, nil):
// an unauthenticated visitor is an expected state, not an error. The token's
// claims are corroborated against the session store, so a session revoked
// server-side goes anonymous immediately rather than riding out the token's
// validity window. Only a storage outage produces a non-nil error.
func (s *Service) CurrentUser(ctx context.Context, carrier CredentialCarrier) (*User, error) {
	token, ok := carrier.Get()
	if !ok {
		return nil, nil
	}

	payload, err := s.codec.Verify(token)
	if err != nil {
		// Fail closed: tampered or stale tokens mean anonymous, never 500.
		return nil, nil
	}

	session, err := s.sessions.Get(ctx, payload.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Session revoked server-side; discard the now-dead credential.
			carrier.Clear()
			return nil, nil
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "corroborate session").
			Wrap(err)
	}
	if session.IsExpired() {
		carrier.Clear()
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "find user by id").
			Wrap(err)
	}

	return user, nil
}

// Logout tears down the session named by the carried token. It is idempotent:
// an absent or invalid token is a no-op, and deleting an already-deleted
// session is not an error.
func (s *Service) Logout(ctx context.Context, carrier CredentialCarrier) error {
	token, ok := carrier.Get()
	if !ok {
		return nil
	}

	payload, err := s.codec.Verify(token)
	if err != nil {
		// Nothing trustworthy to tear down; drop the credential anyway.
		carrier.Clear()
		return nil
	}

	if err := s.sessions.Delete(ctx, payload.SessionID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", payload.SessionID.String()).
			Wrap(err)
	}

	if err := s.users.UpdateLastLogout(ctx, payload.UserID, time.Now()); err != nil {
		errutil.LogError(s.logger, "failed to stamp last logout", err)
	}

	carrier.Clear()
	return nil
}

// Renew extends the carried session's expiry and re-issues the token with the
// new window, keeping both stores in lockstep.
//
// An absent or invalid token is a no-op returning (nil, nil). A session that
// died server-side (deleted or swept) clears the credential and reports
// SESSION_EXPIRED; the caller should treat the requester as anonymous.
func (s *Service) Renew(ctx context.Context, carrier CredentialCarrier) (*Session, error) {
	token, ok := carrier.Get()
	if !ok {
		return nil, nil
	}

	payload, err := s.codec.Verify(token)
	if err != nil {
		return nil, nil
	}

	session, err := s.sessions.Renew(ctx, payload.SessionID, time.Now().Add(s.ttl))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			carrier.Clear()
			return nil, oops.Code("SESSION_EXPIRED").
				With("session_id", payload.SessionID.String()).
				Errorf("session is no longer valid")
		}
		return nil, oops.Code("AUTH_RENEW_FAILED").
			With("operation", "renew session").
			With("session_id", payload.SessionID.String()).
			Wrap(err)
	}

	newToken, err := s.codec.Sign(SessionTokenPayload{
		SessionID: session.ID,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}, SessionTokenTTL)
	if err != nil {
		return nil, oops.Code("AUTH_RENEW_FAILED").
			With("operation", "sign renewed token").
			Wrap(err)
	}

	carrier.Set(newToken, session.ExpiresAt)
	return session, nil
}
