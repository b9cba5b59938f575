// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fleetpass/fleetpass/internal/auth"
	"github.com/fleetpass/fleetpass/internal/auth/mocks"
	"github.com/fleetpass/fleetpass/pkg/errutil"
)

// testCarrier is an in-memory CredentialCarrier for exercising the service
// without HTTP plumbing.
type testCarrier struct {
	token   string
	has     bool
	expires time.Time
	cleared bool
}

func (c *testCarrier) Set(token string, expires time.Time) {
	c.token = token
	c.expires = expires
	c.has = true
}

func (c *testCarrier) Get() (string, bool) {
	return c.token, c.has
}

func (c *testCarrier) Clear() {
	c.token = ""
	c.has = false
	c.cleared = true
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("A100", "Asha", "9999999999", "asha@example.com", "$2a$10$stored-hash", auth.RoleAgent)
	require.NoError(t, err)
	user.ID = "U1000001"
	user.Status = auth.StatusActive
	return user
}

func TestNewService_NilDependencies(t *testing.T) {
	users := mocks.NewMockUserDirectory(t)
	sessions := mocks.NewMockSessionStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	codec := newTestCodec(t)

	tests := []struct {
		name string
		fn   func() (*auth.Service, error)
	}{
		{"nil users", func() (*auth.Service, error) {
			return auth.NewService(nil, sessions, hasher, codec)
		}},
		{"nil sessions", func() (*auth.Service, error) {
			return auth.NewService(users, nil, hasher, codec)
		}},
		{"nil hasher", func() (*auth.Service, error) {
			return auth.NewService(users, sessions, nil, codec)
		}},
		{"nil codec", func() (*auth.Service, error) {
			return auth.NewService(users, sessions, hasher, nil)
		}},
		{"nil logger", func() (*auth.Service, error) {
			return auth.NewServiceWithLogger(users, sessions, hasher, codec, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.fn()
			require.Error(t, err)
			assert.Nil(t, svc)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_DEPENDENCY")
		})
	}
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)

	t.Run("successful login creates session and sets token", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		user := activeUser(t)
		var created *auth.Session

		users.On("FindByPhone", ctx, "A100", "9999999999", auth.Role("")).Return(user, nil)
		hasher.On("Verify", "secret123", user.PasswordHash).Return(true, nil)
		users.On("Update", ctx, mock.AnythingOfType("*auth.User")).Return(nil)
		sessions.On("Create", ctx, mock.AnythingOfType("*auth.Session")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*auth.Session)
			}).Return(nil)
		users.On("UpdateLastLogin", ctx, user.ID, mock.AnythingOfType("time.Time")).Return(nil)

		carrier := &testCarrier{}
		got, err := svc.Login(ctx, carrier, "A100", "9999999999", "secret123")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		// The row exists before the token does, and the token names exactly
		// that row.
		require.NotNil(t, created)
		require.True(t, carrier.has)
		payload, err := codec.Verify(carrier.token)
		require.NoError(t, err)
		assert.Equal(t, created.ID, payload.SessionID)
		assert.Equal(t, user.ID, payload.UserID)
		assert.Equal(t, created.ExpiresAt, carrier.expires)
	})

	t.Run("unknown phone fails with constant time", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		users.On("FindByPhone", ctx, "A100", "1234567890", auth.Role("")).Return(nil, auth.ErrNotFound)
		// Verify still runs against the dummy hash to keep timing flat.
		hasher.On("Verify", "secret123", mock.AnythingOfType("string")).Return(false, nil)

		carrier := &testCarrier{}
		got, err := svc.Login(ctx, carrier, "A100", "1234567890", "secret123")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.False(t, carrier.has)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("wrong password records failure", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		user := activeUser(t)
		user.FailedAttempts = 2

		users.On("FindByPhone", ctx, "A100", "9999999999", auth.Role("")).Return(user, nil)
		hasher.On("Verify", "wrong-password", user.PasswordHash).Return(false, nil)
		users.On("Update", ctx, mock.MatchedBy(func(u *auth.User) bool {
			return u.FailedAttempts == 3
		})).Return(nil)

		_, err = svc.Login(ctx, &testCarrier{}, "A100", "9999999999", "wrong-password")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
		// Third failure: delay hint is 2^(3-1) = 4s.
		errutil.AssertErrorContext(t, err, "retry_delay", "4s")
	})

	t.Run("wrong password and unknown phone are indistinguishable", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		user := activeUser(t)
		users.On("FindByPhone", ctx, "A100", "9999999999", auth.Role("")).Return(user, nil)
		users.On("FindByPhone", ctx, "A100", "1234567890", auth.Role("")).Return(nil, auth.ErrNotFound)
		hasher.On("Verify", mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(false, nil)
		users.On("Update", ctx, mock.AnythingOfType("*auth.User")).Return(nil)

		_, errWrongPassword := svc.Login(ctx, &testCarrier{}, "A100", "9999999999", "wrong")
		_, errUnknownPhone := svc.Login(ctx, &testCarrier{}, "A100", "1234567890", "wrong")

		require.Error(t, errWrongPassword)
		require.Error(t, errUnknownPhone)
		assert.Equal(t, errWrongPassword.Error(), errUnknownPhone.Error())
	})

	t.Run("locked account rejected after password verification", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		user := activeUser(t)
		lockedUntil := time.Now().Add(15 * time.Minute)
		user.FailedAttempts = auth.LockoutThreshold
		user.LockedUntil = &lockedUntil

		users.On("FindByPhone", ctx, "A100", "9999999999", auth.Role("")).Return(user, nil)
		hasher.On("Verify", "secret123", user.PasswordHash).Return(true, nil)

		carrier := &testCarrier{}
		_, err = svc.Login(ctx, carrier, "A100", "9999999999", "secret123")
		require.Error(t, err)
		assert.False(t, carrier.has)
		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")

		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		seconds, ok := oopsErr.Context()["retry_after_seconds"].(int)
		require.True(t, ok, "lockout error should carry retry_after_seconds")
		assert.Greater(t, seconds, 0)
		assert.LessOrEqual(t, seconds, int(auth.LockoutDuration.Seconds())+1)
	})

	t.Run("session store failure surfaces", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		user := activeUser(t)
		users.On("FindByPhone", ctx, "A100", "9999999999", auth.Role("")).Return(user, nil)
		hasher.On("Verify", "secret123", user.PasswordHash).Return(true, nil)
		users.On("Update", ctx, mock.AnythingOfType("*auth.User")).Return(nil)
		sessions.On("Create", ctx, mock.AnythingOfType("*auth.Session")).Return(assert.AnError)

		carrier := &testCarrier{}
		_, err = svc.Login(ctx, carrier, "A100", "9999999999", "secret123")
		require.Error(t, err)
		assert.False(t, carrier.has)
		errutil.AssertErrorCode(t, err, "AUTH_SESSION_CREATE_FAILED")
	})
}

func TestService_CurrentUser(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)

	signToken := func(t *testing.T, sessionID ulid.ULID, userID string) string {
		t.Helper()
		token, err := codec.Sign(auth.SessionTokenPayload{
			SessionID: sessionID,
			UserID:    userID,
			ExpiresAt: time.Now().Add(time.Hour),
		}, time.Hour)
		require.NoError(t, err)
		return token
	}

	t.Run("no token resolves anonymous", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		user, err := svc.CurrentUser(ctx, &testCarrier{})
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("valid token resolves the user", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		user := activeUser(t)
		session, err := auth.NewSession(user.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)

		sessions.On("Get", ctx, session.ID).Return(session, nil)
		users.On("FindByID", ctx, user.ID).Return(user, nil)

		carrier := &testCarrier{token: signToken(t, session.ID, user.ID), has: true}
		got, err := svc.CurrentUser(ctx, carrier)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("tampered token resolves anonymous without store access", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		token := signToken(t, ulid.Make(), "U1000001")
		carrier := &testCarrier{token: token + "tampered", has: true}

		user, err := svc.CurrentUser(ctx, carrier)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("revoked session clears the credential", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		sessionID := ulid.Make()
		sessions.On("Get", ctx, sessionID).Return(nil, auth.ErrNotFound)

		carrier := &testCarrier{token: signToken(t, sessionID, "U1000001"), has: true}
		user, err := svc.CurrentUser(ctx, carrier)
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.True(t, carrier.cleared)
	})

	t.Run("expired session row clears the credential", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		session, err := auth.NewSession("U1000001", time.Now().Add(time.Hour))
		require.NoError(t, err)
		token := signToken(t, session.ID, "U1000001")
		session.ExpiresAt = time.Now().Add(-time.Minute)

		sessions.On("Get", ctx, session.ID).Return(session, nil)

		carrier := &testCarrier{token: token, has: true}
		user, err := svc.CurrentUser(ctx, carrier)
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.True(t, carrier.cleared)
	})

	t.Run("storage outage is an error", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		sessionID := ulid.Make()
		sessions.On("Get", ctx, sessionID).Return(nil, assert.AnError)

		carrier := &testCarrier{token: signToken(t, sessionID, "U1000001"), has: true}
		_, err = svc.CurrentUser(ctx, carrier)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_RESOLVE_FAILED")
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)

	t.Run("deletes session and clears credential", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		sessionID := ulid.Make()
		token, err := codec.Sign(auth.SessionTokenPayload{
			SessionID: sessionID,
			UserID:    "U1000001",
			ExpiresAt: time.Now().Add(time.Hour),
		}, time.Hour)
		require.NoError(t, err)

		sessions.On("Delete", ctx, sessionID).Return(nil)
		users.On("UpdateLastLogout", ctx, "U1000001", mock.AnythingOfType("time.Time")).Return(nil)

		carrier := &testCarrier{token: token, has: true}
		require.NoError(t, svc.Logout(ctx, carrier))
		assert.True(t, carrier.cleared)
		assert.False(t, carrier.has)

		// Second logout sees no token and is a no-op.
		require.NoError(t, svc.Logout(ctx, carrier))
	})

	t.Run("invalid token clears without store access", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		carrier := mocks.NewMockCredentialCarrier(t)
		carrier.On("Get").Return("garbage-token", true)
		carrier.On("Clear").Return()

		require.NoError(t, svc.Logout(ctx, carrier))
	})

	t.Run("store failure keeps the session deletable", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		sessionID := ulid.Make()
		token, err := codec.Sign(auth.SessionTokenPayload{
			SessionID: sessionID,
			UserID:    "U1000001",
			ExpiresAt: time.Now().Add(time.Hour),
		}, time.Hour)
		require.NoError(t, err)

		sessions.On("Delete", ctx, sessionID).Return(assert.AnError)

		carrier := &testCarrier{token: token, has: true}
		err = svc.Logout(ctx, carrier)
		require.Error(t, err)
		// The credential survives so a retry can finish the teardown.
		assert.True(t, carrier.has)
		errutil.AssertErrorCode(t, err, "AUTH_LOGOUT_FAILED")
	})
}

func TestService_Renew(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)

	t.Run("extends the session and reissues the token", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		session, err := auth.NewSession("U1000001", time.Now().Add(time.Hour))
		require.NoError(t, err)
		oldToken, err := codec.Sign(auth.SessionTokenPayload{
			SessionID: session.ID,
			UserID:    session.UserID,
			ExpiresAt: session.ExpiresAt,
		}, time.Hour)
		require.NoError(t, err)

		renewed := *session
		renewed.ExpiresAt = time.Now().Add(auth.DefaultSessionTTL)
		sessions.On("Renew", ctx, session.ID, mock.AnythingOfType("time.Time")).Return(&renewed, nil)

		carrier := &testCarrier{token: oldToken, has: true}
		got, err := svc.Renew(ctx, carrier)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, renewed.ExpiresAt, carrier.expires)

		payload, err := codec.Verify(carrier.token)
		require.NoError(t, err)
		assert.Equal(t, session.ID, payload.SessionID)
		assert.WithinDuration(t, renewed.ExpiresAt, payload.ExpiresAt, time.Second)
	})

	t.Run("no token is a no-op", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		session, err := svc.Renew(ctx, &testCarrier{})
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("dead session clears the credential and reports expiry", func(t *testing.T) {
		users := mocks.NewMockUserDirectory(t)
		sessions := mocks.NewMockSessionStore(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(users, sessions, hasher, codec)
		require.NoError(t, err)

		sessionID := ulid.Make()
		token, err := codec.Sign(auth.SessionTokenPayload{
			SessionID: sessionID,
			UserID:    "U1000001",
			ExpiresAt: time.Now().Add(time.Hour),
		}, time.Hour)
		require.NoError(t, err)

		sessions.On("Renew", ctx, sessionID, mock.AnythingOfType("time.Time")).Return(nil, auth.ErrNotFound)

		carrier := &testCarrier{token: token, has: true}
		session, err := svc.Renew(ctx, carrier)
		require.Error(t, err)
		assert.Nil(t, session)
		assert.True(t, carrier.cleared)
		errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")
	})
}
