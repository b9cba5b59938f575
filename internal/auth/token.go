// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionTokenTTL is the validity window of an issued token. Renewal re-issues
// the token with a fresh window, keeping it in sync with the session row.
const SessionTokenTTL = 7 * 24 * time.Hour

// MinSigningSecretBytes is the minimum accepted signing secret length.
// HS256 keys shorter than the hash output weaken the MAC.
const MinSigningSecretBytes = 32

// SessionTokenPayload is the decoded content of a signed session token.
type SessionTokenPayload struct {
	SessionID ulid.ULID
	UserID    string
	ExpiresAt time.Time
}

// sessionClaims is the JWT claim set for a session token.
type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// TokenCodec signs and verifies session tokens using HS256.
//
// The codec is stateless and performs no I/O. The signing secret is injected at
// construction and lives for the process lifetime; runtime rotation is a
// non-goal. Verification enforces the algorithm tag and the embedded expiry;
// whether the underlying session still exists is the caller's concern.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a TokenCodec with the given signing secret.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) < MinSigningSecretBytes {
		return nil, oops.Code("TOKEN_SECRET_TOO_SHORT").
			With("min_bytes", MinSigningSecretBytes).
			Errorf("signing secret must be at least %d bytes", MinSigningSecretBytes)
	}
	return &TokenCodec{secret: secret}, nil
}

// Sign produces a compact signed token encoding the payload with the given ttl.
// The token's expiry claim is now+ttl; the session row's expiry travels in the
// payload unchanged so renewal keeps both in lockstep.
func (c *TokenCodec) Sign(payload SessionTokenPayload, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", oops.Code("TOKEN_INVALID_TTL").
			With("ttl", ttl.String()).
			Errorf("token ttl must be positive")
	}
	if payload.UserID == "" {
		return "", oops.Code("TOKEN_INVALID_PAYLOAD").Errorf("user ID cannot be empty")
	}
	if payload.SessionID.Compare(ulid.ULID{}) == 0 {
		return "", oops.Code("TOKEN_INVALID_PAYLOAD").Errorf("session ID cannot be zero")
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		SessionID: payload.SessionID.String(),
	}
	// The token never outlives its own issuance window even if the session
	// row's expiry is further out.
	if capped := now.Add(ttl); payload.ExpiresAt.After(capped) {
		claims.ExpiresAt = jwt.NewNumericDate(capped)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return token, nil
}

// Verify checks signature integrity and the algorithm tag, and decodes the
// payload. A tampered or expired token always fails closed with a coded error:
// TOKEN_MALFORMED, TOKEN_SIGNATURE_INVALID, or TOKEN_EXPIRED.
func (c *TokenCodec) Verify(token string) (SessionTokenPayload, error) {
	if token == "" {
		return SessionTokenPayload{}, oops.Code("TOKEN_MALFORMED").Errorf("token cannot be empty")
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return SessionTokenPayload{}, oops.Code("TOKEN_EXPIRED").Wrap(err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return SessionTokenPayload{}, oops.Code("TOKEN_SIGNATURE_INVALID").Wrap(err)
		default:
			return SessionTokenPayload{}, oops.Code("TOKEN_MALFORMED").Wrap(err)
		}
	}

	sessionID, err := ulid.Parse(claims.SessionID)
	if err != nil {
		return SessionTokenPayload{}, oops.Code("TOKEN_MALFORMED").
			With("operation", "parse session id claim").
			Wrap(err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return SessionTokenPayload{}, oops.Code("TOKEN_MALFORMED").Errorf("token is missing required claims")
	}

	return SessionTokenPayload{
		SessionID: sessionID,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
