// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the browser cookie used for authenticated sessions.
const SessionCookieName = "session"

// CredentialCarrier abstracts where the signed token lives on the client for
// the duration of one request/response cycle. The HTTP implementation is a
// cookie; tests use an in-memory carrier.
type CredentialCarrier interface {
	// Set stores the token on the client with the given expiry.
	Set(token string, expires time.Time)

	// Get returns the inbound token, or false if the client sent none.
	Get() (string, bool)

	// Clear instructs the client to discard the credential.
	Clear()
}

// CookieCarrier carries the session token in an HTTP cookie scoped to the
// whole application path. The cookie is HttpOnly (no script access), Secure
// (HTTPS only), and SameSite=Lax (blocks cross-site submission).
type CookieCarrier struct {
	w http.ResponseWriter
	r *http.Request
}

// NewCookieCarrier creates a CookieCarrier bound to one request/response pair.
func NewCookieCarrier(w http.ResponseWriter, r *http.Request) *CookieCarrier {
	return &CookieCarrier{w: w, r: r}
}

// Set stores the token in the session cookie.
func (c *CookieCarrier) Set(token string, expires time.Time) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get returns the inbound session cookie value.
func (c *CookieCarrier) Get() (string, bool) {
	cookie, err := c.r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear expires the session cookie.
func (c *CookieCarrier) Clear() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Compile-time interface check.
var _ CredentialCarrier = (*CookieCarrier)(nil)
