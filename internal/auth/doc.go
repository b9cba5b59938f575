// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

// Package auth provides authentication and session primitives for FleetPass.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their respective
// constructors:
//   - NewUser - creates a User with validated agency, phone, and role
//   - NewSession - creates a Session with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Dual-store model
//
// An authenticated browser holds a signed token (HS256 JWT carrying the session
// id, user id, and expiry) while the server holds a session row keyed by that
// id. The row is the source of truth: tokens are issued only after the row is
// durably created, and every resolution corroborates the token's claims against
// the store. Revoking the row invalidates the token immediately.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, logout, current-user resolution, session renewal
//   - AccountService - owner signup and password reset
//   - Sweeper - periodic removal of expired session rows
//
// Services are created with New* constructors that validate dependencies.
package auth
