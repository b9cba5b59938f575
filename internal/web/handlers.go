// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/fleetpass/fleetpass/internal/auth"
	"github.com/fleetpass/fleetpass/internal/observability"
)

// Handler holds the auth services behind the HTTP surface.
type Handler struct {
	auth     *auth.Service
	accounts *auth.AccountService
	metrics  *observability.Metrics
}

// NewHandler creates the API handler.
func NewHandler(authSvc *auth.Service, accounts *auth.AccountService, metrics *observability.Metrics) (*Handler, error) {
	if authSvc == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account service is required")
	}
	return &Handler{auth: authSvc, accounts: accounts, metrics: metrics}, nil
}

// Routes builds the request mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", h.handleSignup)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/renew", h.handleRenew)
	mux.HandleFunc("GET /auth/me", h.handleMe)
	mux.HandleFunc("POST /auth/users/{id}/reset-password", h.handleResetPassword)
	return h.instrument(mux)
}

// instrument counts requests by route pattern and status.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if h.metrics != nil {
			path := r.Pattern
			if path == "" {
				path = "unmatched"
			}
			h.metrics.RequestsTotal.
				WithLabelValues(path, strconv.Itoa(rec.status)).
				Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type userResponse struct {
	ID         string      `json:"id"`
	AgencyID   string      `json:"agency_id"`
	Name       string      `json:"name"`
	Phone      string      `json:"phone"`
	Email      string      `json:"email"`
	Role       auth.Role   `json:"role"`
	Status     auth.Status `json:"status"`
	LastLogin  *time.Time  `json:"last_login,omitempty"`
	LastLogout *time.Time  `json:"last_logout,omitempty"`
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:         u.ID,
		AgencyID:   u.AgencyID,
		Name:       u.Name,
		Phone:      u.Phone,
		Email:      u.Email,
		Role:       u.Role,
		Status:     u.Status,
		LastLogin:  u.LastLogin,
		LastLogout: u.LastLogout,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type signupRequest struct {
	AgencyID string `json:"agency_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	user, err := h.accounts.SignupOwner(r.Context(), auth.NewOwner{
		AgencyID: req.AgencyID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

type loginRequest struct {
	AgencyID string `json:"agency_id"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	carrier := auth.NewCookieCarrier(w, r)
	user, err := h.auth.Login(r.Context(), carrier, req.AgencyID, req.Phone, req.Password)
	if err != nil {
		h.countLogin("failure")
		writeServiceError(w, err)
		return
	}

	h.countLogin("success")
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	carrier := auth.NewCookieCarrier(w, r)
	if err := h.auth.Logout(r.Context(), carrier); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renewResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	carrier := auth.NewCookieCarrier(w, r)
	session, err := h.auth.Renew(r.Context(), carrier)
	if err != nil {
		h.countRenewal("failure")
		writeServiceError(w, err)
		return
	}
	if session == nil {
		h.countRenewal("anonymous")
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "no valid session")
		return
	}

	h.countRenewal("success")
	writeJSON(w, http.StatusOK, renewResponse{
		SessionID: session.ID.String(),
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	carrier := auth.NewCookieCarrier(w, r)
	user, err := h.auth.CurrentUser(r.Context(), carrier)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "no valid session")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

type resetPasswordResponse struct {
	Password string `json:"password"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	plaintext, err := h.accounts.ResetPassword(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The plaintext appears in this one response and nowhere else.
	writeJSON(w, http.StatusOK, resetPasswordResponse{Password: plaintext})
}

func (h *Handler) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) countRenewal(outcome string) {
	if h.metrics != nil {
		h.metrics.RenewalsTotal.WithLabelValues(outcome).Inc()
	}
}

// statusForCode maps service error codes to HTTP statuses. Unknown codes are
// treated as internal errors.
func statusForCode(code string) int {
	switch code {
	case "AUTH_INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	case "AUTH_ACCOUNT_LOCKED":
		return http.StatusLocked
	case "SESSION_EXPIRED":
		return http.StatusUnauthorized
	case "SIGNUP_DUPLICATE_USER":
		return http.StatusConflict
	case "RESET_USER_NOT_FOUND":
		return http.StatusNotFound
	case "AUTH_EMPTY_PASSWORD",
		"USER_INVALID_AGENCY", "USER_INVALID_NAME", "USER_INVALID_PHONE",
		"USER_INVALID_HASH", "USER_INVALID_ROLE":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the error detail safe to show the client. Internal
// errors get a generic message; their detail goes to the log only.
func clientMessage(code string, err error) string {
	if statusForCode(code) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func writeServiceError(w http.ResponseWriter, err error) {
	code := "INTERNAL"
	var errCtx map[string]any
	if oopsErr, ok := oops.AsOops(err); ok {
		if c, ok := oopsErr.Code().(string); ok && c != "" {
			code = c
		}
		errCtx = oopsErr.Context()
	}

	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "code", code, "error", err)
	}
	if code == "AUTH_ACCOUNT_LOCKED" {
		if seconds, ok := errCtx["retry_after_seconds"].(int); ok && seconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
	}
	writeError(w, status, code, clientMessage(code, err))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}
