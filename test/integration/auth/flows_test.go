// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

//go:build integration

package auth_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

type userBody struct {
	ID       string `json:"id"`
	AgencyID string `json:"agency_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type renewBody struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type resetBody struct {
	Password string `json:"password"`
}

func signupOwner(client *http.Client, phone, password string) userBody {
	GinkgoHelper()

	resp := postJSON(client, "/auth/signup", map[string]string{
		"agency_id": "AG001",
		"name":      "Pat Owner",
		"phone":     phone,
		"email":     "owner@example.com",
		"password":  password,
	})
	Expect(resp.StatusCode).To(Equal(http.StatusCreated))

	var user userBody
	decodeBody(resp, &user)
	return user
}

func login(client *http.Client, phone, password string) *http.Response {
	GinkgoHelper()
	return postJSON(client, "/auth/login", map[string]string{
		"agency_id": "AG001",
		"phone":     phone,
		"password":  password,
	})
}

var _ = Describe("Authentication flows", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
	})

	Describe("Owner signup", func() {
		It("creates an owner account with a sequential id", func() {
			user := signupOwner(newBrowser(), "9000000001", "first-password")

			Expect(user.ID).To(MatchRegexp(`^U\d{7}$`))
			Expect(user.AgencyID).To(Equal("AG001"))
			Expect(user.Role).To(Equal("owner"))
			Expect(user.Status).To(Equal("new"))
		})

		It("rejects a duplicate phone within the agency", func() {
			client := newBrowser()
			signupOwner(client, "9000000002", "first-password")

			resp := postJSON(client, "/auth/signup", map[string]string{
				"agency_id": "AG001",
				"name":      "Second Owner",
				"phone":     "9000000002",
				"email":     "second@example.com",
				"password":  "other-password",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))

			var body errorBody
			decodeBody(resp, &body)
			Expect(body.Code).To(Equal("SIGNUP_DUPLICATE_USER"))
		})
	})

	Describe("Login and session", func() {
		It("completes the signup, login, me, logout round trip", func() {
			client := newBrowser()
			created := signupOwner(client, "9000000010", "round-trip-pw")

			resp := login(client, "9000000010", "round-trip-pw")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var loggedIn userBody
			decodeBody(resp, &loggedIn)
			Expect(loggedIn.ID).To(Equal(created.ID))

			resp = getPath(client, "/auth/me")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var me userBody
			decodeBody(resp, &me)
			Expect(me.ID).To(Equal(created.ID))

			resp = postJSON(client, "/auth/logout", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			_ = resp.Body.Close()

			resp = getPath(client, "/auth/me")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			_ = resp.Body.Close()
		})

		It("rejects a wrong password without revealing which part was wrong", func() {
			client := newBrowser()
			signupOwner(client, "9000000011", "correct-password")

			resp := login(client, "9000000011", "wrong-password")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			var wrongPassword errorBody
			decodeBody(resp, &wrongPassword)

			resp = login(client, "9000000099", "correct-password")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			var unknownPhone errorBody
			decodeBody(resp, &unknownPhone)

			Expect(wrongPassword).To(Equal(unknownPhone))
		})

		It("keeps other sessions alive when one device logs out", func() {
			phone := "9000000012"
			desktop := newBrowser()
			signupOwner(desktop, phone, "shared-password")

			resp := login(desktop, phone, "shared-password")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_ = resp.Body.Close()

			mobile := newBrowser()
			resp = login(mobile, phone, "shared-password")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_ = resp.Body.Close()

			resp = postJSON(desktop, "/auth/logout", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			_ = resp.Body.Close()

			resp = getPath(desktop, "/auth/me")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			_ = resp.Body.Close()

			resp = getPath(mobile, "/auth/me")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_ = resp.Body.Close()
		})
	})

	Describe("Account lockout", func() {
		It("locks the account after repeated failures even with the right password", func() {
			client := newBrowser()
			signupOwner(client, "9000000020", "locked-out-pw")

			for range 7 {
				resp := login(client, "9000000020", "bad-guess")
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				_ = resp.Body.Close()
			}

			resp := login(client, "9000000020", "locked-out-pw")
			Expect(resp.StatusCode).To(Equal(http.StatusLocked))

			var body errorBody
			decodeBody(resp, &body)
			Expect(body.Code).To(Equal("AUTH_ACCOUNT_LOCKED"))
		})
	})

	Describe("Session renewal", func() {
		It("re-issues the credential and reports the new expiry", func() {
			client := newBrowser()
			signupOwner(client, "9000000030", "renewal-pw")

			resp := login(client, "9000000030", "renewal-pw")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_ = resp.Body.Close()

			resp = postJSON(client, "/auth/renew", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var renewed renewBody
			decodeBody(resp, &renewed)
			Expect(renewed.SessionID).NotTo(BeEmpty())
			Expect(renewed.ExpiresAt).To(BeTemporally(">", time.Now().Add(6*24*time.Hour)))

			resp = getPath(client, "/auth/me")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_ = resp.Body.Close()
		})

		It("returns 401 without a session", func() {
			resp := postJSON(newBrowser(), "/auth/renew", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			_ = resp.Body.Close()
		})
	})

	Describe("Password reset", func() {
		It("replaces the password and returns the new one exactly once", func() {
			client := newBrowser()
			user := signupOwner(client, "9000000040", "old-password")

			resp := postJSON(client, "/auth/users/"+user.ID+"/reset-password", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var reset resetBody
			decodeBody(resp, &reset)
			Expect(reset.Password).To(HaveLen(12))

			resp = login(client, "9000000040", "old-password")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			_ = resp.Body.Close()

			resp = login(client, "9000000040", reset.Password)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_ = resp.Body.Close()
		})

		It("returns 404 for an unknown user", func() {
			resp := postJSON(newBrowser(), "/auth/users/U9999999/reset-password", map[string]string{})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			_ = resp.Body.Close()
		})
	})
})
