// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"crypto/rand"
	"math/big"

	"github.com/samber/oops"
)

// Generated password policy. The charset omits look-alike characters (0/O,
// 1/l/I) because these passwords are read to users over the phone.
const (
	DefaultResetPasswordLength  = 12
	DefaultResetPasswordCharset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// PasswordGenerator produces random plaintext passwords for reset delivery.
type PasswordGenerator struct {
	length  int
	charset string
}

// NewPasswordGenerator creates a PasswordGenerator with the given policy.
// Zero values fall back to the defaults.
func NewPasswordGenerator(length int, charset string) *PasswordGenerator {
	if length <= 0 {
		length = DefaultResetPasswordLength
	}
	if charset == "" {
		charset = DefaultResetPasswordCharset
	}
	return &PasswordGenerator{length: length, charset: charset}
}

// Generate returns a fixed-length random password drawn uniformly from the
// charset. Fails only on entropy exhaustion.
func (g *PasswordGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(g.charset)))
	out := make([]byte, g.length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", oops.Code("PASSWORD_GENERATE_FAILED").
				With("operation", "crypto/rand.Int").
				Wrap(err)
		}
		out[i] = g.charset[n.Int64()]
	}
	return string(out), nil
}
