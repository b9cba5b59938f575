// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// NewOwner is the input for registering an agency's owner account.
type NewOwner struct {
	AgencyID string
	Name     string
	Phone    string
	Email    string
	Password string
}

// AccountService handles account provisioning and password resets.
type AccountService struct {
	users     UserDirectory
	hasher    PasswordHasher
	passwords *PasswordGenerator
}

// NewAccountService creates an AccountService.
func NewAccountService(users UserDirectory, hasher PasswordHasher, passwords *PasswordGenerator) (*AccountService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if passwords == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password generator is required")
	}
	return &AccountService{users: users, hasher: hasher, passwords: passwords}, nil
}

// SignupOwner creates the owner user for an agency. The (agency, phone, owner)
// combination must be unique; the directory's constraint is the backstop for
// the race between the lookup and the insert.
func (s *AccountService) SignupOwner(ctx context.Context, input NewOwner) (*User, error) {
	existing, err := s.users.FindByPhone(ctx, input.AgencyID, input.Phone, RoleOwner)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "check existing owner").
			Wrap(err)
	}
	if existing != nil {
		return nil, oops.Code("SIGNUP_DUPLICATE_USER").
			With("agency_id", input.AgencyID).
			Errorf("user with this phone number and role already exists in this agency")
	}

	if input.Password == "" {
		return nil, ErrEmptyPassword
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(input.AgencyID, input.Name, input.Phone, input.Email, hash, RoleOwner)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost the race between the lookup and the insert; the constraint
			// caught it, and the outcome matches the pre-check.
			return nil, oops.Code("SIGNUP_DUPLICATE_USER").
				With("agency_id", input.AgencyID).
				Errorf("user with this phone number and role already exists in this agency")
		}
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	return user, nil
}

// ResetPassword generates a new random password for the user, persists its
// hash, and returns the plaintext exactly once for out-of-band delivery.
// The plaintext is never persisted or logged; if the caller loses it, the
// only recourse is another reset.
func (s *AccountService) ResetPassword(ctx context.Context, userID string) (string, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("RESET_USER_NOT_FOUND").
				With("user_id", userID).
				Wrap(err)
		}
		return "", oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "find user").
			Wrap(err)
	}

	plaintext, err := s.passwords.Generate()
	if err != nil {
		return "", oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "generate password").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return "", oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return "", oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "persist password hash").
			Wrap(err)
	}

	return plaintext, nil
}
