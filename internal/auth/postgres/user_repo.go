// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/fleetpass/fleetpass/internal/auth"
)

const userColumns = `id, agency_id, name, phone, email, password_hash, user_role, status,
	       failed_attempts, locked_until, last_login, last_logout, created_at, updated_at`

// UserRepository implements auth.UserDirectory using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user. The database assigns the "U"-prefixed sequence id,
// which is written back into user.ID. A duplicate (agency, phone, role) hits
// the unique constraint and surfaces as USER_DUPLICATE.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (
			agency_id, name, phone, email, password_hash, user_role, status,
			failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		user.AgencyID,
		user.Name,
		user.Phone,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.FailedAttempts,
		user.LockedUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err := row.Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE").
				With("agency_id", user.AgencyID).
				With("role", string(user.Role)).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("agency_id", user.AgencyID).
			Wrap(err)
	}
	return nil
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FIND_BY_ID_FAILED").
			With("operation", "find user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// FindByPhone retrieves a user by phone within an agency. The zero Role
// matches any role; ties go to the earliest-created row.
func (r *UserRepository) FindByPhone(ctx context.Context, agencyID, phone string, role auth.Role) (*auth.User, error) {
	var row pgx.Row
	if role == "" {
		row = r.pool.QueryRow(ctx, `
			SELECT `+userColumns+`
			FROM users
			WHERE agency_id = $1 AND phone = $2
			ORDER BY created_at
			LIMIT 1
		`, agencyID, phone)
	} else {
		row = r.pool.QueryRow(ctx, `
			SELECT `+userColumns+`
			FROM users
			WHERE agency_id = $1 AND phone = $2 AND user_role = $3
		`, agencyID, phone, string(role))
	}

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FIND_BY_PHONE_FAILED").
			With("operation", "find user by phone").
			With("agency_id", agencyID).
			Wrap(err)
	}
	return user, nil
}

// Update updates an existing user's mutable fields.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			name = $2, email = $3, password_hash = $4, status = $5,
			failed_attempts = $6, locked_until = $7, updated_at = $8
		WHERE id = $1
	`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Status),
		user.FailedAttempts,
		user.LockedUntil,
		user.UpdatedAt,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash for a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET last_login = $2, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return oops.Code("USER_UPDATE_LAST_LOGIN_FAILED").
			With("operation", "update last_login").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateLastLogout stamps the user's last logout.
func (r *UserRepository) UpdateLastLogout(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET last_logout = $2, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return oops.Code("USER_UPDATE_LAST_LOGOUT_FAILED").
			With("operation", "update last_logout").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM users WHERE id = $1
	`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u       auth.User
		roleStr string
		statStr string
	)

	err := row.Scan(
		&u.ID, &u.AgencyID, &u.Name, &u.Phone, &u.Email, &u.PasswordHash,
		&roleStr, &statStr, &u.FailedAttempts, &u.LockedUntil,
		&u.LastLogin, &u.LastLogout, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	u.Role = auth.Role(roleStr)
	u.Status = auth.Status(statStr)
	return &u, nil
}

// Compile-time interface check.
var _ auth.UserDirectory = (*UserRepository)(nil)
