package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, hashed_password, full_name, role, is_active, verification_token, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.HashedPassword,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&u.VerificationToken,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

type CreateUserParams struct {
	Email             string
	HashedPassword    string
	FullName          string
	Role              string
	IsActive          bool
	VerificationToken pgtype.Text
}

const createUser = `
INSERT INTO users (email, hashed_password, full_name, role, is_active, verification_token)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
		arg.Role,
		arg.IsActive,
		arg.VerificationToken,
	)
	return scanUser(row)
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const touchUserLogin = `
UPDATE users
SET last_login_at = now(), updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (q *Queries) TouchUserLogin(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, touchUserLogin, id))
}

// ActivateUserByToken consumes a verification token: the account becomes
// active and the token is cleared so it cannot be replayed.
const activateUserByToken = `
UPDATE users
SET is_active = true, verification_token = NULL, updated_at = now()
WHERE verification_token = $1
RETURNING ` + userColumns

func (q *Queries) ActivateUserByToken(ctx context.Context, token string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, activateUserByToken, token))
}
