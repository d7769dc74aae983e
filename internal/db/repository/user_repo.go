package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is the persisted teacher account row.
type User struct {
	UserID       uuid.UUID
	Email        *string
	PasswordHash *string
	DisplayName  string
	Metadata     []byte
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// CreateUserParams holds the insertable columns for a new account.
type CreateUserParams struct {
	Email        *string
	PasswordHash *string
	DisplayName  string
	Metadata     []byte
}

// UserRepository exposes typed DB operations required by auth flows.
type UserRepository struct {
	db Querier
}

// NewUserRepository wraps a pgx querier for user-specific operations.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `user_id, email, password_hash, display_name, metadata, created_at, last_login_at`

// Create inserts a new account and returns the stored row.
func (r *UserRepository) Create(ctx context.Context, params CreateUserParams) (User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, display_name, metadata)
		VALUES ($1, $2, $3, COALESCE($4, '{}'::jsonb))
		RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.DisplayName, params.Metadata)
	return scanUser(row)
}

// GetByEmail fetches a user by email if present.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetByID fetches a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
	return scanUser(row)
}

// UpdateLogin records the last login timestamp.
func (r *UserRepository) UpdateLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE user_id = $1`, userID)
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE user_id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Metadata, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}
