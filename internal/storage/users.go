package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// CreateUser inserts a new account. A duplicate email yields ErrConflict.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, u.ID, u.Email, u.DisplayName, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", classify(err))
	}
	return nil
}

// GetUser retrieves an account by ID.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", classify(err))
	}
	return &u, nil
}

// GetUserByEmail retrieves an account by its login email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", classify(err))
	}
	return &u, nil
}

// SaveRefreshToken stores a freshly issued refresh token.
func (db *DB) SaveRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`, rt.ID, rt.UserID, rt.Token, rt.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", classify(err))
	}
	return nil
}

// GetRefreshToken looks up a stored refresh token.
func (db *DB) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, revoked_at
		FROM refresh_tokens WHERE token = $1
	`, token).Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.RevokedAt)
	if err != nil {
		return nil, fmt.Errorf("querying refresh token: %w", classify(err))
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked. Revoking twice is ErrNotFound.
func (db *DB) RevokeRefreshToken(ctx context.Context, token string, at time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token = $1 AND revoked_at IS NULL
	`, token, at)
	if err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return mustAffect(tag)
}
