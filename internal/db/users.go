package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/storyreel/internal/models"
	"github.com/google/uuid"
)

// CreateUser inserts a new user record.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, display_name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		user.ID, user.Email, user.DisplayName,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

// GetUser retrieves a user by their ID.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, display_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, display_name, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// UpsertUser creates or updates a user record for the "login or register" flow.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = COALESCE(EXCLUDED.display_name, users.display_name),
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		user.ID, user.Email, user.DisplayName,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}
