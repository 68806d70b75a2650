package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// User Methods
// -----------------------------------------------------------------------------

// CreateUser creates a new user account
func (db *DB) CreateUser(ctx context.Context, input *UserCreateInput) (*User, error) {
	var u User

	tier := input.Tier
	if tier == "" {
		tier = TierFree
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, tier)
		 VALUES (LOWER($1), $2, $3, $4)
		 RETURNING id, email, name, password_hash, tier, created_at, updated_at`,
		input.Email, input.Name, input.PasswordHash, tier,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("user with email %s already exists", input.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &u, nil
}

// GetUserByEmail retrieves a user by email (case-insensitive)
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User

	err := db.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, tier, created_at, updated_at
		 FROM users WHERE email = LOWER($1)`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User

	err := db.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, tier, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// UpdateUserTier changes a user's subscription tier
func (db *DB) UpdateUserTier(ctx context.Context, id uuid.UUID, tier string) (*User, error) {
	var u User

	err := db.pool.QueryRow(ctx,
		`UPDATE users SET tier = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, email, name, password_hash, tier, created_at, updated_at`,
		id, tier,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update user tier: %w", err)
	}

	return &u, nil
}
