package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zeenbase/zeenbase/internal/model"
)

// Common errors for profile repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
)

// UpsertProfile records the email last seen for a user id.
func (r *Repository) UpsertProfile(ctx context.Context, id, email string) error {
	query := `
		INSERT INTO profiles (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
		WHERE profiles.email IS DISTINCT FROM EXCLUDED.email
	`

	if _, err := r.pool.Exec(ctx, query, id, email, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// GetProfileByEmail looks a profile up case-insensitively.
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	query := `
		SELECT id, email, created_at
		FROM profiles
		WHERE lower(email) = lower($1)
	`

	var p model.Profile
	err := r.pool.QueryRow(ctx, query, email).Scan(&p.ID, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}

	return &p, nil
}

// GetProfileByID returns the profile for a user id.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	query := `
		SELECT id, email, created_at
		FROM profiles
		WHERE id = $1
	`

	var p model.Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by ID: %w", err)
	}

	return &p, nil
}
