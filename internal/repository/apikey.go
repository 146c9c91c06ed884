package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zeenbase/zeenbase/internal/model"
)

// Common errors for API key repository operations.
var (
	ErrAPIKeyNotFound = errors.New("API key not found")
	ErrAPIKeyExists   = errors.New("API key value already exists")
)

const apiKeyColumns = `id, user_id, key_value, is_active, created_at`

// CreateAPIKey inserts a new API key into the database.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, key_value, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.UserID,
		key.KeyValue,
		key.IsActive,
		key.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrAPIKeyExists
		}
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// GetActiveAPIKey returns the user's active key.
// If a rotation is mid-flight the newest active key wins.
func (r *Repository) GetActiveAPIKey(ctx context.Context, userID string) (*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	return scanAPIKey(r.pool.QueryRow(ctx, query, userID))
}

// GetActiveAPIKeyByValue resolves a presented key to its row.
func (r *Repository) GetActiveAPIKeyByValue(ctx context.Context, value string) (*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE key_value = $1 AND is_active
	`

	return scanAPIKey(r.pool.QueryRow(ctx, query, value))
}

// ListAPIKeysByUserID retrieves all API keys for a user, newest first.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// DeactivateOtherAPIKeys deactivates every active key of the user except
// keepID in a single statement. Returns the number of keys deactivated.
func (r *Repository) DeactivateOtherAPIKeys(ctx context.Context, userID, keepID string) (int64, error) {
	query := `
		UPDATE api_keys
		SET is_active = false
		WHERE user_id = $1 AND id <> $2 AND is_active
	`

	result, err := r.pool.Exec(ctx, query, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate API keys: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteAPIKey physically removes a key. Only used to undo a failed rotation.
func (r *Repository) DeleteAPIKey(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// scanAPIKey scans a single row into an APIKey model.
func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey

	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.KeyValue,
		&key.IsActive,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan API key: %w", err)
	}

	return &key, nil
}
