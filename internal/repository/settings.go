package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zeenbase/zeenbase/internal/model"
)

// ErrSettingsNotFound is returned when no settings row exists yet.
var ErrSettingsNotFound = errors.New("site settings not found")

// GetLatestSiteSettings returns the most recently inserted settings row.
func (r *Repository) GetLatestSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	query := `
		SELECT id, api_enabled, maintenance_mode, created_at
		FROM site_settings
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var s model.SiteSettings
	err := r.pool.QueryRow(ctx, query).Scan(&s.ID, &s.APIEnabled, &s.MaintenanceMode, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get site settings: %w", err)
	}

	return &s, nil
}

// InsertSiteSettings appends a settings row. Rows are never updated in place.
func (r *Repository) InsertSiteSettings(ctx context.Context, s model.SiteSettings) (*model.SiteSettings, error) {
	query := `
		INSERT INTO site_settings (api_enabled, maintenance_mode, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	out := s
	if err := r.pool.QueryRow(ctx, query, s.APIEnabled, s.MaintenanceMode, time.Now()).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert site settings: %w", err)
	}

	return &out, nil
}
