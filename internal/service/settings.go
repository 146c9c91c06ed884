package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
)

// ErrEmptySettingsUpdate is returned when an update names no field.
var ErrEmptySettingsUpdate = errors.New("settings update has no fields")

// SettingsStore is the insert-only site_settings table.
type SettingsStore interface {
	GetLatestSiteSettings(ctx context.Context) (*model.SiteSettings, error)
	InsertSiteSettings(ctx context.Context, s model.SiteSettings) (*model.SiteSettings, error)
}

// SettingsCache holds the current settings for a short time.
type SettingsCache interface {
	GetSiteSettings(ctx context.Context) (*model.SiteSettings, error)
	SetSiteSettings(ctx context.Context, s *model.SiteSettings) error
	DeleteSiteSettings(ctx context.Context) error
}

// SettingsService reads and appends site settings.
type SettingsService struct {
	store  SettingsStore
	cache  SettingsCache
	logger *slog.Logger
}

// NewSettingsService creates a new SettingsService. cache may be nil.
func NewSettingsService(store SettingsStore, cache SettingsCache, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{store: store, cache: cache, logger: logger}
}

// Current returns the latest settings, or the defaults if none were saved.
func (s *SettingsService) Current(ctx context.Context) (model.SiteSettings, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetSiteSettings(ctx); err == nil && cached != nil {
			return *cached, nil
		}
	}

	latest, err := s.store.GetLatestSiteSettings(ctx)
	switch {
	case errors.Is(err, repository.ErrSettingsNotFound):
		latest = new(model.SiteSettings)
		*latest = model.DefaultSiteSettings()
	case err != nil:
		return model.SiteSettings{}, fmt.Errorf("load site settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetSiteSettings(ctx, latest); err != nil {
			s.logger.Warn("failed to cache site settings", slog.String("error", err.Error()))
		}
	}
	return *latest, nil
}

// Update appends a new settings row built from the current one.
func (s *SettingsService) Update(ctx context.Context, u model.SiteSettingsUpdate) (model.SiteSettings, error) {
	if u.IsEmpty() {
		return model.SiteSettings{}, ErrEmptySettingsUpdate
	}

	cur, err := s.store.GetLatestSiteSettings(ctx)
	switch {
	case errors.Is(err, repository.ErrSettingsNotFound):
		cur = new(model.SiteSettings)
		*cur = model.DefaultSiteSettings()
	case err != nil:
		return model.SiteSettings{}, fmt.Errorf("load site settings: %w", err)
	}

	saved, err := s.store.InsertSiteSettings(ctx, u.Apply(*cur))
	if err != nil {
		return model.SiteSettings{}, fmt.Errorf("save site settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.DeleteSiteSettings(ctx); err != nil {
			s.logger.Warn("failed to drop cached site settings", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("site settings updated",
		slog.Bool("api_enabled", saved.APIEnabled),
		slog.Bool("maintenance_mode", saved.MaintenanceMode),
	)
	return *saved, nil
}

// MaintenanceEnabled reports whether maintenance mode is on. Lookup failures
// read as off so an outage of the settings store does not take the site down.
func (s *SettingsService) MaintenanceEnabled(ctx context.Context) bool {
	cur, err := s.Current(ctx)
	if err != nil {
		s.logger.Warn("maintenance check failed", slog.String("error", err.Error()))
		return false
	}
	return cur.MaintenanceMode
}
