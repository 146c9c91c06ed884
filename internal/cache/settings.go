package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeenbase/zeenbase/internal/model"
)

const (
	settingsSpace = "settings"
	// settingsTTL bounds how stale the maintenance flag can be on other replicas.
	settingsTTL = 10 * time.Second
)

// GetSiteSettings returns cached settings, or nil on a miss.
func (c *Cache) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	data, err := c.client.Get(ctx, c.key(settingsSpace, "current")).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var s model.SiteSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, nil //nolint:nilerr
	}
	return &s, nil
}

// SetSiteSettings caches the current settings.
func (c *Cache) SetSiteSettings(ctx context.Context, s *model.SiteSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return c.client.Set(ctx, c.key(settingsSpace, "current"), data, settingsTTL).Err()
}

// DeleteSiteSettings drops the cached settings after an admin change.
func (c *Cache) DeleteSiteSettings(ctx context.Context) error {
	return c.client.Del(ctx, c.key(settingsSpace, "current")).Err()
}
