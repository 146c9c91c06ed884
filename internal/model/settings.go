package model

import "time"

// SiteSettings is one row of the insert-only settings history.
// The current settings are the row with the latest CreatedAt.
type SiteSettings struct {
	ID              int64     `json:"id"`
	APIEnabled      bool      `json:"api_enabled"`
	MaintenanceMode bool      `json:"maintenance_mode"`
	CreatedAt       time.Time `json:"created_at"`
}

// DefaultSiteSettings is what clients see before any row exists.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{APIEnabled: true}
}

// SiteSettingsUpdate is a partial update; nil fields carry forward.
type SiteSettingsUpdate struct {
	APIEnabled      *bool `json:"api_enabled"`
	MaintenanceMode *bool `json:"maintenance_mode"`
}

// Apply returns the settings that result from applying u on top of cur.
func (u SiteSettingsUpdate) Apply(cur SiteSettings) SiteSettings {
	next := SiteSettings{
		APIEnabled:      cur.APIEnabled,
		MaintenanceMode: cur.MaintenanceMode,
	}
	if u.APIEnabled != nil {
		next.APIEnabled = *u.APIEnabled
	}
	if u.MaintenanceMode != nil {
		next.MaintenanceMode = *u.MaintenanceMode
	}
	return next
}

// IsEmpty reports whether the update changes nothing.
func (u SiteSettingsUpdate) IsEmpty() bool {
	return u.APIEnabled == nil && u.MaintenanceMode == nil
}
