package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/middleware"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/service"
)

// SettingsService reads and updates the site settings.
type SettingsService interface {
	Current(ctx context.Context) (model.SiteSettings, error)
	Update(ctx context.Context, u model.SiteSettingsUpdate) (model.SiteSettings, error)
}

// SettingsHandler handles site settings endpoints.
type SettingsHandler struct {
	logger   *slog.Logger
	settings SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(logger *slog.Logger, settings SettingsService) *SettingsHandler {
	return &SettingsHandler{logger: logger, settings: settings}
}

// Get handles GET /api/v1/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Current(r.Context())
	if err != nil {
		h.logger.Error("failed to load site settings",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Update handles PUT /api/v1/admin/settings. Omitted fields keep their
// current values.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.SiteSettingsUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	s, err := h.settings.Update(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrEmptySettingsUpdate):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "At least one of api_enabled or maintenance_mode is required")
		return
	case err != nil:
		h.logger.Error("failed to update site settings",
			slog.String("admin_id", auth.UserIDFromContext(r.Context())),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, s)
}
