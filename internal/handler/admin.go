package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/middleware"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
	"github.com/zeenbase/zeenbase/internal/service"
)

// AdminService is the admin console's view of users and keys.
type AdminService interface {
	ListUsers(ctx context.Context) ([]*model.SubscriptionWithEmail, error)
	ToggleAPIAccess(ctx context.Context, actor, userID string) (*model.Subscription, error)
	ToggleStatus(ctx context.Context, actor, userID string) (*model.Subscription, error)
	ListUserKeys(ctx context.Context, userID string) ([]model.APIKeyResponse, error)
	Stats(ctx context.Context) (*service.AdminStats, error)
}

// AdminHandler provides admin-only endpoints. Routes are mounted behind
// middleware.RequireAdmin.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// UserListResponse is the body of GET /api/v1/admin/users.
type UserListResponse struct {
	Users []*model.SubscriptionWithEmail `json:"users"`
	Total int                            `json:"total"`
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		h.logInternal(r, "failed to list users", err)
		writeInternalError(w)
		return
	}
	if users == nil {
		users = []*model.SubscriptionWithEmail{}
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users, Total: len(users)})
}

// ToggleAPIAccess handles POST /api/v1/admin/users/{userID}/api-access.
func (h *AdminHandler) ToggleAPIAccess(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.admin.ToggleAPIAccess)
}

// ToggleStatus handles POST /api/v1/admin/users/{userID}/status.
func (h *AdminHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.admin.ToggleStatus)
}

func (h *AdminHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor, userID string) (*model.Subscription, error)) {
	userID := chi.URLParam(r, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_USER_ID", err.Error())
		return
	}

	sub, err := fn(r.Context(), auth.UserIDFromContext(r.Context()), userID)
	switch {
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		writeError(w, http.StatusNotFound, "SUBSCRIPTION_NOT_FOUND", "Subscription not found")
		return
	case err != nil:
		h.logInternal(r, "failed to toggle subscription", err, slog.String("user_id", userID))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// AdminAPIKeyListResponse represents the response for API key listing.
type AdminAPIKeyListResponse struct {
	Keys  []model.APIKeyResponse `json:"keys"`
	Total int                    `json:"total"`
}

// ListAPIKeysByUser handles GET /api/v1/admin/api-keys?user_id={id}
// Key values are masked to their prefix.
func (h *AdminHandler) ListAPIKeysByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "query parameter 'user_id' is required")
		return
	}
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_USER_ID", err.Error())
		return
	}

	keys, err := h.admin.ListUserKeys(r.Context(), userID)
	if err != nil {
		h.logInternal(r, "failed to list API keys", err, slog.String("user_id", userID))
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, AdminAPIKeyListResponse{Keys: keys, Total: len(keys)})
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.logInternal(r, "failed to compute stats", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) logInternal(r *http.Request, msg string, err error, attrs ...any) {
	args := append([]any{
		slog.String("error", err.Error()),
		slog.String("admin_id", auth.UserIDFromContext(r.Context())),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	}, attrs...)
	h.logger.Error(msg, args...)
}
