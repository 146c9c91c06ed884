package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/middleware"
	"github.com/zeenbase/zeenbase/internal/model"
)

// SubscriptionReader reports a user's subscription status.
type SubscriptionReader interface {
	Status(ctx context.Context, id model.Identity) (*model.SubscriptionStatusResponse, error)
}

// SubscriptionHandler serves the caller's subscription status.
type SubscriptionHandler struct {
	logger *slog.Logger
	subs   SubscriptionReader
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(logger *slog.Logger, subs SubscriptionReader) *SubscriptionHandler {
	return &SubscriptionHandler{logger: logger, subs: subs}
}

// Status handles GET /api/v1/subscription.
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	resp, err := h.subs.Status(r.Context(), authCtx.Identity)
	if err != nil {
		h.logger.Error("subscription lookup failed",
			slog.String("user_id", authCtx.UserID()),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeJSON(w, http.StatusInternalServerError, model.SubscriptionStatusResponse{
			Subscribed: false,
			Error:      "Failed to check subscription status",
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
