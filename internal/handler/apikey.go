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

// KeyPolicy decides whether a user may hold an API key.
type KeyPolicy interface {
	Evaluate(ctx context.Context, id model.Identity) (service.Decision, error)
}

// KeyIssuer issues and rotates API keys.
type KeyIssuer interface {
	IssueOrFetch(ctx context.Context, userID string) (string, error)
	Regenerate(ctx context.Context, userID string) (string, error)
}

// APIKeyHandler handles the session api-key endpoint.
type APIKeyHandler struct {
	logger *slog.Logger
	policy KeyPolicy
	keys   KeyIssuer
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(logger *slog.Logger, policy KeyPolicy, keys KeyIssuer) *APIKeyHandler {
	return &APIKeyHandler{
		logger: logger,
		policy: policy,
		keys:   keys,
	}
}

// Get handles GET /api/v1/api-key. It returns the caller's active key,
// issuing one on first access.
func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	key, err := h.keys.IssueOrFetch(r.Context(), authCtx.UserID())
	if err != nil {
		h.writeManagerError(w, r, authCtx.UserID(), err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIKeyResult{APIKey: key})
}

// Post handles POST /api/v1/api-key with {"action": "regenerate"}.
func (h *APIKeyHandler) Post(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req model.APIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Action != model.ActionRegenerate {
		writeError(w, http.StatusBadRequest, "INVALID_ACTION", "Invalid action")
		return
	}

	key, err := h.keys.Regenerate(r.Context(), authCtx.UserID())
	if err != nil {
		h.writeManagerError(w, r, authCtx.UserID(), err)
		return
	}
	writeJSON(w, http.StatusOK, model.APIKeyResult{APIKey: key})
}

// authorize runs the access policy for the session caller. It writes the
// error response and returns false when the request must stop.
func (h *APIKeyHandler) authorize(w http.ResponseWriter, r *http.Request) (*model.AuthContext, bool) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return nil, false
	}

	decision, err := h.policy.Evaluate(r.Context(), authCtx.Identity)
	if err != nil {
		h.logger.Error("access policy evaluation failed",
			slog.String("user_id", authCtx.UserID()),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
		return nil, false
	}
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, string(decision.Reason), decision.Reason.Message())
		return nil, false
	}
	return authCtx, true
}

func (h *APIKeyHandler) writeManagerError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	if errors.Is(err, service.ErrKeyOperationInProgress) {
		writeError(w, http.StatusConflict, "KEY_OPERATION_IN_PROGRESS",
			"Another API key operation is in progress. Please try again.")
		return
	}

	h.logger.Error("api key operation failed",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	switch {
	case errors.Is(err, service.ErrKeyCreationFailed):
		writeError(w, http.StatusInternalServerError, "KEY_CREATION_FAILED", "Failed to create API key. Please try again later.")
	case errors.Is(err, service.ErrKeyRotationFailed):
		writeError(w, http.StatusInternalServerError, "KEY_ROTATION_FAILED", "Failed to regenerate API key. Please try again later.")
	default:
		writeInternalError(w)
	}
}
