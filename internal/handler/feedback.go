package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/middleware"
	"github.com/zeenbase/zeenbase/internal/model"
)

// FeedbackService stores and summarizes ratings.
type FeedbackService interface {
	Submit(ctx context.Context, userID string, req model.FeedbackRequest) (*model.Feedback, error)
	Summary(ctx context.Context) (model.FeedbackSummary, error)
	Recent(ctx context.Context, limit int) ([]*model.Feedback, error)
}

// FeedbackHandler handles feedback endpoints.
type FeedbackHandler struct {
	logger   *slog.Logger
	feedback FeedbackService
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(logger *slog.Logger, feedback FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{logger: logger, feedback: feedback}
}

// Submit handles POST /api/v1/feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req model.FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	f, err := h.feedback.Submit(r.Context(), authCtx.UserID(), req)
	switch {
	case errors.Is(err, model.ErrInvalidRating), errors.Is(err, model.ErrCommentTooLong):
		writeError(w, http.StatusBadRequest, "INVALID_FEEDBACK", err.Error())
		return
	case err != nil:
		h.logger.Error("failed to store feedback",
			slog.String("user_id", authCtx.UserID()),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

// Summary handles GET /api/v1/feedback/summary.
func (h *FeedbackHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.feedback.Summary(r.Context())
	if err != nil {
		h.logger.Error("failed to summarize feedback",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// FeedbackListResponse is the admin feedback listing.
type FeedbackListResponse struct {
	Feedback []*model.Feedback `json:"feedback"`
	Total    int               `json:"total"`
}

// Recent handles GET /api/v1/admin/feedback?limit=.
func (h *FeedbackHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	items, err := h.feedback.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list feedback",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
		return
	}
	if items == nil {
		items = []*model.Feedback{}
	}
	writeJSON(w, http.StatusOK, FeedbackListResponse{Feedback: items, Total: len(items)})
}
