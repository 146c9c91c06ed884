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

// Searcher runs a search on behalf of a caller.
type Searcher interface {
	Search(ctx context.Context, ac *model.AuthContext, q string) (*model.SearchResponse, error)
}

// SearchHandler serves both the session and the API key search routes.
// Which one is in play is decided by the auth middleware in front of it.
type SearchHandler struct {
	logger   *slog.Logger
	searcher Searcher
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(logger *slog.Logger, searcher Searcher) *SearchHandler {
	return &SearchHandler{logger: logger, searcher: searcher}
}

// Search handles POST /api/v1/search and POST /v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req model.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.searcher.Search(r.Context(), authCtx, req.Query())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "Search keyword is required")
		case errors.Is(err, service.ErrQueryTooLong):
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "Search keyword is too long")
		case errors.Is(err, service.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "Search keyword was rejected")
		case errors.Is(err, service.ErrSearchUnavailable):
			writeError(w, http.StatusBadGateway, "SEARCH_UNAVAILABLE", "Search is temporarily unavailable")
		default:
			h.logger.Error("search failed",
				slog.String("user_id", authCtx.UserID()),
				slog.String("query", truncateForLog(req.Query(), 100)),
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.GetRequestID(r.Context())),
			)
			writeInternalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
