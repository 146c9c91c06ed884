package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/zeenbase/zeenbase/internal/metrics"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
	"github.com/zeenbase/zeenbase/internal/search"
)

// Search errors.
var (
	ErrEmptyQuery        = errors.New("search keyword is required")
	ErrQueryTooLong      = errors.New("search keyword is too long")
	ErrInvalidQuery      = errors.New("search keyword was rejected")
	ErrSearchUnavailable = errors.New("search is temporarily unavailable")
)

// MaxQueryLength bounds the keyword after normalization.
const MaxQueryLength = 256

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// NormalizeQuery strips markup and surrounding whitespace from a keyword.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(q, ""))
}

// Backend runs keyword searches.
type Backend interface {
	Search(ctx context.Context, keyword string) (*search.Result, error)
}

// SubscriptionReader looks up a user's subscription.
type SubscriptionReader interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*model.Subscription, error)
}

// SearchService proxies searches and applies result visibility.
type SearchService struct {
	backend Backend
	subs    SubscriptionReader
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewSearchService creates a new SearchService.
func NewSearchService(backend Backend, subs SubscriptionReader, logger *slog.Logger, recorder metrics.Recorder) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &SearchService{backend: backend, subs: subs, logger: logger, metrics: recorder}
}

// Search runs q for the caller. Callers authenticated with an API key have
// already passed the access policy and always see results. Session callers
// see results only as admins or with a plan that includes them; everyone
// else gets the count with an empty result list.
func (s *SearchService) Search(ctx context.Context, ac *model.AuthContext, q string) (*model.SearchResponse, error) {
	route := "session"
	if ac.ViaAPIKey() {
		route = "api"
	}

	keyword := NormalizeQuery(q)
	if keyword == "" {
		return nil, ErrEmptyQuery
	}
	if len(keyword) > MaxQueryLength {
		return nil, ErrQueryTooLong
	}

	start := time.Now()
	result, err := s.backend.Search(ctx, keyword)
	s.metrics.ObserveSearchDuration(time.Since(start))
	if err != nil {
		s.metrics.IncSearch(route, metrics.SearchError)
		s.logger.Warn("search backend failed",
			slog.String("user_id", ac.UserID()),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, search.ErrBackendRejected) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}

	resp := &model.SearchResponse{
		Query:              keyword,
		Results:            result.Results,
		TotalResults:       result.TotalResults,
		TotalFilesSearched: result.TotalFilesSearched,
		ExecutionTime:      result.ExecutionTime,
	}

	if !s.canSeeResults(ctx, ac) {
		resp.Results = []json.RawMessage{}
		resp.Masked = true
		s.metrics.IncSearch(route, metrics.SearchMasked)
		return resp, nil
	}

	s.metrics.IncSearch(route, metrics.SearchOK)
	return resp, nil
}

func (s *SearchService) canSeeResults(ctx context.Context, ac *model.AuthContext) bool {
	if ac.IsAdmin || ac.ViaAPIKey() {
		return true
	}

	sub, err := s.subs.GetSubscriptionByUserID(ctx, ac.UserID())
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return false
	}
	if err != nil {
		s.logger.Warn("subscription lookup failed, masking results",
			slog.String("user_id", ac.UserID()),
			slog.String("error", err.Error()),
		)
		return false
	}
	return sub.IsActive() && sub.PlanType.AllowsSearchResults()
}
