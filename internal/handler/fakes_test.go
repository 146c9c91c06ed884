package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asUser(r *http.Request, id string, admin bool) *http.Request {
	ac := &model.AuthContext{Identity: model.Identity{ID: id, Email: id + "@example.com"}, IsAdmin: admin}
	return r.WithContext(auth.ContextWithAuth(r.Context(), ac))
}

func asAPIKey(r *http.Request, id, keyID string) *http.Request {
	ac := &model.AuthContext{Identity: model.Identity{ID: id}, KeyID: keyID}
	return r.WithContext(auth.ContextWithAuth(r.Context(), ac))
}

type fakePolicy struct {
	decision service.Decision
	err      error
}

func (f fakePolicy) Evaluate(context.Context, model.Identity) (service.Decision, error) {
	return f.decision, f.err
}

type fakeKeys struct {
	key           string
	err           error
	regenerated   int
	fetchedUserID string
}

func (f *fakeKeys) IssueOrFetch(_ context.Context, userID string) (string, error) {
	f.fetchedUserID = userID
	return f.key, f.err
}

func (f *fakeKeys) Regenerate(_ context.Context, userID string) (string, error) {
	f.regenerated++
	return f.key, f.err
}

type fakeSearcher struct {
	resp   *model.SearchResponse
	err    error
	gotQ   string
	gotCtx *model.AuthContext
}

func (f *fakeSearcher) Search(_ context.Context, ac *model.AuthContext, q string) (*model.SearchResponse, error) {
	f.gotQ = q
	f.gotCtx = ac
	return f.resp, f.err
}

type fakeBilling struct {
	url        string
	sub        *model.Subscription
	err        error
	gotOrigin  string
	gotPriceID string
	gotPayload []byte
	gotSig     string
	gotOrderID string
	gotPlan    string
}

func (f *fakeBilling) Checkout(_ context.Context, _ model.Identity, priceID, origin string) (string, error) {
	f.gotPriceID, f.gotOrigin = priceID, origin
	return f.url, f.err
}

func (f *fakeBilling) HandleStripeWebhook(_ context.Context, payload []byte, signature string) error {
	f.gotPayload, f.gotSig = payload, signature
	return f.err
}

func (f *fakeBilling) CapturePayPal(_ context.Context, _ model.Identity, orderID, plan string) (*model.Subscription, error) {
	f.gotOrderID, f.gotPlan = orderID, plan
	return f.sub, f.err
}

type fakeAdmin struct {
	users   []*model.SubscriptionWithEmail
	sub     *model.Subscription
	keys    []model.APIKeyResponse
	stats   *service.AdminStats
	err     error
	actor   string
	toggled string
}

func (f *fakeAdmin) ListUsers(context.Context) ([]*model.SubscriptionWithEmail, error) {
	return f.users, f.err
}

func (f *fakeAdmin) ToggleAPIAccess(_ context.Context, actor, userID string) (*model.Subscription, error) {
	f.actor, f.toggled = actor, userID
	return f.sub, f.err
}

func (f *fakeAdmin) ToggleStatus(_ context.Context, actor, userID string) (*model.Subscription, error) {
	f.actor, f.toggled = actor, userID
	return f.sub, f.err
}

func (f *fakeAdmin) ListUserKeys(context.Context, string) ([]model.APIKeyResponse, error) {
	return f.keys, f.err
}

func (f *fakeAdmin) Stats(context.Context) (*service.AdminStats, error) {
	return f.stats, f.err
}

type fakeSettings struct {
	current model.SiteSettings
	err     error
	got     model.SiteSettingsUpdate
}

func (f *fakeSettings) Current(context.Context) (model.SiteSettings, error) {
	return f.current, f.err
}

func (f *fakeSettings) Update(_ context.Context, u model.SiteSettingsUpdate) (model.SiteSettings, error) {
	f.got = u
	if f.err != nil {
		return model.SiteSettings{}, f.err
	}
	if u.IsEmpty() {
		return model.SiteSettings{}, service.ErrEmptySettingsUpdate
	}
	return u.Apply(f.current), nil
}

type fakeFeedback struct {
	summary  model.FeedbackSummary
	items    []*model.Feedback
	err      error
	gotLimit int
}

func (f *fakeFeedback) Submit(_ context.Context, userID string, req model.FeedbackRequest) (*model.Feedback, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Feedback{ID: "f1", UserID: userID, Rating: req.Rating, Comment: req.Comment}, nil
}

func (f *fakeFeedback) Summary(context.Context) (model.FeedbackSummary, error) {
	return f.summary, f.err
}

func (f *fakeFeedback) Recent(_ context.Context, limit int) ([]*model.Feedback, error) {
	f.gotLimit = limit
	return f.items, f.err
}

type fakeSubscriptions struct {
	resp *model.SubscriptionStatusResponse
	err  error
}

func (f fakeSubscriptions) Status(context.Context, model.Identity) (*model.SubscriptionStatusResponse, error) {
	return f.resp, f.err
}
