package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
	"github.com/zeenbase/zeenbase/internal/service"
)

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/users", h.ListUsers)
	r.Post("/users/{userID}/api-access", h.ToggleAPIAccess)
	r.Post("/users/{userID}/status", h.ToggleStatus)
	r.Get("/api-keys", h.ListAPIKeysByUser)
	r.Get("/stats", h.Stats)
	return r
}

func TestAdminHandler_ListUsers(t *testing.T) {
	admin := &fakeAdmin{users: []*model.SubscriptionWithEmail{
		{Subscription: model.Subscription{UserID: "u1", PlanType: model.PlanPro}, Email: "a@example.com"},
	}}
	router := adminRouter(NewAdminHandler(admin, testLogger()))

	req := asUser(httptest.NewRequest(http.MethodGet, "/users", nil), "root", true)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp UserListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 || resp.Users[0].Email != "a@example.com" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAdminHandler_Toggle(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "api access", path: "/users/u1/api-access", wantStatus: http.StatusOK},
		{name: "status", path: "/users/u1/status", wantStatus: http.StatusOK},
		{name: "unknown user", path: "/users/u9/status", err: repository.ErrSubscriptionNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid id", path: "/users/a%20b/status", wantStatus: http.StatusBadRequest},
		{name: "store failure", path: "/users/u1/api-access", err: errors.New("timeout"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin := &fakeAdmin{sub: &model.Subscription{UserID: "u1", Status: model.StatusInactive}, err: tt.err}
			router := adminRouter(NewAdminHandler(admin, testLogger()))

			req := asUser(httptest.NewRequest(http.MethodPost, tt.path, nil), "root", true)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && (admin.actor != "root" || admin.toggled != "u1") {
				t.Errorf("unexpected toggle args actor=%q user=%q", admin.actor, admin.toggled)
			}
		})
	}
}

func TestAdminHandler_ListAPIKeysByUser(t *testing.T) {
	admin := &fakeAdmin{keys: []model.APIKeyResponse{{ID: "k1", KeyPrefix: "sk_123e4567…"}}}
	router := adminRouter(NewAdminHandler(admin, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api-keys", nil), "root", true))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without user_id, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api-keys?user_id=u1", nil), "root", true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp AdminAPIKeyListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 || resp.Keys[0].KeyPrefix != "sk_123e4567…" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAdminHandler_Stats(t *testing.T) {
	admin := &fakeAdmin{stats: &service.AdminStats{Service: "zeenbase", Users: 3, ActiveUsers: 2}}
	router := adminRouter(NewAdminHandler(admin, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/stats", nil), "root", true))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var stats service.AdminStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.Users != 3 || stats.ActiveUsers != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSettingsHandler(t *testing.T) {
	settings := &fakeSettings{current: model.SiteSettings{APIEnabled: true}}
	h := NewSettingsHandler(testLogger(), settings)

	rec := httptest.NewRecorder()
	h.Get(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil), "u1", false))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Update(rec, asUser(httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(`{"maintenance_mode":true}`)), "root", true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var got model.SiteSettings
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.APIEnabled || !got.MaintenanceMode {
		t.Errorf("expected api_enabled carried forward and maintenance on, got %+v", got)
	}

	rec = httptest.NewRecorder()
	h.Update(rec, asUser(httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(`{}`)), "root", true))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty update, got %d", rec.Code)
	}
}

func TestFeedbackHandler(t *testing.T) {
	fb := &fakeFeedback{summary: model.FeedbackSummary{Average: 4.5, Count: 2}}
	h := NewFeedbackHandler(testLogger(), fb)

	rec := httptest.NewRecorder()
	h.Submit(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(`{"rating":5,"comment":" nice "}`)), "u1", false))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Submit(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(`{"rating":9}`)), "u1", false))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad rating, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/v1/feedback/summary", nil))
	var summary model.FeedbackSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if summary.Count != 2 || summary.Average != 4.5 {
		t.Errorf("unexpected summary %+v", summary)
	}

	rec = httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/feedback?limit=10", nil))
	if rec.Code != http.StatusOK || fb.gotLimit != 10 {
		t.Errorf("expected limit 10 passed through, got status %d limit %d", rec.Code, fb.gotLimit)
	}

	rec = httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/feedback?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad limit, got %d", rec.Code)
	}
}

func TestSubscriptionHandler_Status(t *testing.T) {
	h := NewSubscriptionHandler(testLogger(), fakeSubscriptions{resp: &model.SubscriptionStatusResponse{Subscribed: true}})
	rec := httptest.NewRecorder()
	h.Status(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil), "u1", false))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	h = NewSubscriptionHandler(testLogger(), fakeSubscriptions{err: errors.New("db down")})
	rec = httptest.NewRecorder()
	h.Status(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil), "u1", false))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	var body model.SubscriptionStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Subscribed || body.Error == "" {
		t.Errorf("expected subscribed=false with error, got %+v", body)
	}
}
