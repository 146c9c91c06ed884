package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zeenbase/zeenbase/internal/billing"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/service"
)

func TestBillingHandler_Checkout(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		origin     string
		err        error
		wantStatus int
		wantCode   string
		wantOrigin string
	}{
		{name: "ok", body: `{"price_id":"price_123"}`, origin: "https://zeenbase.io", wantStatus: http.StatusOK, wantOrigin: "https://zeenbase.io"},
		{name: "default origin", body: `{"price_id":"price_123"}`, wantStatus: http.StatusOK, wantOrigin: "http://localhost:5173"},
		{name: "missing price", body: `{}`, origin: "https://zeenbase.io", wantStatus: http.StatusBadRequest, wantCode: "INVALID_PRICE_ID"},
		{name: "bad origin", body: `{"price_id":"price_123"}`, origin: "https://zeenbase.io/phish", wantStatus: http.StatusBadRequest, wantCode: "INVALID_ORIGIN"},
		{name: "disabled", body: `{"price_id":"price_123"}`, origin: "https://zeenbase.io", err: service.ErrBillingDisabled, wantStatus: http.StatusServiceUnavailable, wantCode: "BILLING_DISABLED"},
		{
			name:       "provider error",
			body:       `{"price_id":"price_123"}`,
			origin:     "https://zeenbase.io",
			err:        fmt.Errorf("%w: %w", service.ErrPaymentFailed, billing.ErrProvider),
			wantStatus: http.StatusBadGateway,
			wantCode:   "PAYMENT_PROVIDER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBilling{url: "https://checkout.stripe.com/c/pay/cs_test", err: tt.err}
			h := NewBillingHandler(testLogger(), svc, "http://localhost:5173")

			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout", strings.NewReader(tt.body)), "u1", false)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.Checkout(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				if body := decodeError(t, rec); body.Code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
				}
				return
			}

			var resp CheckoutResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.URL != svc.url {
				t.Errorf("unexpected url %s", resp.URL)
			}
			if svc.gotOrigin != tt.wantOrigin || svc.gotPriceID != "price_123" {
				t.Errorf("unexpected checkout args origin=%q price=%q", svc.gotOrigin, svc.gotPriceID)
			}
		})
	}
}

func TestBillingHandler_StripeWebhook(t *testing.T) {
	tests := []struct {
		name       string
		signature  string
		body       string
		err        error
		wantStatus int
	}{
		{name: "accepted", signature: "t=1,v1=abc", body: `{"id":"evt_1"}`, wantStatus: http.StatusOK},
		{name: "missing signature", signature: "", body: `{"id":"evt_1"}`, wantStatus: http.StatusBadRequest},
		{name: "bad signature", signature: "t=1,v1=bad", body: `{"id":"evt_1"}`, err: billing.ErrInvalidSignature, wantStatus: http.StatusBadRequest},
		{name: "store failure asks for redelivery", signature: "t=1,v1=abc", body: `{"id":"evt_1"}`, err: fmt.Errorf("upsert: connection reset"), wantStatus: http.StatusInternalServerError},
		{name: "oversized", signature: "t=1,v1=abc", body: strings.Repeat("x", maxWebhookBodySize+1), wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBilling{err: tt.err}
			h := NewBillingHandler(testLogger(), svc, "")

			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("Stripe-Signature", tt.signature)
			}
			rec := httptest.NewRecorder()
			h.StripeWebhook(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if string(svc.gotPayload) != tt.body || svc.gotSig != tt.signature {
					t.Errorf("payload or signature not passed through: %q %q", svc.gotPayload, svc.gotSig)
				}
			}
		})
	}
}

func TestBillingHandler_PayPalCapture(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "captured", body: `{"order_id":"5O190127TN364715T","plan":"pro"}`, wantStatus: http.StatusOK},
		{name: "missing order", body: `{"plan":"pro"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_ORDER_ID"},
		{name: "bad plan", body: `{"order_id":"5O190127TN364715T","plan":"gold"}`, err: service.ErrInvalidPlan, wantStatus: http.StatusBadRequest, wantCode: "INVALID_PLAN"},
		{
			name:       "order not completed",
			body:       `{"order_id":"5O190127TN364715T","plan":"pro"}`,
			err:        fmt.Errorf("%w: %w", service.ErrPaymentFailed, billing.ErrOrderNotCompleted),
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "PAYMENT_FAILED",
		},
		{
			name:       "order without amount",
			body:       `{"order_id":"5O190127TN364715T","plan":"pro"}`,
			err:        fmt.Errorf("%w: %w", service.ErrPaymentFailed, billing.ErrInvalidAmount),
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "PAYMENT_FAILED",
		},
		{
			name:       "amount does not match plan",
			body:       `{"order_id":"5O190127TN364715T","plan":"lifetime"}`,
			err:        service.ErrOrderAmountMismatch,
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "PAYMENT_MISMATCH",
		},
		{
			name:       "another user's order",
			body:       `{"order_id":"5O190127TN364715T","plan":"pro"}`,
			err:        service.ErrOrderNotOwned,
			wantStatus: http.StatusForbidden,
			wantCode:   "ORDER_NOT_OWNED",
		},
		{
			name:       "replayed order",
			body:       `{"order_id":"5O190127TN364715T","plan":"pro"}`,
			err:        service.ErrOrderAlreadyCaptured,
			wantStatus: http.StatusConflict,
			wantCode:   "ORDER_ALREADY_CAPTURED",
		},
		{
			name:       "provider down",
			body:       `{"order_id":"5O190127TN364715T","plan":"pro"}`,
			err:        fmt.Errorf("%w: %w", service.ErrPaymentFailed, billing.ErrProvider),
			wantStatus: http.StatusBadGateway,
			wantCode:   "PAYMENT_PROVIDER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBilling{err: tt.err, sub: &model.Subscription{UserID: "u1", PlanType: model.PlanPro, Status: model.StatusActive}}
			h := NewBillingHandler(testLogger(), svc, "")

			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/billing/paypal/capture", strings.NewReader(tt.body)), "u1", false)
			rec := httptest.NewRecorder()
			h.PayPalCapture(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				if body := decodeError(t, rec); body.Code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
				}
				return
			}

			var sub model.Subscription
			if err := json.NewDecoder(rec.Body).Decode(&sub); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if sub.PlanType != model.PlanPro || svc.gotPlan != "pro" {
				t.Errorf("unexpected subscription %+v", sub)
			}
		})
	}
}
