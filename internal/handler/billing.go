package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/billing"
	"github.com/zeenbase/zeenbase/internal/middleware"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/service"
)

// maxWebhookBodySize matches the payload cap Stripe documents for events.
const maxWebhookBodySize = 65536

// BillingService runs checkout and applies provider events.
type BillingService interface {
	Checkout(ctx context.Context, id model.Identity, priceID, origin string) (string, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
	CapturePayPal(ctx context.Context, id model.Identity, orderID, plan string) (*model.Subscription, error)
}

// BillingHandler handles checkout, provider webhooks and PayPal capture.
type BillingHandler struct {
	logger        *slog.Logger
	billing       BillingService
	defaultOrigin string
}

// NewBillingHandler creates a new BillingHandler. defaultOrigin is used to
// build return URLs when the request carries no Origin header.
func NewBillingHandler(logger *slog.Logger, billing BillingService, defaultOrigin string) *BillingHandler {
	return &BillingHandler{logger: logger, billing: billing, defaultOrigin: defaultOrigin}
}

// CheckoutRequest is the body of POST /api/v1/billing/checkout.
type CheckoutRequest struct {
	PriceID string `json:"price_id"`
}

// CheckoutResponse carries the hosted checkout URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// Checkout handles POST /api/v1/billing/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := middleware.ValidateProviderID(req.PriceID); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PRICE_ID", "price_id is required")
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = h.defaultOrigin
	}
	if err := middleware.ValidateOrigin(origin); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ORIGIN", err.Error())
		return
	}

	url, err := h.billing.Checkout(r.Context(), authCtx.Identity, req.PriceID, origin)
	if err != nil {
		h.writeBillingError(w, r, authCtx.UserID(), err)
		return
	}
	writeJSON(w, http.StatusOK, CheckoutResponse{URL: url})
}

// StripeWebhook handles POST /webhooks/stripe. It is unauthenticated; the
// Stripe-Signature header is the only credential.
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "Missing Stripe-Signature header")
		return
	}

	err = h.billing.HandleStripeWebhook(r.Context(), payload, signature)
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		h.logger.Warn("stripe webhook rejected",
			slog.String("error", err.Error()),
			slog.String("ip", r.RemoteAddr),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "Invalid signature")
		return
	case errors.Is(err, service.ErrBillingDisabled):
		writeError(w, http.StatusServiceUnavailable, "BILLING_DISABLED", "Payments are not configured")
		return
	case err != nil:
		// A 5xx makes Stripe redeliver the event.
		h.logger.Error("stripe webhook processing failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// PayPalCaptureRequest is the body of POST /api/v1/billing/paypal/capture.
type PayPalCaptureRequest struct {
	OrderID string `json:"order_id"`
	Plan    string `json:"plan"`
}

// PayPalCapture handles POST /api/v1/billing/paypal/capture.
func (h *BillingHandler) PayPalCapture(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req PayPalCaptureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := middleware.ValidateProviderID(req.OrderID); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "order_id is required")
		return
	}

	sub, err := h.billing.CapturePayPal(r.Context(), authCtx.Identity, req.OrderID, req.Plan)
	if err != nil {
		h.writeBillingError(w, r, authCtx.UserID(), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *BillingHandler) writeBillingError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	switch {
	case errors.Is(err, service.ErrBillingDisabled):
		writeError(w, http.StatusServiceUnavailable, "BILLING_DISABLED", "Payments are not configured")
	case errors.Is(err, service.ErrInvalidPriceID):
		writeError(w, http.StatusBadRequest, "INVALID_PRICE_ID", err.Error())
	case errors.Is(err, service.ErrInvalidOrderID):
		writeError(w, http.StatusBadRequest, "INVALID_ORDER_ID", err.Error())
	case errors.Is(err, service.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, "INVALID_PLAN", err.Error())
	case errors.Is(err, billing.ErrOrderNotCompleted), errors.Is(err, billing.ErrInvalidAmount):
		writeError(w, http.StatusPaymentRequired, "PAYMENT_FAILED", "Payment could not be verified")
	case errors.Is(err, service.ErrOrderAmountMismatch):
		writeError(w, http.StatusPaymentRequired, "PAYMENT_MISMATCH", "Payment amount does not match the selected plan")
	case errors.Is(err, service.ErrOrderNotOwned):
		writeError(w, http.StatusForbidden, "ORDER_NOT_OWNED", "Order was not placed by this account")
	case errors.Is(err, service.ErrOrderAlreadyCaptured):
		writeError(w, http.StatusConflict, "ORDER_ALREADY_CAPTURED", "Order has already been used")
	case errors.Is(err, service.ErrPaymentFailed):
		h.logger.Warn("payment provider call failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Payment provider is unavailable. Please try again later.")
	default:
		h.logger.Error("billing operation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeInternalError(w)
	}
}
