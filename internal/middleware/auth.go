package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/service"
)

// minAuthFailureDuration is the minimum time a failed API key check takes,
// so unknown and malformed keys are indistinguishable by latency.
const minAuthFailureDuration = 200 * time.Millisecond

// SessionVerifier validates session tokens.
type SessionVerifier interface {
	Verify(token string) (model.Identity, error)
}

// AdminChecker decides whether an identity is an admin.
type AdminChecker interface {
	IsAdmin(id model.Identity) bool
}

// SessionAuthConfig holds configuration for the session auth middleware.
type SessionAuthConfig struct {
	Logger   *slog.Logger
	Verifier SessionVerifier
	Admins   AdminChecker
}

// SessionAuth authenticates browser requests carrying a session JWT in
// "Authorization: Bearer <token>".
func SessionAuth(cfg SessionAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}

			id, err := cfg.Verifier.Verify(token)
			if err != nil {
				cfg.Logger.Warn("session authentication failed",
					slog.String("reason", err.Error()),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}

			authCtx := &model.AuthContext{
				Identity: id,
				IsAdmin:  cfg.Admins.IsAdmin(id),
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

// KeyResolver maps a presented API key to its owner.
type KeyResolver interface {
	Resolve(ctx context.Context, key string) (model.Identity, string, error)
}

// PolicyEvaluator runs the API access policy.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, id model.Identity) (service.Decision, error)
}

// APIKeyAuthConfig holds configuration for the API key auth middleware.
type APIKeyAuthConfig struct {
	Logger   *slog.Logger
	Resolver KeyResolver
	Policy   PolicyEvaluator
}

// APIKeyAuth authenticates public API requests. The key owner must pass the
// access policy on every request, so revoking a plan or flipping the kill
// switch takes effect immediately.
func APIKeyAuth(cfg APIKeyAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fail := func(status int, code, message string) {
				if elapsed := time.Since(start); elapsed < minAuthFailureDuration {
					time.Sleep(minAuthFailureDuration - elapsed)
				}
				writeError(w, status, code, message)
			}

			key := extractAPIKey(r)
			if key == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_key"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				fail(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
				return
			}

			id, keyID, err := cfg.Resolver.Resolve(r.Context(), key)
			if err != nil {
				if errors.Is(err, service.ErrInvalidAPIKey) {
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", "invalid_key"),
						slog.String("ip", r.RemoteAddr),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					fail(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
					return
				}
				cfg.Logger.Error("api key lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}

			decision, err := cfg.Policy.Evaluate(r.Context(), id)
			if err != nil {
				cfg.Logger.Error("access policy evaluation failed",
					slog.String("user_id", id.ID),
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}
			if !decision.Allowed {
				writeError(w, http.StatusForbidden, string(decision.Reason), decision.Reason.Message())
				return
			}

			authCtx := &model.AuthContext{
				Identity: id,
				IsAdmin:  decision.IsAdmin,
				KeyID:    keyID,
			}

			cfg.Logger.Debug("api key authenticated",
				slog.String("key_id", keyID),
				slog.String("user_id", id.ID),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

// bearerToken returns the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// extractAPIKey extracts the API key from the request.
// Supports both "Authorization: Bearer <key>" and "X-API-Key: <key>" headers.
func extractAPIKey(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
