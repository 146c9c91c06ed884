package middleware

import (
	"context"
	"net/http"

	"github.com/zeenbase/zeenbase/internal/auth"
)

// MaintenanceChecker reports whether maintenance mode is on.
type MaintenanceChecker interface {
	MaintenanceEnabled(ctx context.Context) bool
}

// Maintenance answers 503 to non-admin callers while maintenance mode is on.
// Must be applied after an auth middleware.
func Maintenance(checker MaintenanceChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.IsAdminFromContext(r.Context()) || !checker.MaintenanceEnabled(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "300")
			writeError(w, http.StatusServiceUnavailable, "MAINTENANCE", "The site is under maintenance")
		})
	}
}
