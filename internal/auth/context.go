package auth

import (
	"context"

	"github.com/zeenbase/zeenbase/internal/model"
)

type authContextKey struct{}

// ContextWithAuth attaches the caller to ctx.
func ContextWithAuth(ctx context.Context, a *model.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, a)
}

// AuthFromContext returns the caller, or nil on unauthenticated routes.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	a, _ := ctx.Value(authContextKey{}).(*model.AuthContext)
	return a
}

// UserIDFromContext returns the caller's id, or "".
func UserIDFromContext(ctx context.Context) string {
	if a := AuthFromContext(ctx); a != nil {
		return a.UserID()
	}
	return ""
}

// IsAdminFromContext reports whether the caller is on the admin allow-list.
func IsAdminFromContext(ctx context.Context) bool {
	a := AuthFromContext(ctx)
	return a != nil && a.IsAdmin
}
