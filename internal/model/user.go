// Package model defines domain entities for the application.
package model

import "time"

// Identity is the authenticated principal produced by the session
// authenticator. The core never mutates it.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Profile is the user row joined into admin listings.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	Identity Identity
	IsAdmin  bool
	// KeyID is set when the request authenticated with an API key.
	KeyID string
}

// UserID is a shortcut for Identity.ID.
func (a *AuthContext) UserID() string {
	return a.Identity.ID
}

// ViaAPIKey reports whether the caller used an API key rather than a session.
func (a *AuthContext) ViaAPIKey() bool {
	return a.KeyID != ""
}
