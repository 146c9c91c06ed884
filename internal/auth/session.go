package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zeenbase/zeenbase/internal/model"
)

var (
	// ErrInvalidSession indicates the session token failed verification.
	ErrInvalidSession = errors.New("invalid session token")
	// ErrEmailNotVerified indicates the session belongs to an unconfirmed account.
	ErrEmailNotVerified = errors.New("email not verified")
)

// SessionClaims are the claims carried by auth-provider session tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Role          string `json:"role,omitempty"`
}

// SessionVerifier validates HS256 session tokens signed with a shared secret.
type SessionVerifier struct {
	secret []byte
	leeway time.Duration
}

// NewSessionVerifier creates a verifier for tokens signed with secret.
func NewSessionVerifier(secret string) *SessionVerifier {
	return &SessionVerifier{secret: []byte(secret), leeway: 30 * time.Second}
}

// Verify parses the token and returns the identity it names.
func (v *SessionVerifier) Verify(tokenString string) (model.Identity, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid || claims.Subject == "" {
		return model.Identity{}, ErrInvalidSession
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return model.Identity{}, ErrEmailNotVerified
	}

	return model.Identity{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified == nil || *claims.EmailVerified,
	}, nil
}

// Issue signs a session token for id. Used by dev tooling and tests; production
// tokens come from the auth provider.
func (v *SessionVerifier) Issue(id model.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	verified := id.EmailVerified
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:         id.Email,
		EmailVerified: &verified,
		Role:          "authenticated",
	})

	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}
