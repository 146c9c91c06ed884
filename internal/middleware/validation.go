package middleware

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Validation limits.
const (
	// MaxOriginLength is the maximum length for a checkout return origin.
	MaxOriginLength = 255

	// MaxUserIDLength is the maximum length for a user id path parameter.
	MaxUserIDLength = 64

	// MaxProviderIDLength bounds Stripe price ids and PayPal order ids.
	MaxProviderIDLength = 128
)

// Validation errors.
var (
	ErrOriginInvalid     = errors.New("origin must be an http(s) scheme and host")
	ErrOriginTooLong     = errors.New("origin exceeds maximum length")
	ErrUserIDInvalid     = errors.New("user id contains invalid characters")
	ErrProviderIDInvalid = errors.New("id contains invalid characters")
)

// validUserIDPattern matches auth provider ids (UUIDs and similar).
var validUserIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validProviderIDPattern matches ids like price_1QTZ... and 5O190127TN364715T.
var validProviderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateOrigin checks a browser Origin used to build checkout return URLs.
// It must be a bare scheme://host[:port] with no path, query or credentials.
func ValidateOrigin(origin string) error {
	if len(origin) > MaxOriginLength {
		return ErrOriginTooLong
	}

	u, err := url.Parse(origin)
	if err != nil {
		return ErrOriginInvalid
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrOriginInvalid
	}
	if u.Host == "" || u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return ErrOriginInvalid
	}

	return nil
}

// ValidateUserID checks a user id taken from a URL path.
func ValidateUserID(id string) error {
	if id == "" || len(id) > MaxUserIDLength || !validUserIDPattern.MatchString(id) {
		return ErrUserIDInvalid
	}
	return nil
}

// ValidateProviderID checks a payment provider id supplied by the client.
func ValidateProviderID(id string) error {
	if id == "" || len(id) > MaxProviderIDLength || !validProviderIDPattern.MatchString(id) {
		return ErrProviderIDInvalid
	}
	return nil
}
