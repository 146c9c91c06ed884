// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// AppOrigin is the SPA origin used for checkout return URLs when a request
	// carries no Origin header.
	AppOrigin string `env:"APP_ORIGIN" envDefault:"http://localhost:5173"`

	// Database (PostgreSQL)
	DatabaseURL      string `env:"DATABASE_URL,required"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MigrateOnStart   bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Cache (Redis)
	RedisURL       string `env:"REDIS_URL,required"`
	RedisNamespace string `env:"REDIS_NAMESPACE" envDefault:"zeenbase"`

	// Session tokens issued by the auth provider (HS256 shared secret).
	SessionJWTSecret string `env:"SESSION_JWT_SECRET,required"`

	// Admin identities. Either list grants admin. API-key callers carry the
	// email of their profile row, so an operator who has never signed in
	// through the SPA is only recognised by ADMIN_USER_IDS.
	AdminEmails  []string `env:"ADMIN_EMAILS" envSeparator:","`
	AdminUserIDs []string `env:"ADMIN_USER_IDS" envSeparator:","`

	// Per-user lock held while an API key is issued or rotated.
	KeyLockTTL time.Duration `env:"KEY_LOCK_TTL" envDefault:"10s"`

	// Search backend
	SearchBackendURL string        `env:"SEARCH_BACKEND_URL" envDefault:"http://localhost:5000/search"`
	SearchTimeout    time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`
	SearchRetries    uint64        `env:"SEARCH_RETRIES" envDefault:"2"`

	// Stripe
	StripeSecretKey        string   `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret    string   `env:"STRIPE_WEBHOOK_SECRET"`
	StripeProPriceIDs      []string `env:"STRIPE_PRO_PRICE_IDS" envSeparator:","`
	StripeLifetimePriceIDs []string `env:"STRIPE_LIFETIME_PRICE_IDS" envSeparator:","`

	// PayPal
	PayPalClientID string `env:"PAYPAL_CLIENT_ID"`
	PayPalSecret   string `env:"PAYPAL_SECRET"`
	PayPalSandbox  bool   `env:"PAYPAL_SANDBOX" envDefault:"true"`

	// PayPal prices as decimal amounts in PayPalCurrency, e.g. "9.00". A
	// captured order must match the price of the plan it claims; plans
	// without a price cannot be bought through PayPal.
	PayPalCurrency      string `env:"PAYPAL_CURRENCY" envDefault:"USD"`
	PayPalPriceStandard string `env:"PAYPAL_PRICE_STANDARD"`
	PayPalPricePro      string `env:"PAYPAL_PRICE_PRO"`
	PayPalPriceLifetime string `env:"PAYPAL_PRICE_LIFETIME"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting for the public search API
	RateLimitAPIEnabled   bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIPerMinute int  `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"100"`
	RateLimitAPIBurst     int  `env:"RATE_LIMIT_API_BURST" envDefault:"20"`

	// Pre-auth rate limiting per client IP on the public search API
	RateLimitIPEnabled bool `env:"RATE_LIMIT_IP_ENABLED" envDefault:"true"`
	RateLimitIPRPS     int  `env:"RATE_LIMIT_IP_RPS" envDefault:"10"`
	RateLimitIPBurst   int  `env:"RATE_LIMIT_IP_BURST" envDefault:"20"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// StripeEnabled reports whether Stripe credentials are configured.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

// PayPalEnabled reports whether PayPal credentials are configured.
func (c *Config) PayPalEnabled() bool {
	return c.PayPalClientID != "" && c.PayPalSecret != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.AdminEmails = trimAll(cfg.AdminEmails)
	cfg.AdminUserIDs = trimAll(cfg.AdminUserIDs)
	cfg.StripeProPriceIDs = trimAll(cfg.StripeProPriceIDs)
	cfg.StripeLifetimePriceIDs = trimAll(cfg.StripeLifetimePriceIDs)
	return cfg, nil
}

func trimAll(in []string) []string {
	return splitList(strings.Join(in, ","))
}
