// Package main is the entrypoint for the zeenbase API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/billing"
	"github.com/zeenbase/zeenbase/internal/cache"
	"github.com/zeenbase/zeenbase/internal/config"
	"github.com/zeenbase/zeenbase/internal/handler"
	"github.com/zeenbase/zeenbase/internal/metrics"
	"github.com/zeenbase/zeenbase/internal/middleware"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
	"github.com/zeenbase/zeenbase/internal/search"
	"github.com/zeenbase/zeenbase/internal/server"
	"github.com/zeenbase/zeenbase/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.WithMaxConns(cfg.DatabaseMaxConns))
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL,
		cache.WithNamespace(cfg.RedisNamespace),
		cache.WithLogger(logger),
	)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	admins := auth.NewAdminSet(cfg.AdminEmails, cfg.AdminUserIDs)
	if admins.Len() == 0 {
		logger.Warn("no admin identities configured; admin console is unreachable")
	}

	billingSvc, err := newBillingService(cfg, repo, logger, recorder)
	if err != nil {
		logger.Error("failed to initialize payments", slog.String("error", err.Error()))
		os.Exit(1)
	}

	deps := routerDeps{
		cfg:      cfg,
		logger:   logger,
		limiter:  cacheClient,
		recorder: recorder,
		sessions: auth.NewSessionVerifier(cfg.SessionJWTSecret),
		admins:   admins,
		policy:   service.NewAccessPolicy(repo, admins, logger, recorder),
		resolver: service.NewKeyResolver(repo, cacheClient, auth.NewFingerprinter(cfg.SessionJWTSecret), logger),
		keys: service.NewKeyManager(service.KeyManagerConfig{
			Store:   repo,
			Locker:  cacheClient,
			Cache:   cacheClient,
			Logger:  logger,
			Metrics: recorder,
			LockTTL: cfg.KeyLockTTL,
		}),
		settings: service.NewSettingsService(repo, cacheClient, logger),
		search: service.NewSearchService(
			search.NewClient(cfg.SearchBackendURL, search.Options{
				HTTPClient: search.NewHTTPClient(cfg.SearchTimeout),
				MaxRetries: cfg.SearchRetries,
			}),
			repo, logger, recorder,
		),
		subscriptions: service.NewSubscriptionService(repo, logger),
		feedback:      service.NewFeedbackService(repo),
		admin:         service.NewAdminService(repo, logger, version),
		billing:       billingSvc,
		health:        handler.NewHealthHandler(logger, repo, cacheClient),
		gatherer:      registry,
	}

	srv := server.New(setupRouter(deps), server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"stripe", cfg.StripeEnabled(),
		"paypal", cfg.PayPalEnabled(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newBillingService wires the configured payment providers. Gateways are
// only assigned when enabled so a disabled provider stays a nil interface.
func newBillingService(cfg *config.Config, repo *repository.Repository, logger *slog.Logger, recorder metrics.Recorder) (*service.BillingService, error) {
	bc := service.BillingConfig{
		Store:            repo,
		Logger:           logger,
		Metrics:          recorder,
		ProPriceIDs:      cfg.StripeProPriceIDs,
		LifetimePriceIDs: cfg.StripeLifetimePriceIDs,
	}
	if cfg.StripeEnabled() {
		if cfg.StripeWebhookSecret == "" {
			logger.Warn("STRIPE_WEBHOOK_SECRET is empty; stripe webhooks will be rejected")
		}
		bc.Stripe = billing.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, logger)
	}
	if cfg.PayPalEnabled() {
		pp, err := billing.NewPayPal(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalSandbox)
		if err != nil {
			return nil, err
		}
		bc.PayPal = pp

		prices, err := payPalPrices(cfg)
		if err != nil {
			return nil, err
		}
		if len(prices) == 0 {
			logger.Warn("no PAYPAL_PRICE_* configured; paypal captures will be rejected")
		}
		bc.PayPalPrices = prices
	}
	return service.NewBillingService(bc), nil
}

// payPalPrices parses the configured per-plan PayPal prices, skipping unset
// plans.
func payPalPrices(cfg *config.Config) (map[model.PlanType]billing.Money, error) {
	raw := map[model.PlanType]string{
		model.PlanStandard: cfg.PayPalPriceStandard,
		model.PlanPro:      cfg.PayPalPricePro,
		model.PlanLifetime: cfg.PayPalPriceLifetime,
	}
	prices := make(map[model.PlanType]billing.Money, len(raw))
	for plan, value := range raw {
		if value == "" {
			continue
		}
		m, err := billing.ParseMoney(cfg.PayPalCurrency, value)
		if err != nil {
			return nil, fmt.Errorf("paypal price for %s: %w", plan, err)
		}
		prices[plan] = m
	}
	return prices, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	cfg      *config.Config
	logger   *slog.Logger
	limiter  middleware.RateLimiter
	recorder metrics.Recorder
	sessions middleware.SessionVerifier
	admins   middleware.AdminChecker
	policy   *service.AccessPolicy
	resolver middleware.KeyResolver
	keys     handler.KeyIssuer
	settings *service.SettingsService
	search   handler.Searcher

	subscriptions handler.SubscriptionReader
	feedback      handler.FeedbackService
	admin         handler.AdminService
	billing       handler.BillingService
	health        *handler.HealthHandler
	gatherer      prometheus.Gatherer
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg, logger := d.cfg, d.logger
	r := chi.NewRouter()

	h := handler.New(version)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, d.policy, d.keys)
	subscriptionHandler := handler.NewSubscriptionHandler(logger, d.subscriptions)
	searchHandler := handler.NewSearchHandler(logger, d.search)
	feedbackHandler := handler.NewFeedbackHandler(logger, d.feedback)
	settingsHandler := handler.NewSettingsHandler(logger, d.settings)
	adminHandler := handler.NewAdminHandler(d.admin, logger)
	billingHandler := handler.NewBillingHandler(logger, d.billing, cfg.AppOrigin)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = append(cfg.GetCORSAllowedOrigins(), cfg.AppOrigin)

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Unauthenticated endpoints
	r.Get("/", h.Root)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Method("GET", "/metrics", handler.NewMetricsHandler(d.gatherer))
	r.Post("/webhooks/stripe", billingHandler.StripeWebhook)

	maintenance := middleware.Maintenance(d.settings)

	// Browser routes authenticated with the auth provider's session token
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionAuth(middleware.SessionAuthConfig{
			Logger:   logger,
			Verifier: d.sessions,
			Admins:   d.admins,
		}))

		r.Get("/subscription", subscriptionHandler.Status)
		r.Get("/settings", settingsHandler.Get)
		r.Post("/billing/paypal/capture", billingHandler.PayPalCapture)

		r.Group(func(r chi.Router) {
			r.Use(maintenance)

			r.Get("/api-key", apiKeyHandler.Get)
			r.Post("/api-key", apiKeyHandler.Post)
			r.Post("/search", searchHandler.Search)
			r.Post("/feedback", feedbackHandler.Submit)
			r.Get("/feedback/summary", feedbackHandler.Summary)
			r.Post("/billing/checkout", billingHandler.Checkout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logger))

			r.Get("/users", adminHandler.ListUsers)
			r.Post("/users/{userID}/api-access", adminHandler.ToggleAPIAccess)
			r.Post("/users/{userID}/status", adminHandler.ToggleStatus)
			r.Put("/settings", settingsHandler.Update)
			r.Get("/api-keys", adminHandler.ListAPIKeysByUser)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/feedback", feedbackHandler.Recent)
		})
	})

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:     logger,
		Limiter:    d.limiter,
		Metrics:    d.recorder,
		APIEnabled: cfg.RateLimitAPIEnabled,
		APILimit: model.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimitAPIPerMinute,
			Burst:             cfg.RateLimitAPIBurst,
		},
		IPEnabled: cfg.RateLimitIPEnabled,
		IPRPS:     cfg.RateLimitIPRPS,
		IPBurst:   cfg.RateLimitIPBurst,
	}

	// Public search API authenticated with sk_ keys
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(middleware.APIKeyAuth(middleware.APIKeyAuthConfig{
			Logger:   logger,
			Resolver: d.resolver,
			Policy:   d.policy,
		}))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		r.Post("/search", searchHandler.Search)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
