package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// readinessTimeout bounds each dependency ping.
const readinessTimeout = 2 * time.Second

// Probe outcomes reported in HealthResponse.Checks.
const (
	checkOK            = "ok"
	checkUnavailable   = "unavailable"
	checkNotConfigured = "not configured"
)

// HealthChecker is a pingable dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	logger *slog.Logger
	deps   []namedChecker
}

type namedChecker struct {
	name    string
	checker HealthChecker
}

// NewHealthHandler probes postgres and redis. A nil checker reports
// "not configured" and does not fail readiness.
func NewHealthHandler(logger *slog.Logger, db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		deps: []namedChecker{
			{name: "postgres", checker: db},
			{name: "redis", checker: cache},
		},
	}
}

// HealthResponse is the probe body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe; it checks nothing.
func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: checkOK})
}

// Readyz pings every dependency and answers 503 if one fails. Failure
// details go to the log only.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: checkOK, Checks: make(map[string]string, len(h.deps))}

	for _, d := range h.deps {
		result := h.probe(r.Context(), d)
		resp.Checks[d.name] = result
		if result == checkUnavailable {
			resp.Status = "unhealthy"
		}
	}

	status := http.StatusOK
	if resp.Status != checkOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *HealthHandler) probe(ctx context.Context, d namedChecker) string {
	if d.checker == nil {
		return checkNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	if err := d.checker.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed",
			slog.String("dependency", d.name),
			slog.String("error", err.Error()),
		)
		return checkUnavailable
	}
	return checkOK
}
