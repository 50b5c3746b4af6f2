package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lacs-cc/auth-gateway/internal/database"
	"github.com/lacs-cc/auth-gateway/internal/queue"
)

// HealthChecker handles health check requests.
type HealthChecker struct {
	db      *database.DB
	redis   *redis.Client
	events  queue.EventQueue
	version string
}

// HealthOption configures optional dependency probes.
type HealthOption func(*HealthChecker)

// WithRedisCheck adds a cache probe to extended health checks.
func WithRedisCheck(client *redis.Client) HealthOption {
	return func(h *HealthChecker) { h.redis = client }
}

// WithQueueCheck adds an event-queue probe to extended health checks.
func WithQueueCheck(q queue.EventQueue) HealthOption {
	return func(h *HealthChecker) { h.events = q }
}

// NewHealthChecker creates a health checker. version is reported on the
// /version endpoint.
func NewHealthChecker(db *database.DB, version string, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{db: db, version: version}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. The basic mode only confirms
// the process is serving; ?mode=extended probes the dependencies.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") != "extended" {
		respondJSON(w, http.StatusOK, response)
		return
	}

	checks := make(map[string]string)

	if err := h.checkDatabase(r.Context()); err != nil {
		response.Status = "unhealthy"
		checks["database"] = "unhealthy: " + err.Error()
	} else {
		checks["database"] = "healthy"
	}

	if h.redis != nil {
		if err := h.checkRedis(r.Context()); err != nil {
			response.Status = "unhealthy"
			checks["cache"] = "unhealthy: " + err.Error()
		} else {
			checks["cache"] = "healthy"
		}
	}

	if h.events != nil {
		if err := h.events.HealthCheck(r.Context()); err != nil {
			response.Status = "unhealthy"
			checks["queue"] = "unhealthy: " + err.Error()
		} else {
			checks["queue"] = "healthy"
		}
	}

	response.Checks = checks

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	respondJSON(w, statusCode, response)
}

// Version handles the /version endpoint.
func (h *HealthChecker) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.db.PingContext(ctx)
}

func (h *HealthChecker) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.redis.Ping(ctx).Err()
}
