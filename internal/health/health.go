// Package health provides liveness and readiness probes for the gateway.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// Status represents a probe status.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDraining indicates the service is shutting down and should
	// receive no new traffic.
	StatusDraining Status = "draining"
)

// DefaultCheckTimeout bounds each dependency check during a readiness probe.
const DefaultCheckTimeout = 5 * time.Second

// CheckFunc probes a single dependency.
type CheckFunc func(ctx context.Context) error

// Check is the result of a single dependency probe.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the body of a readiness or health probe.
type Response struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Checker runs dependency checks and serves probe endpoints.
type Checker struct {
	version      string
	startTime    time.Time
	checkTimeout time.Duration
	logger       observability.Logger

	mu       sync.RWMutex
	checks   map[string]CheckFunc
	draining bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithCheckTimeout sets the per-check timeout for readiness probes.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.checkTimeout = d
	}
}

// NewChecker creates a checker.
func NewChecker(version string, opts ...Option) *Checker {
	c := &Checker{
		version:      version,
		startTime:    time.Now(),
		checkTimeout: DefaultCheckTimeout,
		logger:       observability.NopLogger(),
		checks:       make(map[string]CheckFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a named dependency check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetDraining marks the service as draining. A draining service fails
// readiness so load balancers stop routing to it before shutdown.
func (c *Checker) SetDraining(draining bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = draining
}

// Draining reports whether the service is draining.
func (c *Checker) Draining() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draining
}

// Health reports liveness. It never probes dependencies.
func (c *Checker) Health() Response {
	return Response{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Readiness probes all registered dependencies.
func (c *Checker) Readiness(ctx context.Context) Response {
	c.mu.RLock()
	draining := c.draining
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	resp := Response{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(checks)),
		Timestamp: time.Now(),
	}

	if draining {
		resp.Status = StatusDraining
		return resp
	}

	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
		err := fn(checkCtx)
		cancel()

		if err != nil {
			resp.Checks[name] = Check{Status: StatusUnhealthy, Message: err.Error()}
			resp.Status = StatusUnhealthy
			c.logger.Warn("readiness check failed",
				observability.String("check", name),
				observability.Error(err),
			)
			continue
		}
		resp.Checks[name] = Check{Status: StatusHealthy}
	}

	return resp
}

// HealthHandler serves the liveness probe.
func (c *Checker) HealthHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, c.Health())
	}
}

// ReadinessHandler serves the readiness probe. Draining and unhealthy
// both return 503.
func (c *Checker) ReadinessHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		resp := c.Readiness(ctx.Request.Context())

		status := http.StatusOK
		if resp.Status != StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, resp)
	}
}

// RedisCheck probes a Redis client.
func RedisCheck(client *redis.Client) CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// HTTPCheck probes an HTTP endpoint and treats any response below 500
// as healthy.
func HTTPCheck(client *http.Client, url string) CheckFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= http.StatusInternalServerError {
			return &StatusError{Code: resp.StatusCode}
		}
		return nil
	}
}

// StatusError reports an unexpected upstream status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}
