package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vitaliydpua/appgw/internal/apierror"
	"github.com/vitaliydpua/appgw/internal/observability"
)

// Default client settings.
const (
	// DefaultRequestTimeout is the default timeout for backend calls.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultBreakerThreshold is the request count after which the
	// failure ratio is evaluated.
	DefaultBreakerThreshold = 5

	// DefaultBreakerTimeout is how long an open circuit stays open.
	DefaultBreakerTimeout = 30 * time.Second
)

// ClientConfig holds configuration for a backend HTTP client.
type ClientConfig struct {
	// Name identifies the backend in logs, metrics and breaker state.
	Name string

	// BaseURL is the backend base URL without a trailing slash.
	BaseURL string

	// Timeout bounds each request. Zero means DefaultRequestTimeout.
	Timeout time.Duration

	// BreakerThreshold is the request count before the circuit may trip.
	BreakerThreshold int

	// BreakerTimeout is how long an open circuit stays open.
	BreakerTimeout time.Duration
}

// Client is a JSON-over-HTTP client for one backend service, wrapped in
// a circuit breaker. Transport failures and 5xx responses count against
// the breaker; structured 4xx responses do not.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics *observability.Metrics
}

// ClientOption is a functional option for the client.
type ClientOption func(*Client)

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger observability.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClientMetrics sets the metrics sink for the client.
func WithClientMetrics(metrics *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// NewClient creates a new backend client.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = DefaultBreakerTimeout
	}

	c := &Client{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(threshold),
		Interval:    breakerTimeout,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= uint32(threshold) && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("backend circuit breaker state change",
				observability.String("backend", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return c
}

// do performs a JSON request against the backend and decodes the
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.roundTrip(ctx, method, path, in, out)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w", c.name, ErrUnavailable)
		}
		if c.metrics != nil {
			c.metrics.ObserveBackendError(c.name)
		}
		return fmt.Errorf("%s: %w: %v", c.name, ErrUnavailable, err)
	}

	// Structured 4xx responses travel back as values so they are not
	// counted as breaker failures.
	if apiErr, ok := result.(*apierror.Error); ok && apiErr != nil {
		return apiErr
	}
	return nil
}

// roundTrip executes one HTTP exchange. It returns an *apierror.Error
// value (not error) for structured 4xx responses and an error for
// transport failures and 5xx responses.
func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) (any, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("backend %s returned status %d", c.name, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(resp), nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", c.name, err)
		}
	}
	return nil, nil
}

// decodeError maps a structured backend error response onto an
// *apierror.Error preserving the original status and code.
func (c *Client) decodeError(resp *http.Response) *apierror.Error {
	var envelope apierror.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
		envelope.Error.Status = resp.StatusCode
		return envelope.Error
	}
	return apierror.New(resp.StatusCode, "BACKEND_ERROR",
		fmt.Sprintf("%s request failed", c.name))
}

// statusOf returns the HTTP status carried by err, or zero.
func statusOf(err error) int {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
