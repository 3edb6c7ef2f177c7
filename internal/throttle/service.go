// Package throttle protects backend services from abusive and
// duplicate traffic. Two independent admission mechanisms exist: rate
// limiting by source address, consulted before authentication, and
// similar-request suppression for mutating calls, consulted after.
package throttle

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// Rejection kinds reported to metrics.
const (
	rejectionRate    = "rate"
	rejectionSimilar = "similar"
)

// Config holds throttle service configuration.
type Config struct {
	// Authenticated is the per-IP limit for requests with credentials.
	Authenticated SourceLimits

	// Anonymous is the per-IP limit for requests without credentials.
	Anonymous SourceLimits

	// SlotTTL bounds slot retention when release is missed. Zero means
	// DefaultSlotTTL.
	SlotTTL time.Duration

	// ExcludedEndpoints lists "{METHOD} {normalizedPath}" endpoints that
	// opt out of similar-request suppression.
	ExcludedEndpoints []string
}

// Service is the throttle service consulted by the dispatcher.
type Service struct {
	source  *SourceLimiter
	slots   SlotStore
	slotTTL time.Duration

	mu         sync.RWMutex
	exclusions map[string]struct{}

	logger  observability.Logger
	metrics *observability.Metrics
}

// ServiceOption is a functional option for the service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the service.
func WithServiceLogger(logger observability.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceMetrics sets the metrics sink for the service.
func WithServiceMetrics(metrics *observability.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService creates a throttle service over the given slot store.
func NewService(cfg Config, slots SlotStore, opts ...ServiceOption) *Service {
	slotTTL := cfg.SlotTTL
	if slotTTL <= 0 {
		slotTTL = DefaultSlotTTL
	}
	if slots == nil {
		slots = NewMemorySlotStore()
	}

	s := &Service{
		source:     NewSourceLimiter(cfg.Authenticated, cfg.Anonymous),
		slots:      slots,
		slotTTL:    slotTTL,
		exclusions: make(map[string]struct{}),
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.SetExclusions(cfg.ExcludedEndpoints)
	return s
}

// AdmitSource checks the source rate limit for clientIP. It is called
// before authentication completes; authenticated reports whether the
// request carried parseable credentials.
func (s *Service) AdmitSource(ctx context.Context, clientIP string, authenticated bool) error {
	if s.source.Allow(clientIP, authenticated) {
		return nil
	}
	if s.metrics != nil {
		s.metrics.ObserveThrottleRejection(rejectionRate)
	}
	s.logger.WithContext(ctx).Warn("rate limit exceeded",
		observability.String("client_ip", clientIP),
		observability.Bool("authenticated", authenticated),
	)
	return ErrRateLimitExceeded
}

// ReserveSlot reserves the similar-request slot for a mutating request.
// It returns true when a slot was reserved and must later be released.
// Non-mutating methods and excluded endpoints reserve nothing. A held
// slot fails with ErrTooManySimilarRequests.
func (s *Service) ReserveSlot(ctx context.Context, sessionID, method, path string) (bool, error) {
	if !IsMutating(method) {
		return false, nil
	}
	key := NewKey(sessionID, method, path)
	if s.excluded(key.Endpoint()) {
		return false, nil
	}

	reserved, err := s.slots.Reserve(ctx, key.String(), s.slotTTL)
	if err != nil {
		// Store failures admit the request without a slot.
		s.logger.WithContext(ctx).Error("slot reservation failed",
			observability.String("key", key.String()),
			observability.Error(err),
		)
		return false, nil
	}
	if !reserved {
		if s.metrics != nil {
			s.metrics.ObserveThrottleRejection(rejectionSimilar)
		}
		return false, ErrTooManySimilarRequests
	}
	return true, nil
}

// ReleaseSlot frees the slot reserved by ReserveSlot.
func (s *Service) ReleaseSlot(ctx context.Context, sessionID, method, path string) {
	key := NewKey(sessionID, method, path)
	if err := s.slots.Release(ctx, key.String()); err != nil {
		s.logger.WithContext(ctx).Error("slot release failed",
			observability.String("key", key.String()),
			observability.Error(err),
		)
	}
}

// SetExclusions replaces the endpoints excluded from similar-request
// suppression. Entries are "{METHOD} {normalizedPath}".
func (s *Service) SetExclusions(endpoints []string) {
	exclusions := make(map[string]struct{}, len(endpoints))
	for _, endpoint := range endpoints {
		exclusions[endpoint] = struct{}{}
	}
	s.mu.Lock()
	s.exclusions = exclusions
	s.mu.Unlock()
}

// SetSourceLimits replaces the source rate limits.
func (s *Service) SetSourceLimits(authenticated, anonymous SourceLimits) {
	s.source.SetLimits(authenticated, anonymous)
}

// Stop terminates background work.
func (s *Service) Stop() {
	s.source.Stop()
}

// excluded reports whether the endpoint opted out of suppression.
func (s *Service) excluded(endpoint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.exclusions[endpoint]
	return ok
}

// IsMutating reports whether the method is subject to similar-request
// suppression.
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
