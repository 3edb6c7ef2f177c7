package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Source limiter defaults.
const (
	// DefaultClientTTL is how long an idle client entry is retained.
	DefaultClientTTL = 10 * time.Minute

	// cleanupInterval is how often idle client entries are swept.
	cleanupInterval = time.Minute
)

// SourceLimits holds the per-client rates for one traffic class.
type SourceLimits struct {
	// RPS is the sustained requests-per-second rate.
	RPS int

	// Burst is the maximum burst size.
	Burst int
}

// clientEntry holds a limiter and its last access time for TTL cleanup.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// SourceLimiter rate-limits by client IP. Authenticated and anonymous
// traffic carry independent limits; each class keeps its own per-client
// limiter map.
type SourceLimiter struct {
	authenticated SourceLimits
	anonymous     SourceLimits

	mu        sync.Mutex
	authed    map[string]*clientEntry
	anon      map[string]*clientEntry
	clientTTL time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewSourceLimiter creates a source limiter with the given limits and
// starts its background cleanup.
func NewSourceLimiter(authenticated, anonymous SourceLimits) *SourceLimiter {
	l := &SourceLimiter{
		authenticated: authenticated,
		anonymous:     anonymous,
		authed:        make(map[string]*clientEntry),
		anon:          make(map[string]*clientEntry),
		clientTTL:     DefaultClientTTL,
		stopCh:        make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a request from clientIP is admitted under the
// limits of its traffic class.
func (l *SourceLimiter) Allow(clientIP string, authenticated bool) bool {
	now := time.Now()

	l.mu.Lock()
	limits := l.anonymous
	clients := l.anon
	if authenticated {
		limits = l.authenticated
		clients = l.authed
	}
	if limits.RPS <= 0 {
		l.mu.Unlock()
		return true
	}

	entry, exists := clients[clientIP]
	if !exists {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Limit(limits.RPS), limits.Burst),
		}
		clients[clientIP] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// SetLimits replaces the limits and discards every client limiter so
// all sources pick up the new rates on their next request.
func (l *SourceLimiter) SetLimits(authenticated, anonymous SourceLimits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authenticated = authenticated
	l.anonymous = anonymous
	l.authed = make(map[string]*clientEntry)
	l.anon = make(map[string]*clientEntry)
}

// Stop terminates the background cleanup.
func (l *SourceLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

// cleanupLoop evicts idle client entries to bound memory.
func (l *SourceLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup removes entries idle for longer than the client TTL.
func (l *SourceLimiter) cleanup() {
	cutoff := time.Now().Add(-l.clientTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, clients := range []map[string]*clientEntry{l.authed, l.anon} {
		for ip, entry := range clients {
			if entry.lastAccess.Before(cutoff) {
				delete(clients, ip)
			}
		}
	}
}
