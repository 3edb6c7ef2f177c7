package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// Logger is the audit trail consulted by the dispatcher.
type Logger interface {
	// Open stores a new record and returns its log identifier.
	Open(ctx context.Context, record *Record) string

	// Close completes the record: outcome, error message, and any
	// additional entity identifiers found in the response.
	Close(ctx context.Context, logID string, result Result, entityIDs []string, errMsg string)
}

// Sink receives closed audit records.
type Sink interface {
	Write(ctx context.Context, record *Record)
}

// logger implements Logger with an in-memory open-record table and a
// sink for closed records.
type logger struct {
	mu      sync.Mutex
	open    map[string]*Record
	sink    Sink
	log     observability.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

// LoggerOption is a functional option for the audit logger.
type LoggerOption func(*logger)

// WithLogger sets the diagnostic logger.
func WithLogger(log observability.Logger) LoggerOption {
	return func(l *logger) {
		l.log = log
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *observability.Metrics) LoggerOption {
	return func(l *logger) {
		l.metrics = metrics
	}
}

// WithClock sets the clock used for record timestamps.
func WithClock(clock func() time.Time) LoggerOption {
	return func(l *logger) {
		l.clock = clock
	}
}

// NewLogger creates an audit logger writing closed records to sink.
func NewLogger(sink Sink, opts ...LoggerOption) Logger {
	l := &logger{
		open:  make(map[string]*Record),
		sink:  sink,
		log:   observability.NopLogger(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open implements Logger.
func (l *logger) Open(_ context.Context, record *Record) string {
	record.LogID = uuid.New().String()
	record.OpenedAt = l.clock()

	l.mu.Lock()
	l.open[record.LogID] = record
	l.mu.Unlock()

	return record.LogID
}

// Close implements Logger. Closing an unknown log identifier is a
// logged no-op.
func (l *logger) Close(ctx context.Context, logID string, result Result, entityIDs []string, errMsg string) {
	l.mu.Lock()
	record, ok := l.open[logID]
	if ok {
		delete(l.open, logID)
	}
	l.mu.Unlock()

	if !ok {
		l.log.WithContext(ctx).Warn("audit close without open record",
			observability.String("log_id", logID),
		)
		return
	}

	record.Result = result
	record.Error = errMsg
	record.ClosedAt = l.clock()
	record.EntityIDs = mergeIDs(record.EntityIDs, entityIDs)

	if l.metrics != nil {
		l.metrics.ObserveAuditRecord(record.Category, string(result))
	}
	if l.sink != nil {
		l.sink.Write(ctx, record)
	}
}

// mergeIDs merges two sorted identifier slices, deduplicating.
func mergeIDs(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, set := range [][]string{a, b} {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}
