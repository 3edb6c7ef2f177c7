package audit

import (
	"context"
	"sync"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// LogSink writes closed records as structured log entries.
type LogSink struct {
	log observability.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(log observability.Logger) *LogSink {
	if log == nil {
		log = observability.NopLogger()
	}
	return &LogSink{log: log}
}

// Write implements Sink.
func (s *LogSink) Write(ctx context.Context, record *Record) {
	s.log.WithContext(ctx).Info("audit",
		observability.String("log_id", record.LogID),
		observability.String("ip", record.IP),
		observability.String("installation_id", record.InstallationID),
		observability.String("session_id", record.SessionID),
		observability.String("user_id", record.UserID),
		observability.String("counterparty_id", record.CounterpartyID),
		observability.String("category", record.Category),
		observability.String("action", record.Action),
		observability.Strings("entity_ids", record.EntityIDs),
		observability.String("result", string(record.Result)),
		observability.String("error", record.Error),
	)
}

// MemorySink retains closed records in memory for tests.
type MemorySink struct {
	mu      sync.Mutex
	records []*Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write implements Sink.
func (s *MemorySink) Write(_ context.Context, record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// Records returns the closed records in write order.
func (s *MemorySink) Records() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Record(nil), s.records...)
}

// Interface assertions for sinks.
var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*MemorySink)(nil)
)
