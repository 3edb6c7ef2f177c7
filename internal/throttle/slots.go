package throttle

import (
	"context"
	"sync"
	"time"
)

// DefaultSlotTTL bounds how long a reserved slot survives when its
// release is missed, e.g. after a crash mid-request.
const DefaultSlotTTL = 30 * time.Second

// SlotStore reserves and releases similar-request slots. Reserve must
// be an atomic check-and-set: two concurrent reservations of the same
// key must never both succeed.
type SlotStore interface {
	// Reserve attempts to claim the slot for key. It returns true when
	// the slot was free and is now held, false when it is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the slot for key. Releasing a free slot is a no-op.
	Release(ctx context.Context, key string) error
}

// MemorySlotStore is an in-process SlotStore for single-instance
// deployments.
type MemorySlotStore struct {
	mu    sync.Mutex
	slots map[string]time.Time
	clock func() time.Time
}

// NewMemorySlotStore creates an empty in-memory slot store.
func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{
		slots: make(map[string]time.Time),
		clock: time.Now,
	}
}

// Reserve implements SlotStore. The existence check and the claim run
// under one lock so concurrent duplicates cannot both pass.
func (s *MemorySlotStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, held := s.slots[key]; held && now.Before(expiry) {
		return false, nil
	}
	s.slots[key] = now.Add(ttl)

	// Opportunistic sweep of expired entries to bound memory.
	for k, expiry := range s.slots {
		if now.After(expiry) {
			delete(s.slots, k)
		}
	}
	return true, nil
}

// Release implements SlotStore.
func (s *MemorySlotStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key)
	return nil
}

// Ensure MemorySlotStore implements SlotStore.
var _ SlotStore = (*MemorySlotStore)(nil)
