package memory

import (
	"context"
	"sync"
	"time"
)

// BatchLocker is the single-process fallback for the redis locker. It keeps
// the same acquire-or-skip semantics so a second concurrent batch for the
// same date is rejected rather than queued.
type BatchLocker struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

func NewBatchLocker() *BatchLocker {
	return &BatchLocker{leases: make(map[string]time.Time)}
}

func (l *BatchLocker) Acquire(_ context.Context, batchDate string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	if expiry, held := l.leases[batchDate]; held && now.Before(expiry) {
		return false, nil
	}
	l.leases[batchDate] = now.Add(ttl)
	return true, nil
}

func (l *BatchLocker) Release(_ context.Context, batchDate string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.leases, batchDate)
	return nil
}
