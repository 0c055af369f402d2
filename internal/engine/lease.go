package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/channeldesk/dialog-engine/internal/model"
	"github.com/channeldesk/dialog-engine/pkg/metrics"
)

// leaseTable hands out exclusive per-conversation leases. Acquiring the
// lease before any read-modify-write is what guarantees at-most-one
// concurrent dispatch per conversation; an inbound message and a firing
// timer racing for the same key serialize here.
type leaseTable struct {
	mu     sync.Mutex
	leases map[model.ConversationKey]*leaseEntry

	retryDelay time.Duration
	maxWait    time.Duration
}

type leaseEntry struct {
	sem  chan struct{} // capacity 1
	refs int
}

func newLeaseTable(retryDelay, maxWait time.Duration) *leaseTable {
	return &leaseTable{
		leases:     make(map[model.ConversationKey]*leaseEntry),
		retryDelay: retryDelay,
		maxWait:    maxWait,
	}
}

// Acquire takes the lease for a key. The fast path is uncontended; under
// contention the caller waits a short delay and retries, then keeps
// waiting up to maxWait before giving up with ErrStateConflict. A losing
// event is therefore retried, never dropped, unless the holder is stuck
// far beyond any healthy dispatch duration.
func (t *leaseTable) Acquire(ctx context.Context, key model.ConversationKey) (release func(), err error) {
	entry := t.checkout(key)

	select {
	case entry.sem <- struct{}{}:
		return t.releaseFunc(key, entry), nil
	default:
	}

	// Contended: wait the retry delay, then block up to maxWait.
	metrics.LeaseConflictsTotal.Inc()

	select {
	case <-time.After(t.retryDelay):
	case <-ctx.Done():
		t.checkin(key, entry)
		return nil, fmt.Errorf("%w: %v", ErrStateConflict, ctx.Err())
	}

	waitTimer := time.NewTimer(t.maxWait)
	defer waitTimer.Stop()

	select {
	case entry.sem <- struct{}{}:
		return t.releaseFunc(key, entry), nil
	case <-waitTimer.C:
		t.checkin(key, entry)
		return nil, ErrStateConflict
	case <-ctx.Done():
		t.checkin(key, entry)
		return nil, fmt.Errorf("%w: %v", ErrStateConflict, ctx.Err())
	}
}

func (t *leaseTable) releaseFunc(key model.ConversationKey, entry *leaseEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			t.checkin(key, entry)
		})
	}
}

func (t *leaseTable) checkout(key model.ConversationKey) *leaseEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.leases[key]
	if !ok {
		entry = &leaseEntry{sem: make(chan struct{}, 1)}
		t.leases[key] = entry
	}
	entry.refs++
	return entry
}

func (t *leaseTable) checkin(key model.ConversationKey, entry *leaseEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(t.leases, key)
	}
}
