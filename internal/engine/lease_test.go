package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channeldesk/dialog-engine/internal/model"
)

func leaseKey(contact string) model.ConversationKey {
	return model.ConversationKey{TenantID: "t1", ChannelID: "whatsapp", ContactID: contact}
}

func TestLease_AcquireRelease(t *testing.T) {
	table := newLeaseTable(time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()

	release, err := table.Acquire(ctx, leaseKey("c1"))
	require.NoError(t, err)
	release()

	// Releasing twice is harmless.
	release()

	again, err := table.Acquire(ctx, leaseKey("c1"))
	require.NoError(t, err)
	again()
}

func TestLease_IndependentKeys(t *testing.T) {
	table := newLeaseTable(time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()

	r1, err := table.Acquire(ctx, leaseKey("c1"))
	require.NoError(t, err)
	defer r1()

	// A different conversation is never blocked.
	r2, err := table.Acquire(ctx, leaseKey("c2"))
	require.NoError(t, err)
	r2()
}

func TestLease_ContentionTimesOut(t *testing.T) {
	table := newLeaseTable(time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	release, err := table.Acquire(ctx, leaseKey("c1"))
	require.NoError(t, err)

	_, err = table.Acquire(ctx, leaseKey("c1"))
	assert.ErrorIs(t, err, ErrStateConflict)

	release()

	// Once the holder releases, acquisition succeeds again.
	again, err := table.Acquire(ctx, leaseKey("c1"))
	require.NoError(t, err)
	again()
}

func TestLease_WaiterGetsLeaseAfterRelease(t *testing.T) {
	table := newLeaseTable(time.Millisecond, time.Second)
	ctx := context.Background()

	release, err := table.Acquire(ctx, leaseKey("c1"))
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := table.Acquire(ctx, leaseKey("c1"))
		if err == nil {
			r()
		}
		close(acquired)
	}()

	time.Sleep(5 * time.Millisecond)
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lease")
	}
}

func TestLease_ContextCancellation(t *testing.T) {
	table := newLeaseTable(10*time.Millisecond, time.Second)

	release, err := table.Acquire(context.Background(), leaseKey("c1"))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = table.Acquire(ctx, leaseKey("c1"))
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestLease_SerializesCriticalSections(t *testing.T) {
	table := newLeaseTable(time.Millisecond, 5*time.Second)
	ctx := context.Background()
	key := leaseKey("c1")

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := table.Acquire(ctx, key)
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestLease_TableDoesNotLeakEntries(t *testing.T) {
	table := newLeaseTable(time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		release, err := table.Acquire(ctx, leaseKey("c1"))
		require.NoError(t, err)
		release()
	}

	table.mu.Lock()
	defer table.mu.Unlock()
	assert.Empty(t, table.leases)
}
