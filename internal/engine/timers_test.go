package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/channeldesk/dialog-engine/internal/model"
)

func timerKey(contact string) model.ConversationKey {
	return model.ConversationKey{TenantID: "t1", ChannelID: "whatsapp", ContactID: contact}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestTimerSet_Fires(t *testing.T) {
	set := newTimerSet()
	defer set.Stop()

	var fired atomic.Int32
	set.Arm(timerKey("c1"), "tm-1", 1, time.Millisecond, func() { fired.Add(1) })

	waitFor(t, func() bool { return fired.Load() == 1 })
	assert.Equal(t, 0, set.Len())
}

func TestTimerSet_RearmReplaces(t *testing.T) {
	set := newTimerSet()
	defer set.Stop()

	var old, current atomic.Int32
	set.Arm(timerKey("c1"), "tm-1", 1, 5*time.Millisecond, func() { old.Add(1) })
	set.Arm(timerKey("c1"), "tm-2", 2, 10*time.Millisecond, func() { current.Add(1) })
	assert.Equal(t, 1, set.Len())

	waitFor(t, func() bool { return current.Load() == 1 })
	assert.Equal(t, int32(0), old.Load())
}

func TestTimerSet_Cancel(t *testing.T) {
	set := newTimerSet()
	defer set.Stop()

	var fired atomic.Int32
	set.Arm(timerKey("c1"), "tm-1", 1, 10*time.Millisecond, func() { fired.Add(1) })
	set.Cancel(timerKey("c1"))
	assert.Equal(t, 0, set.Len())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Cancelling an absent key is a no-op.
	set.Cancel(timerKey("c1"))
}

func TestTimerSet_Stop(t *testing.T) {
	set := newTimerSet()

	var fired atomic.Int32
	for _, contact := range []string{"c1", "c2", "c3"} {
		set.Arm(timerKey(contact), "tm", 1, 10*time.Millisecond, func() { fired.Add(1) })
	}
	assert.Equal(t, 3, set.Len())

	set.Stop()
	assert.Equal(t, 0, set.Len())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestTimerSet_IndependentKeys(t *testing.T) {
	set := newTimerSet()
	defer set.Stop()

	var c1, c2 atomic.Int32
	set.Arm(timerKey("c1"), "tm-1", 1, time.Millisecond, func() { c1.Add(1) })
	set.Arm(timerKey("c2"), "tm-2", 1, time.Millisecond, func() { c2.Add(1) })

	waitFor(t, func() bool { return c1.Load() == 1 && c2.Load() == 1 })
}
