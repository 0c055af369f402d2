package engine

import (
	"sync"
	"time"

	"github.com/channeldesk/dialog-engine/internal/model"
	"github.com/channeldesk/dialog-engine/pkg/metrics"
)

// timerSet keeps one logical expiration timer per non-terminal
// conversation. Each armed timer captures the state version it was armed
// against; HandleTimeout discards firings whose version no longer matches,
// so a timer that loses the race to an inbound message is a no-op.
type timerSet struct {
	mu     sync.Mutex
	timers map[model.ConversationKey]*armedTimer
}

type armedTimer struct {
	id      string
	version int64
	timer   *time.Timer
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[model.ConversationKey]*armedTimer)}
}

// Arm schedules (or reschedules) the timer for a key. Any previously armed
// timer for the key is cancelled first.
func (s *timerSet) Arm(key model.ConversationKey, id string, version int64, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok {
		existing.timer.Stop()
	} else {
		metrics.ConversationsActive.Inc()
	}

	armed := &armedTimer{id: id, version: version}
	armed.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if current, ok := s.timers[key]; ok && current == armed {
			delete(s.timers, key)
			metrics.ConversationsActive.Dec()
		}
		s.mu.Unlock()
		fire()
	})
	s.timers[key] = armed
}

// Cancel stops and removes the timer for a key. Safe to call when no timer
// is armed.
func (s *timerSet) Cancel(key model.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if armed, ok := s.timers[key]; ok {
		armed.timer.Stop()
		delete(s.timers, key)
		metrics.ConversationsActive.Dec()
	}
}

// Stop cancels every outstanding timer; used during shutdown.
func (s *timerSet) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, armed := range s.timers {
		armed.timer.Stop()
		delete(s.timers, key)
		metrics.ConversationsActive.Dec()
	}
}

// Len returns the number of armed timers.
func (s *timerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
