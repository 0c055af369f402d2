package store

import (
	"context"
	"sync"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// MemoryStore is a volatile Store keeping states in a process-local map.
// Safe for concurrent access; states are cloned on the way in and out so
// callers can never mutate shared internals. Suited to tests and
// single-node deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[model.ConversationKey]*model.ConversationState
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[model.ConversationKey]*model.ConversationState)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, key model.ConversationKey) (*model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[key]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, state *model.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Key] = state.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key model.ConversationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]*model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ConversationState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state.Clone())
	}
	return out, nil
}
