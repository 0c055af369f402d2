package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channeldesk/dialog-engine/internal/model"
)

func testState(contact string) *model.ConversationState {
	return &model.ConversationState{
		Key:           model.ConversationKey{TenantID: "t1", ChannelID: "whatsapp", ContactID: contact},
		Status:        model.StatusAwaitingInput,
		CurrentMenuID: "root",
		Path:          []string{"root:1"},
		EnteredAt:     time.Now().UTC(),
		LastActivity:  time.Now().UTC(),
		Version:       1,
	}
}

func TestMemoryStore_SaveLoad(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	state := testState("c1")

	require.NoError(t, s.Save(ctx, state))

	loaded, err := s.Load(ctx, state.Key)
	require.NoError(t, err)
	assert.Equal(t, state.Key, loaded.Key)
	assert.Equal(t, "root", loaded.CurrentMenuID)
	assert.Equal(t, []string{"root:1"}, loaded.Path)
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Load(context.Background(), testState("nobody").Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	state := testState("c1")
	require.NoError(t, s.Save(ctx, state))

	// Mutating the saved value after Save must not leak into the store.
	state.CurrentMenuID = "mutated"
	state.Path = append(state.Path, "root:2")

	loaded, err := s.Load(ctx, state.Key)
	require.NoError(t, err)
	assert.Equal(t, "root", loaded.CurrentMenuID)
	assert.Equal(t, []string{"root:1"}, loaded.Path)

	// Mutating a loaded value must not leak either.
	loaded.Path[0] = "tampered"
	again, err := s.Load(ctx, state.Key)
	require.NoError(t, err)
	assert.Equal(t, "root:1", again.Path[0])
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	state := testState("c1")
	require.NoError(t, s.Save(ctx, state))
	require.NoError(t, s.Delete(ctx, state.Key))

	_, err := s.Load(ctx, state.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete(ctx, state.Key))
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testState("c1")))
	require.NoError(t, s.Save(ctx, testState("c2")))
	require.NoError(t, s.Save(ctx, testState("c3")))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			state := testState("c1")
			state.Version = int64(n)
			_ = s.Save(ctx, state)
			_, _ = s.Load(ctx, state.Key)
			_, _ = s.List(ctx)
		}(i)
	}
	wg.Wait()

	loaded, err := s.Load(ctx, testState("c1").Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingInput, loaded.Status)
}
