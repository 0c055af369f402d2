package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// BucketName is the JetStream KeyValue bucket holding conversation state.
const BucketName = "CONV_STATE"

// KVStore is a Store backed by a NATS JetStream KeyValue bucket. KV writes
// are atomic per key, which is all the engine requires; serialization of
// read-modify-write cycles is the engine's lease responsibility.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore binds to (creating if needed) the conversation-state bucket.
func NewKVStore(ctx context.Context, js jetstream.JetStream) (*KVStore, error) {
	kv, err := js.KeyValue(ctx, BucketName)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketName,
			Description: "dialog engine conversation state",
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("bind conversation state bucket: %w", err)
	}
	return &KVStore{kv: kv}, nil
}

// Load implements Store.
func (s *KVStore) Load(ctx context.Context, key model.ConversationKey) (*model.ConversationState, error) {
	entry, err := s.kv.Get(ctx, key.String())
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", key, err)
	}

	var state model.ConversationState
	if err := json.Unmarshal(entry.Value(), &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}
	return &state, nil
}

// Save implements Store.
func (s *KVStore) Save(ctx context.Context, state *model.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", state.Key, err)
	}
	if _, err := s.kv.Put(ctx, state.Key.String(), data); err != nil {
		return fmt.Errorf("save state %s: %w", state.Key, err)
	}
	return nil
}

// Delete implements Store.
func (s *KVStore) Delete(ctx context.Context, key model.ConversationKey) error {
	err := s.kv.Delete(ctx, key.String())
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *KVStore) List(ctx context.Context) ([]*model.ConversationState, error) {
	keys, err := s.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list state keys: %w", err)
	}

	states := make([]*model.ConversationState, 0, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load state %s: %w", key, err)
		}
		var state model.ConversationState
		if err := json.Unmarshal(entry.Value(), &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, nil
}
