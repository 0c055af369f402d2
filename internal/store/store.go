// Package store persists conversation state.
package store

import (
	"context"
	"errors"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// ErrNotFound is returned when no state exists for a key.
var ErrNotFound = errors.New("conversation state not found")

// Store is the durable conversation-state collaborator. Operations must be
// atomic per key; cross-key ordering is not required. The engine serializes
// read-modify-write cycles itself via per-key leases, so implementations
// only need point atomicity, not transactions.
type Store interface {
	// Load returns the state for a key, or ErrNotFound.
	Load(ctx context.Context, key model.ConversationKey) (*model.ConversationState, error)

	// Save writes the state for a key, creating or replacing it.
	Save(ctx context.Context, state *model.ConversationState) error

	// Delete removes the state for a key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key model.ConversationKey) error

	// List returns all persisted states; used to rebuild timers after a
	// restart.
	List(ctx context.Context) ([]*model.ConversationState, error)
}
