// Package adapter defines the outbound channel contract.
package adapter

import (
	"context"
	"errors"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// ErrSendFailed wraps any adapter delivery failure. The engine retries
// sends with backoff and escalates to a human handoff when retries are
// exhausted.
var ErrSendFailed = errors.New("adapter send failed")

// Ack acknowledges an accepted outbound send.
type Ack struct {
	// ProviderRef is the channel-side identifier for the delivery, when
	// the channel reports one.
	ProviderRef string
	Sequence    uint64
}

// Adapter transmits outbound content to a channel. One implementation per
// channel family; the engine is adapter-agnostic and only ever calls Send.
type Adapter interface {
	Send(ctx context.Context, key model.ConversationKey, content model.Content) (Ack, error)
}
