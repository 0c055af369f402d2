// Package assistant provides completion-provider clients for the
// invoke-assistant action. Every provider is an opaque completion call: the
// engine sends the configured prompt plus the visitor's message and
// forwards the answer verbatim.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// ErrUnavailable is returned when no client is configured for a provider.
var ErrUnavailable = errors.New("assistant provider unavailable")

// Client is one completion provider.
type Client interface {
	// Complete returns a completion for the configured prompt plus the
	// visitor's message.
	Complete(ctx context.Context, prompt, contextText string) (string, error)

	// Provider returns the provider family this client serves.
	Provider() model.AssistantProvider
}

// Registry routes invoke-assistant actions to the configured provider
// clients.
type Registry struct {
	clients map[model.AssistantProvider]Client
}

// NewRegistry builds a registry over the given clients.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[model.AssistantProvider]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Provider()] = c
	}
	return r
}

// Complete dispatches to the provider's client.
func (r *Registry) Complete(ctx context.Context, provider model.AssistantProvider, prompt, contextText string) (string, error) {
	client, ok := r.clients[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, provider)
	}
	return client.Complete(ctx, prompt, contextText)
}

// Providers lists the configured provider families.
func (r *Registry) Providers() []model.AssistantProvider {
	out := make([]model.AssistantProvider, 0, len(r.clients))
	for p := range r.clients {
		out = append(out, p)
	}
	return out
}
