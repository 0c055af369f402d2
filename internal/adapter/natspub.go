package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	natsclient "github.com/channeldesk/dialog-engine/internal/nats"
	"github.com/channeldesk/dialog-engine/internal/model"
)

// outboundDelivery is the payload wire adapters consume from JetStream.
type outboundDelivery struct {
	ID        string                `json:"id"`
	Key       model.ConversationKey `json:"key"`
	Content   model.Content         `json:"content"`
	CreatedAt time.Time             `json:"created_at"`
}

// NATSPublisher is an Adapter that publishes outbound content to
// per-channel JetStream subjects. The channel-specific wire adapters (the
// processes that actually call a channel's HTTP API) subscribe to their
// subject and deliver from there, replaying after downtime.
type NATSPublisher struct {
	streams *natsclient.StreamManager
}

// NewNATSPublisher creates an adapter backed by the dialog stream.
func NewNATSPublisher(streams *natsclient.StreamManager) *NATSPublisher {
	return &NATSPublisher{streams: streams}
}

// Send implements Adapter.
func (p *NATSPublisher) Send(ctx context.Context, key model.ConversationKey, content model.Content) (Ack, error) {
	delivery := outboundDelivery{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Key:       key,
		Content:   content,
		CreatedAt: time.Now(),
	}

	seq, err := p.streams.Publish(ctx, natsclient.OutboundSubject(key), delivery)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	return Ack{ProviderRef: delivery.ID, Sequence: seq}, nil
}
