package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	natsclient "github.com/channeldesk/dialog-engine/internal/nats"
	"github.com/channeldesk/dialog-engine/internal/model"
)

// ticketRequest is the payload the ticket system consumes.
type ticketRequest struct {
	TicketID string `json:"ticket_id"`
	model.HandoffRequest
}

// NATSEmitter publishes handoff requests to the tenant's handoff subject.
// The ticket/queue/agent assignment service consumes them and performs the
// actual assignment.
type NATSEmitter struct {
	streams *natsclient.StreamManager
}

// NewNATSEmitter creates an emitter backed by the dialog stream.
func NewNATSEmitter(streams *natsclient.StreamManager) *NATSEmitter {
	return &NATSEmitter{streams: streams}
}

// Handoff implements Emitter.
func (e *NATSEmitter) Handoff(ctx context.Context, req model.HandoffRequest) (model.TicketRef, error) {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	ticket := ticketRequest{
		TicketID:       uuid.Must(uuid.NewV7()).String(),
		HandoffRequest: req,
	}

	if _, err := e.streams.Publish(ctx, natsclient.HandoffSubject(req.Key.TenantID), ticket); err != nil {
		return model.TicketRef{}, fmt.Errorf("emit handoff for %s: %w", req.Key, err)
	}

	return model.TicketRef{ID: ticket.TicketID}, nil
}
