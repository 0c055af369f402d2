// Package handoff emits conversation transfers to the ticket system.
package handoff

import (
	"context"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// Emitter creates or updates the external ticket record when a
// conversation leaves automated dispatch. The engine knows nothing about
// ticket schema beyond the returned reference.
type Emitter interface {
	Handoff(ctx context.Context, req model.HandoffRequest) (model.TicketRef, error)
}
