// Package handler provides HTTP handlers for the ingestion API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/channeldesk/dialog-engine/internal/engine"
	"github.com/channeldesk/dialog-engine/internal/middleware"
	"github.com/channeldesk/dialog-engine/internal/model"
	"github.com/channeldesk/dialog-engine/pkg/logger"
)

// EventHandler accepts inbound visitor messages from the channel-ingestion
// layer and pushes them into the engine.
type EventHandler struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eng *engine.Engine, log *logger.Logger) *EventHandler {
	return &EventHandler{engine: eng, logger: log}
}

type inboundRequest struct {
	ChannelID  string    `json:"channel_id"`
	ContactID  string    `json:"contact_id"`
	RawText    string    `json:"raw_text"`
	ReceivedAt time.Time `json:"received_at"`
}

type inboundResponse struct {
	Accepted bool `json:"accepted"`
}

// Ingest handles POST /api/v1/events
func (h *EventHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateConversationKey(tenantID, req.ChannelID, req.ContactID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageText(req.RawText); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	ev := model.InboundEvent{
		TenantID:   tenantID,
		ChannelID:  req.ChannelID,
		ContactID:  req.ContactID,
		RawText:    req.RawText,
		ReceivedAt: receivedAt,
	}

	if err := h.engine.HandleInbound(ctx, ev); err != nil {
		if errors.Is(err, engine.ErrStateConflict) {
			writeError(w, http.StatusConflict, "conversation busy, retry")
			return
		}
		h.logger.Error("inbound dispatch failed",
			zap.String("tenant_id", tenantID),
			zap.String("contact_id", req.ContactID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	writeJSON(w, http.StatusAccepted, inboundResponse{Accepted: true})
}
