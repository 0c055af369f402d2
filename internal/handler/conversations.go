package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/channeldesk/dialog-engine/internal/engine"
	"github.com/channeldesk/dialog-engine/internal/middleware"
	"github.com/channeldesk/dialog-engine/internal/model"
	"github.com/channeldesk/dialog-engine/internal/store"
	"github.com/channeldesk/dialog-engine/pkg/logger"
)

// ConversationHandler exposes conversation state inspection, history
// retrieval, and the manual agent-takeover signal.
type ConversationHandler struct {
	engine  *engine.Engine
	history HistorySource
	logger  *logger.Logger
}

// HistorySource pages through a conversation's archived audit records.
type HistorySource interface {
	GetAuditRecords(ctx context.Context, key model.ConversationKey, afterSequence uint64, limit int) ([]model.AuditRecord, uint64, bool, error)
}

// NewConversationHandler creates a new conversation handler. history may be
// nil; the history endpoint then reports the archive as unavailable.
func NewConversationHandler(eng *engine.Engine, history HistorySource, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{engine: eng, history: history, logger: log}
}

func conversationKey(r *http.Request) (model.ConversationKey, error) {
	tenantID := middleware.GetTenantID(r.Context())
	channelID := chi.URLParam(r, "channel")
	contactID := chi.URLParam(r, "contact")

	if err := middleware.ValidateConversationKey(tenantID, channelID, contactID); err != nil {
		return model.ConversationKey{}, err
	}
	return model.ConversationKey{TenantID: tenantID, ChannelID: channelID, ContactID: contactID}, nil
}

// Get handles GET /api/v1/conversations/{channel}/{contact}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.engine.State(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

type historyResponse struct {
	Records      []model.AuditRecord `json:"records"`
	LastSequence uint64              `json:"last_sequence"`
	HasMore      bool                `json:"has_more"`
}

// History handles GET /api/v1/conversations/{channel}/{contact}/history
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive unavailable")
		return
	}

	afterSequence, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	records, lastSequence, hasMore, err := h.history.GetAuditRecords(r.Context(), key, afterSequence, limit)
	if err != nil {
		h.logger.Error("history fetch failed",
			zap.String("tenant_id", key.TenantID),
			zap.String("contact_id", key.ContactID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	if records == nil {
		records = []model.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Records:      records,
		LastSequence: lastSequence,
		HasMore:      hasMore,
	})
}

// Takeover handles DELETE /api/v1/conversations/{channel}/{contact}
//
// A human agent has taken the conversation; automated dispatch stops and
// the timer is cancelled immediately.
func (h *ConversationHandler) Takeover(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Takeover(r.Context(), key); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, engine.ErrTerminal):
			writeError(w, http.StatusConflict, "conversation already terminal")
		default:
			writeError(w, http.StatusInternalServerError, "failed to take over conversation")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
