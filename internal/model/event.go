package model

import (
	"time"
)

// InboundEvent is a visitor message pushed into the engine by the
// channel-ingestion layer.
type InboundEvent struct {
	TenantID   string    `json:"tenant_id"`
	ChannelID  string    `json:"channel_id"`
	ContactID  string    `json:"contact_id"`
	RawText    string    `json:"raw_text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Key returns the conversation key for the event.
func (e InboundEvent) Key() ConversationKey {
	return ConversationKey{TenantID: e.TenantID, ChannelID: e.ChannelID, ContactID: e.ContactID}
}

// ContentKind distinguishes outbound content shapes.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentFile       ContentKind = "file"
	ContentEvaluation ContentKind = "evaluation"
)

// Content is one outbound payload handed to a channel adapter.
type Content struct {
	Kind       ContentKind `json:"kind"`
	Text       string      `json:"text,omitempty"`
	MediaURL   string      `json:"media_url,omitempty"`
	MediaType  string      `json:"media_type,omitempty"`
	WebhookURL string      `json:"webhook_url,omitempty"`
}

// TextContent builds a plain text payload.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// AuditKind classifies engine audit records.
type AuditKind string

const (
	AuditOutbound   AuditKind = "outbound"
	AuditHandoff    AuditKind = "handoff"
	AuditTerminated AuditKind = "terminated"
	AuditTimeout    AuditKind = "timeout"
)

// AuditRecord is published for every outbound send, handoff, and terminal
// transition so the external store can archive conversation history.
type AuditRecord struct {
	ID        string          `json:"id"`
	Key       ConversationKey `json:"key"`
	Kind      AuditKind       `json:"kind"`
	MenuID    string          `json:"menu_id,omitempty"`
	Content   *Content        `json:"content,omitempty"`
	Target    *HandoffTarget  `json:"target,omitempty"`
	Path      []string        `json:"path,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Sequence  uint64          `json:"sequence,omitempty"`
}

// HandoffRequest asks the external ticket system to take over a
// conversation. The full selection path gives the agent context.
type HandoffRequest struct {
	Key       ConversationKey `json:"key"`
	Target    HandoffTarget   `json:"target"`
	Path      []string        `json:"path,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
