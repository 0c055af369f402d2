package model

import (
	"fmt"
	"time"
)

// Status is the state-machine position of a conversation.
type Status string

const (
	StatusNew           Status = "new"
	StatusAwaitingInput Status = "awaiting_input"
	StatusDispatching   Status = "dispatching"
	StatusTerminal      Status = "terminal"
)

// ConversationKey identifies one conversation: a (tenant, channel, contact)
// triple. It doubles as the persistence and lease key.
type ConversationKey struct {
	TenantID  string `json:"tenant_id"`
	ChannelID string `json:"channel_id"`
	ContactID string `json:"contact_id"`
}

// String renders the key in subject-safe dotted form.
func (k ConversationKey) String() string {
	return fmt.Sprintf("%s.%s.%s", k.TenantID, k.ChannelID, k.ContactID)
}

// ConversationState is the durable, per-contact runtime cursor into the
// menu tree. Mutated only by the engine core, under an exclusive lease.
type ConversationState struct {
	Key           ConversationKey `json:"key"`
	Status        Status          `json:"status"`
	CurrentMenuID string          `json:"current_menu_id"`

	// Path records each selection as "menuID:optionKey", in order. It is
	// attached to handoff requests so agents see how the visitor got there.
	Path []string `json:"path,omitempty"`

	// LastInput is the most recent visitor message, forwarded to assistant
	// completions as context.
	LastInput string `json:"last_input,omitempty"`

	FailedMatches int `json:"failed_matches"`
	// Descents counts consecutive submenu descents without an intervening
	// content send; bounds traversal of cyclic trees.
	Descents int `json:"descents"`

	EnteredAt    time.Time `json:"entered_at"`
	LastActivity time.Time `json:"last_activity"`

	// TimerID identifies the outstanding expiration timer, if any.
	// Version fences stale timer firings: a timer captures the version it
	// was armed against and is a no-op if the state has moved on.
	TimerID string `json:"timer_id,omitempty"`
	Version int64  `json:"version"`
}

// Terminal reports whether the state is absorbing.
func (s *ConversationState) Terminal() bool {
	return s.Status == StatusTerminal
}

// Touch bumps activity time and version.
func (s *ConversationState) Touch(now time.Time) {
	s.LastActivity = now
	s.Version++
}

// Clone returns a deep copy safe for independent mutation.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Path = append([]string(nil), s.Path...)
	return &clone
}

// HandoffTarget identifies where a conversation is handed off to.
type HandoffTarget struct {
	AgentID string `json:"agent_id,omitempty"`
	QueueID string `json:"queue_id,omitempty"`
}

// TicketRef is the external ticket record created by a handoff.
type TicketRef struct {
	ID string `json:"id"`
}
