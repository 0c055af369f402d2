// Package engine executes tenant dialog trees against live conversations.
package engine

import (
	"errors"
)

var (
	// ErrStateConflict is returned when the exclusive lease on a
	// conversation could not be acquired even after the retry delay.
	ErrStateConflict = errors.New("conversation lease conflict")

	// ErrBoundedLoopExceeded is raised when consecutive submenu descents
	// without an intervening content send exceed the cap. It signals a
	// configuration smell (a submenu cycle) and forces a handoff.
	ErrBoundedLoopExceeded = errors.New("submenu descent cap exceeded")

	// ErrTerminal is returned when an event targets a conversation that
	// has already reached its absorbing state.
	ErrTerminal = errors.New("conversation is terminal")
)

// Handoff reasons recorded on forced escalations.
const (
	ReasonSelected        = "selected"
	ReasonInvalidInput    = "invalid_input"
	ReasonTimeout         = "timeout"
	ReasonDeliveryFailure = "delivery_failure"
	ReasonAssistantError  = "assistant_error"
	ReasonBoundedLoop     = "bounded_loop"
	ReasonConfigError     = "config_error"
	ReasonAgentTakeover   = "agent_takeover"
)
