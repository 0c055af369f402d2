// Package model defines data structures for the dialog routing engine.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Menu is one node of a tenant's configured dialog tree.
type Menu struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	Level          int    `json:"level"`
	Greeting       string `json:"greeting"`
	TimeoutText    string `json:"timeout_text"`
	OfflineText    string `json:"offline_text"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Active         bool   `json:"active"`
}

// MenuItem is a selectable option of exactly one Menu.
type MenuItem struct {
	ID       string `json:"id"`
	MenuID   string `json:"menu_id"`
	Key      string `json:"key"`
	Label    string `json:"label"`
	Action   Action `json:"-"`
	Position int    `json:"position"`
	Active   bool   `json:"active"`
}

// NormalizeKey trims and case-folds an option key or visitor input so the
// two compare exactly.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AssistantProvider identifies a completion provider family. The engine
// treats every provider as an opaque completion call.
type AssistantProvider string

const (
	ProviderGPT    AssistantProvider = "gpt"
	ProviderGemini AssistantProvider = "gemini"
	ProviderGrok   AssistantProvider = "grok"
	ProviderClaude AssistantProvider = "claude"
)

// Action is the typed effect executed when a MenuItem is selected. The set
// of implementations is closed; dispatch switches over it exhaustively.
type Action interface {
	isAction()
	// Type returns the wire name of the action variant.
	Type() string
}

// SendMessage sends a text reply and keeps the conversation in place.
type SendMessage struct {
	Text string `json:"text"`
}

// SendFile sends a media attachment.
type SendFile struct {
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
}

// ForwardToAgent hands the conversation to a named agent, or to the
// tenant's default queue when no agent hint is given or available.
type ForwardToAgent struct {
	AgentHint string `json:"agent_hint,omitempty"`
}

// ForwardToQueue hands the conversation to a human queue.
type ForwardToQueue struct {
	QueueID string `json:"queue_id"`
}

// ForwardToBot soft-resets the conversation back to the tenant's entry menu.
type ForwardToBot struct{}

// SendEvaluation sends a satisfaction-survey link wired to a webhook.
type SendEvaluation struct {
	WebhookURL string `json:"webhook_url"`
}

// InvokeAssistant calls an external completion provider with the configured
// prompt plus the visitor's message and forwards the answer verbatim.
type InvokeAssistant struct {
	Provider AssistantProvider `json:"provider"`
	Prompt   string            `json:"prompt"`
}

// EnterSubmenu descends into another menu of the same tenant.
type EnterSubmenu struct {
	TargetMenuID string `json:"target_menu_id"`
}

// EndConversation terminates the conversation without further content.
type EndConversation struct{}

func (SendMessage) isAction()     {}
func (SendFile) isAction()        {}
func (ForwardToAgent) isAction()  {}
func (ForwardToQueue) isAction()  {}
func (ForwardToBot) isAction()    {}
func (SendEvaluation) isAction()  {}
func (InvokeAssistant) isAction() {}
func (EnterSubmenu) isAction()    {}
func (EndConversation) isAction() {}

func (SendMessage) Type() string     { return "send_message" }
func (SendFile) Type() string        { return "send_file" }
func (ForwardToAgent) Type() string  { return "forward_to_agent" }
func (ForwardToQueue) Type() string  { return "forward_to_queue" }
func (ForwardToBot) Type() string    { return "forward_to_bot" }
func (SendEvaluation) Type() string  { return "send_evaluation" }
func (InvokeAssistant) Type() string { return "invoke_assistant" }
func (EnterSubmenu) Type() string    { return "enter_submenu" }
func (EndConversation) Type() string { return "end_conversation" }

// actionEnvelope is the JSON form of an Action in catalog files.
type actionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the item with its action as a tagged envelope.
func (it MenuItem) MarshalJSON() ([]byte, error) {
	type alias MenuItem
	env, err := EncodeAction(it.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Action json.RawMessage `json:"action"`
	}{alias(it), env})
}

// UnmarshalJSON decodes the item and its tagged action envelope.
func (it *MenuItem) UnmarshalJSON(data []byte) error {
	type alias MenuItem
	aux := struct {
		*alias
		Action json.RawMessage `json:"action"`
	}{alias: (*alias)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	action, err := DecodeAction(aux.Action)
	if err != nil {
		return fmt.Errorf("item %q: %w", it.ID, err)
	}
	it.Action = action
	return nil
}

// EncodeAction renders an Action as a tagged JSON envelope.
func EncodeAction(a Action) (json.RawMessage, error) {
	if a == nil {
		return nil, fmt.Errorf("action is required")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionEnvelope{Type: a.Type(), Data: data})
}

// DecodeAction parses a tagged JSON envelope into the matching Action
// variant. Unknown types are an error, never silently tolerated.
func DecodeAction(raw json.RawMessage) (Action, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("action is required")
	}
	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid action envelope: %w", err)
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	}

	var (
		action Action
		err    error
	)
	switch env.Type {
	case "send_message":
		var a SendMessage
		err = json.Unmarshal(env.Data, &a)
		action = a
	case "send_file":
		var a SendFile
		err = json.Unmarshal(env.Data, &a)
		action = a
	case "forward_to_agent":
		var a ForwardToAgent
		err = json.Unmarshal(env.Data, &a)
		action = a
	case "forward_to_queue":
		var a ForwardToQueue
		err = json.Unmarshal(env.Data, &a)
		action = a
	case "forward_to_bot":
		action = ForwardToBot{}
	case "send_evaluation":
		var a SendEvaluation
		err = json.Unmarshal(env.Data, &a)
		action = a
	case "invoke_assistant":
		var a InvokeAssistant
		err = json.Unmarshal(env.Data, &a)
		action = a
	case "enter_submenu":
		var a EnterSubmenu
		err = json.Unmarshal(env.Data, &a)
		action = a
	case "end_conversation":
		action = EndConversation{}
	default:
		return nil, fmt.Errorf("unknown action type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s action: %w", env.Type, err)
	}
	return action, nil
}
