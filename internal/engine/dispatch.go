package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channeldesk/dialog-engine/internal/catalog"
	"github.com/channeldesk/dialog-engine/internal/model"
	"github.com/channeldesk/dialog-engine/pkg/metrics"
)

// resultKind is the observable outcome of dispatching one action.
type resultKind string

const (
	// resultReplied: content sent, conversation stays on the current menu.
	resultReplied resultKind = "replied"
	// resultDescended: conversation advanced to a submenu.
	resultDescended resultKind = "descended"
	// resultHandedOff: conversation transferred to a human queue or agent.
	resultHandedOff resultKind = "handed_off"
	// resultTerminated: conversation ended without handoff.
	resultTerminated resultKind = "terminated"
)

type dispatchResult struct {
	kind      resultKind
	newMenuID string
	target    model.HandoffTarget
	reason    string
}

// execute runs the action bound to a matched item and reports the outcome.
// Every failure path resolves to a reply, a handoff, or a termination; a
// visitor is never left without a response.
func (e *Engine) execute(ctx context.Context, snap *catalog.Snapshot, state *model.ConversationState, menu *model.Menu, item *model.MenuItem, vars map[string]string) (dispatchResult, error) {
	key := state.Key

	switch action := item.Action.(type) {
	case model.SendMessage:
		if err := e.deliver(ctx, key, menu.ID, model.TextContent(renderText(action.Text, vars))); err != nil {
			return e.escalate(ctx, key, ReasonDeliveryFailure, err)
		}
		state.Descents = 0
		return dispatchResult{kind: resultReplied}, nil

	case model.SendFile:
		content := model.Content{Kind: model.ContentFile, MediaURL: action.MediaURL, MediaType: action.MediaType}
		if err := e.deliver(ctx, key, menu.ID, content); err != nil {
			return e.escalate(ctx, key, ReasonDeliveryFailure, err)
		}
		state.Descents = 0
		return dispatchResult{kind: resultReplied}, nil

	case model.SendEvaluation:
		content := model.Content{
			Kind:       model.ContentEvaluation,
			Text:       renderText(item.Label, vars),
			WebhookURL: action.WebhookURL,
		}
		if err := e.deliver(ctx, key, menu.ID, content); err != nil {
			return e.escalate(ctx, key, ReasonDeliveryFailure, err)
		}
		state.Descents = 0
		return dispatchResult{kind: resultReplied}, nil

	case model.ForwardToAgent:
		// The named agent may be unavailable; the default queue rides
		// along as the assignment service's fallback. Without one the
		// handoff still goes out on the agent hint alone.
		target, err := e.defaultTarget(ctx, key.TenantID)
		if err != nil {
			e.logger.Warn("agent handoff without fallback queue",
				zap.String("tenant_id", key.TenantID), zap.Error(err))
			target = model.HandoffTarget{}
		}
		target.AgentID = action.AgentHint
		return dispatchResult{kind: resultHandedOff, target: target, reason: ReasonSelected}, nil

	case model.ForwardToQueue:
		return dispatchResult{
			kind:   resultHandedOff,
			target: model.HandoffTarget{QueueID: action.QueueID},
			reason: ReasonSelected,
		}, nil

	case model.ForwardToBot:
		entryID, err := e.catalog.EntryMenuID(ctx, key.TenantID, key.ChannelID)
		if err != nil {
			return e.escalate(ctx, key, ReasonConfigError, err)
		}
		// Soft reset: counters clear, history stays.
		state.FailedMatches = 0
		state.Descents = 0
		return e.descend(ctx, snap, state, entryID, vars)

	case model.InvokeAssistant:
		answer, err := e.completeWithRetry(ctx, action.Provider, renderText(action.Prompt, vars), state.LastInput)
		if err != nil {
			return e.escalate(ctx, key, ReasonAssistantError, err)
		}
		if err := e.deliver(ctx, key, menu.ID, model.TextContent(answer)); err != nil {
			return e.escalate(ctx, key, ReasonDeliveryFailure, err)
		}
		state.Descents = 0
		return dispatchResult{kind: resultReplied}, nil

	case model.EnterSubmenu:
		state.Descents++
		if state.Descents > e.cfg.DescentCap {
			return e.escalate(ctx, key, ReasonBoundedLoop,
				fmt.Errorf("%w: menu %s -> %s", ErrBoundedLoopExceeded, menu.ID, action.TargetMenuID))
		}
		return e.descend(ctx, snap, state, action.TargetMenuID, vars)

	case model.EndConversation:
		return dispatchResult{kind: resultTerminated}, nil

	default:
		// The Action union is closed; reaching here means a new variant
		// was added without a dispatch arm.
		return dispatchResult{}, fmt.Errorf("unhandled action type %T", action)
	}
}

// descend validates the target menu and sends its greeting. Used by both
// submenu entry and the bot soft reset.
func (e *Engine) descend(ctx context.Context, snap *catalog.Snapshot, state *model.ConversationState, targetMenuID string, vars map[string]string) (dispatchResult, error) {
	key := state.Key

	target, err := snap.Menu(ctx, key.TenantID, targetMenuID)
	if err != nil {
		return e.escalate(ctx, key, ReasonConfigError, err)
	}
	if !target.Active {
		return e.escalate(ctx, key, ReasonConfigError,
			&catalog.ConfigError{TenantID: key.TenantID, MenuID: targetMenuID, Reason: "submenu target is inactive"})
	}

	vars["menu"] = target.ID
	if err := e.deliver(ctx, key, target.ID, model.TextContent(renderText(target.Greeting, vars))); err != nil {
		return e.escalate(ctx, key, ReasonDeliveryFailure, err)
	}

	return dispatchResult{kind: resultDescended, newMenuID: target.ID}, nil
}

// escalate converts a dispatch failure into a forced handoff to the
// tenant's default queue. The original error is logged, never swallowed
// silently, and never dead-ends the visitor.
func (e *Engine) escalate(ctx context.Context, key model.ConversationKey, reason string, cause error) (dispatchResult, error) {
	e.logger.Error("dispatch escalated to handoff",
		zap.String("tenant_id", key.TenantID),
		zap.String("channel_id", key.ChannelID),
		zap.String("contact_id", key.ContactID),
		zap.String("reason", reason),
		zap.Error(cause),
	)

	target, err := e.defaultTarget(ctx, key.TenantID)
	if err != nil {
		// No default queue configured: termination is the only remaining
		// way out that is not a silent drop.
		e.logger.Error("no default queue for escalation, terminating",
			zap.String("tenant_id", key.TenantID), zap.Error(err))
		return dispatchResult{kind: resultTerminated, reason: reason}, nil
	}

	return dispatchResult{kind: resultHandedOff, target: target, reason: reason}, nil
}

func (e *Engine) defaultTarget(ctx context.Context, tenantID string) (model.HandoffTarget, error) {
	queue, err := e.catalog.DefaultQueue(ctx, tenantID)
	if err != nil {
		return model.HandoffTarget{}, err
	}
	return model.HandoffTarget{QueueID: queue}, nil
}

// deliver sends content through the channel adapter with the
// retry-then-escalate policy, and publishes the audit record on success.
func (e *Engine) deliver(ctx context.Context, key model.ConversationKey, menuID string, content model.Content) error {
	attempt := 0
	op := func() error {
		if attempt > 0 {
			metrics.AdapterRetriesTotal.WithLabelValues(key.ChannelID).Inc()
		}
		attempt++
		_, err := e.adapter.Send(ctx, key, content)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryBase

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.cfg.SendRetries)), ctx))
	if err != nil {
		metrics.AdapterFailuresTotal.WithLabelValues(key.ChannelID).Inc()
		return fmt.Errorf("deliver to %s: %w", key, err)
	}

	e.publishAudit(ctx, &model.AuditRecord{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Key:       key,
		Kind:      model.AuditOutbound,
		MenuID:    menuID,
		Content:   &content,
		CreatedAt: time.Now(),
	})
	return nil
}

// completeWithRetry invokes the assistant provider under the same
// retry-then-escalate policy as adapter sends.
func (e *Engine) completeWithRetry(ctx context.Context, provider model.AssistantProvider, prompt, contextText string) (string, error) {
	if e.assistants == nil {
		return "", fmt.Errorf("no assistant registry configured")
	}

	start := time.Now()
	var answer string
	op := func() error {
		var err error
		answer, err = e.assistants.Complete(ctx, provider, prompt, contextText)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryBase

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.cfg.SendRetries)), ctx))
	if err != nil {
		metrics.RecordAssistant(string(provider), "error", time.Since(start).Seconds())
		return "", fmt.Errorf("assistant %s: %w", provider, err)
	}

	metrics.RecordAssistant(string(provider), "success", time.Since(start).Seconds())
	return answer, nil
}
