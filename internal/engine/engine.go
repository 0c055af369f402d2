package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channeldesk/dialog-engine/internal/adapter"
	"github.com/channeldesk/dialog-engine/internal/assistant"
	"github.com/channeldesk/dialog-engine/internal/catalog"
	"github.com/channeldesk/dialog-engine/internal/handoff"
	"github.com/channeldesk/dialog-engine/internal/hours"
	"github.com/channeldesk/dialog-engine/internal/matcher"
	"github.com/channeldesk/dialog-engine/internal/model"
	"github.com/channeldesk/dialog-engine/internal/store"
	"github.com/channeldesk/dialog-engine/pkg/logger"
	"github.com/channeldesk/dialog-engine/pkg/metrics"
)

// invalidOptionPrefix prefixes the resent greeting after unmatched input.
const invalidOptionPrefix = "Sorry, that is not a valid option.\n\n"

// AuditSink receives the engine's audit records. The NATS StreamManager
// satisfies it; tests use a recording fake.
type AuditSink interface {
	PublishAudit(ctx context.Context, record *model.AuditRecord) (uint64, error)
}

// Config holds the engine's behavioral tunables.
type Config struct {
	// FailedMatchCeiling forces a handoff after this many consecutive
	// unmatched inputs on one menu.
	FailedMatchCeiling int

	// DescentCap bounds consecutive submenu descents without an
	// intervening content send.
	DescentCap int

	// SendRetries is how many times a failed adapter send or assistant
	// call is retried before escalating.
	SendRetries int

	// RetryBase is the initial backoff interval for those retries.
	RetryBase time.Duration

	// LeaseRetryDelay and LeaseWait govern contended lease acquisition.
	LeaseRetryDelay time.Duration
	LeaseWait       time.Duration
}

func (c *Config) applyDefaults() {
	if c.FailedMatchCeiling <= 0 {
		c.FailedMatchCeiling = 3
	}
	if c.DescentCap <= 0 {
		c.DescentCap = 10
	}
	if c.SendRetries < 0 {
		c.SendRetries = 2
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.LeaseRetryDelay <= 0 {
		c.LeaseRetryDelay = 100 * time.Millisecond
	}
	if c.LeaseWait <= 0 {
		c.LeaseWait = 5 * time.Second
	}
}

// Engine is the dialog routing core. It owns every read-modify-write of
// conversation state; no other component mutates state directly.
type Engine struct {
	cfg        Config
	catalog    catalog.Catalog
	store      store.Store
	adapter    adapter.Adapter
	handoff    handoff.Emitter
	assistants *assistant.Registry
	gate       hours.Gate
	audit      AuditSink
	logger     *logger.Logger

	leases *leaseTable
	timers *timerSet
}

// New creates an engine. The assistant registry and audit sink may be nil;
// invoke-assistant actions then escalate, and audit publication is skipped.
func New(
	cfg Config,
	cat catalog.Catalog,
	st store.Store,
	ad adapter.Adapter,
	emitter handoff.Emitter,
	assistants *assistant.Registry,
	gate hours.Gate,
	audit AuditSink,
	log *logger.Logger,
) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:        cfg,
		catalog:    cat,
		store:      st,
		adapter:    ad,
		handoff:    emitter,
		assistants: assistants,
		gate:       gate,
		audit:      audit,
		logger:     log,
		leases:     newLeaseTable(cfg.LeaseRetryDelay, cfg.LeaseWait),
		timers:     newTimerSet(),
	}
}

// HandleInbound processes one visitor message under the conversation's
// exclusive lease.
func (e *Engine) HandleInbound(ctx context.Context, ev model.InboundEvent) error {
	key := ev.Key()
	start := time.Now()

	release, err := e.leases.Acquire(ctx, key)
	if err != nil {
		metrics.RecordDispatch(key.TenantID, "inbound", "conflict", time.Since(start).Seconds())
		return err
	}
	defer release()

	result, err := e.dispatchInbound(ctx, ev)
	metrics.RecordDispatch(key.TenantID, "inbound", result, time.Since(start).Seconds())
	return err
}

// dispatchInbound runs with the lease held.
func (e *Engine) dispatchInbound(ctx context.Context, ev model.InboundEvent) (string, error) {
	key := ev.Key()
	now := time.Now()
	snap := catalog.NewSnapshot(e.catalog)
	log := e.logger.WithConversation(key.TenantID, key.ChannelID, key.ContactID)

	state, err := e.store.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		state = nil
	case err != nil:
		return "error", fmt.Errorf("load state: %w", err)
	}

	// Terminal is absorbing; a new message starts over with fresh state.
	if state != nil && state.Terminal() {
		state = nil
	}

	fresh := state == nil
	if fresh {
		state = &model.ConversationState{
			Key:       key,
			Status:    model.StatusNew,
			EnteredAt: now,
		}
	}

	menu, err := e.currentMenu(ctx, snap, state)
	if err != nil {
		// Broken configuration must not strand the visitor.
		return e.applyResultErr(ctx, state, nil, now, e.mustEscalate(ctx, key, ReasonConfigError, err))
	}

	baseVars, _ := e.catalog.Vars(ctx, key.TenantID)
	vars := textVars(baseVars, key, menu)

	// Closed hours: offline text, no state advance, no timer. The next
	// in-hours message is evaluated against the exact same menu.
	if !e.gate.IsOpen(key.TenantID, key.ChannelID, now) {
		if err := e.deliver(ctx, key, menu.ID, model.TextContent(renderText(menu.OfflineText, vars))); err != nil {
			log.Error("offline reply failed", zap.Error(err))
			return "error", err
		}
		return "offline", nil
	}

	if fresh {
		// Greet and start awaiting input.
		if err := e.deliver(ctx, key, menu.ID, model.TextContent(renderText(menu.Greeting, vars))); err != nil {
			return e.applyResultErr(ctx, state, menu, now, e.mustEscalate(ctx, key, ReasonDeliveryFailure, err))
		}
		state.Status = model.StatusAwaitingInput
		state.CurrentMenuID = menu.ID
		state.LastInput = ev.RawText
		state.Touch(now)
		if err := e.saveAndArm(ctx, state, menu); err != nil {
			return "error", err
		}
		log.Info("conversation started", zap.String("menu_id", menu.ID))
		return "greeted", nil
	}

	state.LastInput = ev.RawText

	items, err := snap.Items(ctx, menu.ID)
	if err != nil {
		return e.applyResultErr(ctx, state, menu, now, e.mustEscalate(ctx, key, ReasonConfigError, err))
	}

	item := matcher.Resolve(menu, items, ev.RawText)
	if item == nil {
		return e.handleNoMatch(ctx, state, menu, vars, now, log)
	}

	state.Status = model.StatusDispatching
	state.Path = append(state.Path, menu.ID+":"+model.NormalizeKey(item.Key))

	result, err := e.execute(ctx, snap, state, menu, item, vars)
	if err != nil {
		return "error", err
	}

	return e.applyResult(ctx, state, menu, snap, now, result)
}

// handleNoMatch increments the failed-match counter, resending the
// greeting with an invalid-option prefix, and forces a handoff at the
// ceiling.
func (e *Engine) handleNoMatch(ctx context.Context, state *model.ConversationState, menu *model.Menu, vars map[string]string, now time.Time, log *logger.Logger) (string, error) {
	state.FailedMatches++
	log.Info("no option matched",
		zap.String("menu_id", menu.ID),
		zap.Int("failed_matches", state.FailedMatches),
	)

	if state.FailedMatches >= e.cfg.FailedMatchCeiling {
		result, _ := e.escalate(ctx, state.Key, ReasonInvalidInput,
			fmt.Errorf("failed-match ceiling reached on menu %s", menu.ID))
		return e.applyResult(ctx, state, menu, nil, now, result)
	}

	text := invalidOptionPrefix + renderText(menu.Greeting, vars)
	if err := e.deliver(ctx, state.Key, menu.ID, model.TextContent(text)); err != nil {
		return e.applyResultErr(ctx, state, menu, now, e.mustEscalate(ctx, state.Key, ReasonDeliveryFailure, err))
	}

	state.Status = model.StatusAwaitingInput
	state.Touch(now)
	if err := e.saveAndArm(ctx, state, menu); err != nil {
		return "error", err
	}
	return "no_match", nil
}

// applyResult commits a dispatch outcome: state transition, persistence,
// timer (re)arm or cancel, handoff emission, audit records.
func (e *Engine) applyResult(ctx context.Context, state *model.ConversationState, menu *model.Menu, snap *catalog.Snapshot, now time.Time, result dispatchResult) (string, error) {
	key := state.Key

	switch result.kind {
	case resultReplied:
		state.Status = model.StatusAwaitingInput
		state.Touch(now)
		if err := e.saveAndArm(ctx, state, menu); err != nil {
			return "error", err
		}
		return string(resultReplied), nil

	case resultDescended:
		newMenu, err := snap.Menu(ctx, key.TenantID, result.newMenuID)
		if err != nil {
			return e.applyResultErr(ctx, state, menu, now, e.mustEscalate(ctx, key, ReasonConfigError, err))
		}
		state.Status = model.StatusAwaitingInput
		state.CurrentMenuID = newMenu.ID
		state.EnteredAt = now
		state.Touch(now)
		if err := e.saveAndArm(ctx, state, newMenu); err != nil {
			return "error", err
		}
		return string(resultDescended), nil

	case resultHandedOff:
		e.timers.Cancel(key)
		state.Status = model.StatusTerminal
		state.TimerID = ""
		state.Touch(now)

		req := model.HandoffRequest{
			Key:       key,
			Target:    result.target,
			Path:      append([]string(nil), state.Path...),
			Reason:    result.reason,
			CreatedAt: now,
		}
		ticket, err := e.handoff.Handoff(ctx, req)
		if err != nil {
			// The handoff channel itself failed; keep the state terminal
			// and surface the error rather than looping the visitor.
			e.logger.Error("handoff emission failed",
				zap.String("tenant_id", key.TenantID), zap.Error(err))
		} else {
			e.logger.Info("conversation handed off",
				zap.String("tenant_id", key.TenantID),
				zap.String("queue_id", result.target.QueueID),
				zap.String("agent_id", result.target.AgentID),
				zap.String("ticket_id", ticket.ID),
				zap.String("reason", result.reason),
			)
		}
		metrics.HandoffsTotal.WithLabelValues(key.TenantID, result.reason).Inc()

		if saveErr := e.store.Save(ctx, state); saveErr != nil {
			return "error", fmt.Errorf("save terminal state: %w", saveErr)
		}

		e.publishAudit(ctx, &model.AuditRecord{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Key:       key,
			Kind:      model.AuditHandoff,
			Target:    &result.target,
			Path:      req.Path,
			Reason:    result.reason,
			CreatedAt: now,
		})
		return string(resultHandedOff), err

	case resultTerminated:
		e.timers.Cancel(key)
		state.Status = model.StatusTerminal
		state.TimerID = ""
		state.Touch(now)
		if err := e.store.Save(ctx, state); err != nil {
			return "error", fmt.Errorf("save terminal state: %w", err)
		}

		e.publishAudit(ctx, &model.AuditRecord{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Key:       key,
			Kind:      model.AuditTerminated,
			Reason:    result.reason,
			CreatedAt: now,
		})
		return string(resultTerminated), nil

	default:
		return "error", fmt.Errorf("unknown dispatch result %q", result.kind)
	}
}

func (e *Engine) applyResultErr(ctx context.Context, state *model.ConversationState, menu *model.Menu, now time.Time, result dispatchResult) (string, error) {
	return e.applyResult(ctx, state, menu, nil, now, result)
}

// mustEscalate is escalate for callers that cannot propagate the error.
func (e *Engine) mustEscalate(ctx context.Context, key model.ConversationKey, reason string, cause error) dispatchResult {
	result, _ := e.escalate(ctx, key, reason, cause)
	return result
}

// HandleTimeout processes a fired conversation timer. version is the state
// version captured when the timer was armed; a mismatch means the
// conversation moved on first and the firing is a no-op.
func (e *Engine) HandleTimeout(ctx context.Context, key model.ConversationKey, version int64) error {
	start := time.Now()

	release, err := e.leases.Acquire(ctx, key)
	if err != nil {
		// The racing inbound dispatch holds the lease; it will have
		// re-armed or cancelled this timer, so losing here is a no-op.
		metrics.StaleTimersTotal.Inc()
		return nil
	}
	defer release()

	state, err := e.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.StaleTimersTotal.Inc()
			return nil
		}
		return fmt.Errorf("load state: %w", err)
	}

	// Stale firing: terminal, moved, or already re-armed.
	if state.Terminal() || state.Status != model.StatusAwaitingInput || state.Version != version {
		metrics.StaleTimersTotal.Inc()
		return nil
	}

	now := time.Now()
	snap := catalog.NewSnapshot(e.catalog)
	log := e.logger.WithConversation(key.TenantID, key.ChannelID, key.ContactID)
	metrics.TimeoutsFiredTotal.WithLabelValues(key.TenantID).Inc()

	menu, err := snap.Menu(ctx, key.TenantID, state.CurrentMenuID)
	if err == nil {
		baseVars, _ := e.catalog.Vars(ctx, key.TenantID)
		vars := textVars(baseVars, key, menu)
		if err := e.deliver(ctx, key, menu.ID, model.TextContent(renderText(menu.TimeoutText, vars))); err != nil {
			log.Error("timeout reply failed", zap.Error(err))
		}
		e.publishAudit(ctx, &model.AuditRecord{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Key:       key,
			Kind:      model.AuditTimeout,
			MenuID:    menu.ID,
			CreatedAt: now,
		})
	}

	// One silent period gets the timeout text; a second is never
	// tolerated, so the conversation escalates to the default queue.
	result := e.mustEscalate(ctx, key, ReasonTimeout,
		fmt.Errorf("no input within timeout on menu %s", state.CurrentMenuID))
	outcome, err := e.applyResult(ctx, state, menu, snap, now, result)
	metrics.RecordDispatch(key.TenantID, "timeout", outcome, time.Since(start).Seconds())
	return err
}

// Takeover handles the external signal that a human agent has taken the
// conversation: the timer is cancelled synchronously and the state becomes
// terminal so no further automated replies are produced.
func (e *Engine) Takeover(ctx context.Context, key model.ConversationKey) error {
	release, err := e.leases.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	state, err := e.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.timers.Cancel(key)
			return store.ErrNotFound
		}
		return fmt.Errorf("load state: %w", err)
	}
	if state.Terminal() {
		return ErrTerminal
	}

	_, err = e.applyResult(ctx, state, nil, nil, time.Now(),
		dispatchResult{kind: resultTerminated, reason: ReasonAgentTakeover})
	return err
}

// State returns the current persisted state for inspection.
func (e *Engine) State(ctx context.Context, key model.ConversationKey) (*model.ConversationState, error) {
	return e.store.Load(ctx, key)
}

// RestoreTimers rebuilds expiration timers from persisted state after a
// restart. States whose deadline already passed fire immediately.
func (e *Engine) RestoreTimers(ctx context.Context) error {
	states, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list states: %w", err)
	}

	restored := 0
	for _, state := range states {
		if state.Terminal() || state.Status != model.StatusAwaitingInput {
			continue
		}
		menu, err := e.catalog.Menu(ctx, state.Key.TenantID, state.CurrentMenuID)
		if err != nil {
			e.logger.Warn("cannot restore timer, menu missing",
				zap.String("tenant_id", state.Key.TenantID),
				zap.String("menu_id", state.CurrentMenuID),
			)
			continue
		}

		deadline := state.LastActivity.Add(time.Duration(menu.TimeoutSeconds) * time.Second)
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		e.armTimer(state, remaining)
		restored++
	}

	e.logger.Info("timers restored", zap.Int("count", restored))
	return nil
}

// Shutdown stops all outstanding timers.
func (e *Engine) Shutdown() {
	e.timers.Stop()
}

// ActiveTimers returns the number of armed timers.
func (e *Engine) ActiveTimers() int {
	return e.timers.Len()
}

// currentMenu resolves the menu the dispatch runs against: the entry menu
// for fresh conversations, the persisted cursor otherwise. Inactive menus
// are configuration errors here, never entered.
func (e *Engine) currentMenu(ctx context.Context, snap *catalog.Snapshot, state *model.ConversationState) (*model.Menu, error) {
	menuID := state.CurrentMenuID
	if state.Status == model.StatusNew {
		entryID, err := e.catalog.EntryMenuID(ctx, state.Key.TenantID, state.Key.ChannelID)
		if err != nil {
			return nil, err
		}
		menuID = entryID
	}

	menu, err := snap.Menu(ctx, state.Key.TenantID, menuID)
	if err != nil {
		return nil, err
	}
	if !menu.Active {
		return nil, &catalog.ConfigError{TenantID: state.Key.TenantID, MenuID: menuID, Reason: "menu is inactive"}
	}
	return menu, nil
}

// saveAndArm persists the state and (re)arms its expiration timer against
// the new version.
func (e *Engine) saveAndArm(ctx context.Context, state *model.ConversationState, menu *model.Menu) error {
	state.TimerID = uuid.Must(uuid.NewV7()).String()
	if err := e.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	e.armTimer(state, time.Duration(menu.TimeoutSeconds)*time.Second)
	return nil
}

func (e *Engine) armTimer(state *model.ConversationState, d time.Duration) {
	key := state.Key
	version := state.Version
	e.timers.Arm(key, state.TimerID, version, d, func() {
		if err := e.HandleTimeout(context.Background(), key, version); err != nil {
			e.logger.Error("timeout handling failed",
				zap.String("tenant_id", key.TenantID),
				zap.String("contact_id", key.ContactID),
				zap.Error(err),
			)
		}
	})
}

func (e *Engine) publishAudit(ctx context.Context, record *model.AuditRecord) {
	if e.audit == nil {
		return
	}
	if _, err := e.audit.PublishAudit(ctx, record); err != nil {
		e.logger.Warn("audit publish failed",
			zap.String("kind", string(record.Kind)),
			zap.Error(err),
		)
	}
}
