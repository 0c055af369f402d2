package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/channeldesk/dialog-engine/internal/model"
	"github.com/channeldesk/dialog-engine/pkg/logger"
)

// MemoryCatalog is a validated in-memory Catalog. Administrators edit menu
// trees through the out-of-scope admin surface; this mirror holds the
// published copy the engine reads. Safe for concurrent use.
type MemoryCatalog struct {
	mu         sync.RWMutex
	menus      map[string]*model.Menu // menuID -> menu
	items      map[string][]model.MenuItem
	entryMenus map[string]string // tenant/channel -> menuID
	queues     map[string]string // tenant -> default queue
	vars       map[string]map[string]string
	logger     *logger.Logger
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog(log *logger.Logger) *MemoryCatalog {
	return &MemoryCatalog{
		menus:      make(map[string]*model.Menu),
		items:      make(map[string][]model.MenuItem),
		entryMenus: make(map[string]string),
		queues:     make(map[string]string),
		vars:       make(map[string]map[string]string),
		logger:     log,
	}
}

// PutTenant registers tenant-level settings.
func (c *MemoryCatalog) PutTenant(tenantID, defaultQueue string, vars map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues[tenantID] = defaultQueue
	if vars != nil {
		c.vars[tenantID] = vars
	}
}

// PutEntry binds a channel to its entry menu.
func (c *MemoryCatalog) PutEntry(tenantID, channelID, menuID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryMenus[entryKey(tenantID, channelID)] = menuID
}

// PutMenu stores a menu and its items after validation. A menu that fails
// validation is stored inactive and the ConfigError is returned so callers
// can surface it to administrators.
func (c *MemoryCatalog) PutMenu(menu model.Menu, items []model.MenuItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := menu
	err := c.validateLocked(&stored, items)
	if err != nil {
		stored.Active = false
		if c.logger != nil {
			c.logger.Warn("menu failed validation, marked inactive",
				zap.String("tenant_id", menu.TenantID),
				zap.String("menu_id", menu.ID),
				zap.Error(err),
			)
		}
	}

	c.menus[stored.ID] = &stored
	c.items[stored.ID] = append([]model.MenuItem(nil), items...)
	return err
}

// validateLocked checks menu configuration invariants: positive timeout,
// no duplicate normalized keys among active siblings, submenu targets
// resolving within the same tenant, actions present.
func (c *MemoryCatalog) validateLocked(menu *model.Menu, items []model.MenuItem) error {
	if menu.TimeoutSeconds <= 0 {
		return &ConfigError{TenantID: menu.TenantID, MenuID: menu.ID, Reason: "timeout must be positive"}
	}

	seen := make(map[string]string, len(items))
	for _, it := range items {
		if !it.Active {
			continue
		}
		if it.Action == nil {
			return &ConfigError{TenantID: menu.TenantID, MenuID: menu.ID,
				Reason: fmt.Sprintf("item %q has no action", it.ID)}
		}
		key := model.NormalizeKey(it.Key)
		if key == "" {
			return &ConfigError{TenantID: menu.TenantID, MenuID: menu.ID,
				Reason: fmt.Sprintf("item %q has an empty key", it.ID)}
		}
		if other, dup := seen[key]; dup {
			return &ConfigError{TenantID: menu.TenantID, MenuID: menu.ID,
				Reason: fmt.Sprintf("items %q and %q share key %q", other, it.ID, key)}
		}
		seen[key] = it.ID

		if sub, ok := it.Action.(model.EnterSubmenu); ok {
			target, exists := c.menus[sub.TargetMenuID]
			if !exists {
				return &ConfigError{TenantID: menu.TenantID, MenuID: menu.ID,
					Reason: fmt.Sprintf("item %q references unknown menu %q", it.ID, sub.TargetMenuID)}
			}
			if target.TenantID != menu.TenantID {
				return &ConfigError{TenantID: menu.TenantID, MenuID: menu.ID,
					Reason: fmt.Sprintf("item %q references menu %q of another tenant", it.ID, sub.TargetMenuID)}
			}
		}
	}
	return nil
}

// Menu implements Catalog.
func (c *MemoryCatalog) Menu(ctx context.Context, tenantID, menuID string) (*model.Menu, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	menu, ok := c.menus[menuID]
	if !ok || menu.TenantID != tenantID {
		return nil, fmt.Errorf("%w: tenant=%s menu=%s", ErrMenuNotFound, tenantID, menuID)
	}
	clone := *menu
	return &clone, nil
}

// Items implements Catalog.
func (c *MemoryCatalog) Items(ctx context.Context, menuID string) ([]model.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items, ok := c.items[menuID]
	if !ok {
		return nil, fmt.Errorf("%w: menu=%s", ErrMenuNotFound, menuID)
	}
	return append([]model.MenuItem(nil), items...), nil
}

// EntryMenuID implements Catalog. A channel without an explicit binding
// falls back to the tenant-wide entry (empty channel id).
func (c *MemoryCatalog) EntryMenuID(ctx context.Context, tenantID, channelID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.entryMenus[entryKey(tenantID, channelID)]; ok {
		return id, nil
	}
	if id, ok := c.entryMenus[entryKey(tenantID, "")]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: no entry menu for tenant=%s channel=%s", ErrMenuNotFound, tenantID, channelID)
}

// DefaultQueue implements Catalog.
func (c *MemoryCatalog) DefaultQueue(ctx context.Context, tenantID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	queue, ok := c.queues[tenantID]
	if !ok || queue == "" {
		return "", fmt.Errorf("no default queue for tenant %s", tenantID)
	}
	return queue, nil
}

// Vars implements Catalog.
func (c *MemoryCatalog) Vars(ctx context.Context, tenantID string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vars := c.vars[tenantID]
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out, nil
}

func entryKey(tenantID, channelID string) string {
	return tenantID + "/" + channelID
}
