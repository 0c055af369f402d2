// Package catalog provides read-only access to tenant menu configuration.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// ErrMenuNotFound is returned when a menu id does not resolve.
var ErrMenuNotFound = errors.New("menu not found")

// ConfigError reports a malformed menu tree detected at load time. The
// offending menu is treated as inactive; the error is surfaced, never
// silently tolerated.
type ConfigError struct {
	TenantID string
	MenuID   string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("menu config error: tenant=%s menu=%s: %s", e.TenantID, e.MenuID, e.Reason)
}

// Catalog is the read-only menu store the engine dispatches against.
// Implementations must be safe for concurrent use.
type Catalog interface {
	// Menu returns a tenant's menu by id.
	Menu(ctx context.Context, tenantID, menuID string) (*model.Menu, error)

	// Items returns the options of a menu.
	Items(ctx context.Context, menuID string) ([]model.MenuItem, error)

	// EntryMenuID resolves the entry menu configured for a channel.
	EntryMenuID(ctx context.Context, tenantID, channelID string) (string, error)

	// DefaultQueue returns the tenant's fallback human queue.
	DefaultQueue(ctx context.Context, tenantID string) (string, error)

	// Vars returns tenant-level substitution variables for menu texts.
	Vars(ctx context.Context, tenantID string) (map[string]string, error)
}
