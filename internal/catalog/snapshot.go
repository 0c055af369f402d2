package catalog

import (
	"context"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// Snapshot caches catalog reads for the duration of one dispatch so a
// concurrent admin edit cannot change a menu between the engine reading it
// and reading its items. Not safe for concurrent use; create one per
// dispatch.
type Snapshot struct {
	catalog Catalog
	menus   map[string]*model.Menu
	items   map[string][]model.MenuItem
}

// NewSnapshot wraps a catalog for one dispatch.
func NewSnapshot(catalog Catalog) *Snapshot {
	return &Snapshot{
		catalog: catalog,
		menus:   make(map[string]*model.Menu),
		items:   make(map[string][]model.MenuItem),
	}
}

// Menu returns the cached menu, reading through on first access.
func (s *Snapshot) Menu(ctx context.Context, tenantID, menuID string) (*model.Menu, error) {
	if menu, ok := s.menus[menuID]; ok {
		return menu, nil
	}
	menu, err := s.catalog.Menu(ctx, tenantID, menuID)
	if err != nil {
		return nil, err
	}
	s.menus[menuID] = menu
	return menu, nil
}

// Items returns the cached items, reading through on first access.
func (s *Snapshot) Items(ctx context.Context, menuID string) ([]model.MenuItem, error) {
	if items, ok := s.items[menuID]; ok {
		return items, nil
	}
	items, err := s.catalog.Items(ctx, menuID)
	if err != nil {
		return nil, err
	}
	s.items[menuID] = items
	return items, nil
}
