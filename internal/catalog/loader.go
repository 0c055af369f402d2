package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/channeldesk/dialog-engine/internal/hours"
	"github.com/channeldesk/dialog-engine/internal/model"
)

// tenantFile is the JSON seed format for one tenant's dialog configuration.
type tenantFile struct {
	TenantID     string            `json:"tenant_id"`
	DefaultQueue string            `json:"default_queue"`
	Vars         map[string]string `json:"vars,omitempty"`
	EntryMenus   map[string]string `json:"entry_menus"` // channelID ("" = default) -> menuID
	Menus        []menuFile        `json:"menus"`
	Hours        []hours.Window    `json:"hours,omitempty"`
}

type menuFile struct {
	model.Menu
	Items []model.MenuItem `json:"items"`
}

type seedFile struct {
	Tenants []tenantFile `json:"tenants"`
}

// LoadFile populates the catalog and schedule from a JSON seed file.
// Menus that fail validation are loaded inactive; their errors are
// collected and returned alongside a usable catalog so one bad menu never
// takes the whole tenant down.
func LoadFile(path string, cat *MemoryCatalog, sched *hours.Schedule) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}

	var configErrs []error
	for _, tenant := range seed.Tenants {
		if tenant.TenantID == "" {
			return fmt.Errorf("catalog file: tenant with empty id")
		}
		cat.PutTenant(tenant.TenantID, tenant.DefaultQueue, tenant.Vars)
		for channelID, menuID := range tenant.EntryMenus {
			cat.PutEntry(tenant.TenantID, channelID, menuID)
		}

		// Two passes so submenu references resolve regardless of order.
		cat.mu.Lock()
		for _, m := range tenant.Menus {
			menu := m.Menu
			menu.TenantID = tenant.TenantID
			cat.menus[menu.ID] = &menu
		}
		cat.mu.Unlock()
		for _, m := range tenant.Menus {
			menu := m.Menu
			menu.TenantID = tenant.TenantID
			for i := range m.Items {
				m.Items[i].MenuID = menu.ID
			}
			if err := cat.PutMenu(menu, m.Items); err != nil {
				configErrs = append(configErrs, err)
			}
		}

		if sched != nil && len(tenant.Hours) > 0 {
			sched.Set(tenant.TenantID, "", tenant.Hours)
		}
	}

	return errors.Join(configErrs...)
}
