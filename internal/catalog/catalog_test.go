package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channeldesk/dialog-engine/internal/hours"
	"github.com/channeldesk/dialog-engine/internal/model"
)

func validMenu(id string) model.Menu {
	return model.Menu{
		ID:             id,
		TenantID:       "t1",
		Level:          1,
		Greeting:       "Welcome",
		TimeoutText:    "Are you still there?",
		TimeoutSeconds: 120,
		Active:         true,
	}
}

func TestPutMenu_Valid(t *testing.T) {
	c := NewMemoryCatalog(nil)
	items := []model.MenuItem{
		{ID: "i1", Key: "1", Position: 1, Active: true, Action: model.SendMessage{Text: "hi"}},
		{ID: "i2", Key: "2", Position: 2, Active: true, Action: model.EndConversation{}},
	}
	require.NoError(t, c.PutMenu(validMenu("root"), items))

	ctx := context.Background()
	menu, err := c.Menu(ctx, "t1", "root")
	require.NoError(t, err)
	assert.True(t, menu.Active)

	got, err := c.Items(ctx, "root")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPutMenu_ZeroTimeoutStoredInactive(t *testing.T) {
	c := NewMemoryCatalog(nil)
	menu := validMenu("root")
	menu.TimeoutSeconds = 0

	err := c.PutMenu(menu, nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "root", cfgErr.MenuID)

	stored, err := c.Menu(context.Background(), "t1", "root")
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestPutMenu_DuplicateNormalizedKeys(t *testing.T) {
	c := NewMemoryCatalog(nil)
	items := []model.MenuItem{
		{ID: "i1", Key: "Help", Position: 1, Active: true, Action: model.SendMessage{Text: "a"}},
		{ID: "i2", Key: " help ", Position: 2, Active: true, Action: model.SendMessage{Text: "b"}},
	}

	err := c.PutMenu(validMenu("root"), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share key")
}

func TestPutMenu_DuplicateKeyOnInactiveSiblingAllowed(t *testing.T) {
	c := NewMemoryCatalog(nil)
	items := []model.MenuItem{
		{ID: "i1", Key: "1", Position: 1, Active: true, Action: model.SendMessage{Text: "a"}},
		{ID: "i2", Key: "1", Position: 2, Active: false, Action: model.SendMessage{Text: "b"}},
	}
	assert.NoError(t, c.PutMenu(validMenu("root"), items))
}

func TestPutMenu_DanglingSubmenuReference(t *testing.T) {
	c := NewMemoryCatalog(nil)
	items := []model.MenuItem{
		{ID: "i1", Key: "1", Position: 1, Active: true, Action: model.EnterSubmenu{TargetMenuID: "ghost"}},
	}

	err := c.PutMenu(validMenu("root"), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	stored, err := c.Menu(context.Background(), "t1", "root")
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestPutMenu_CrossTenantSubmenuRejected(t *testing.T) {
	c := NewMemoryCatalog(nil)
	other := validMenu("other-root")
	other.TenantID = "t2"
	require.NoError(t, c.PutMenu(other, nil))

	items := []model.MenuItem{
		{ID: "i1", Key: "1", Position: 1, Active: true, Action: model.EnterSubmenu{TargetMenuID: "other-root"}},
	}
	err := c.PutMenu(validMenu("root"), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another tenant")
}

func TestPutMenu_MissingAction(t *testing.T) {
	c := NewMemoryCatalog(nil)
	items := []model.MenuItem{
		{ID: "i1", Key: "1", Position: 1, Active: true},
	}
	err := c.PutMenu(validMenu("root"), items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no action")
}

func TestMenu_TenantIsolation(t *testing.T) {
	c := NewMemoryCatalog(nil)
	require.NoError(t, c.PutMenu(validMenu("root"), nil))

	_, err := c.Menu(context.Background(), "t2", "root")
	assert.ErrorIs(t, err, ErrMenuNotFound)
}

func TestEntryMenuID_ChannelFallback(t *testing.T) {
	c := NewMemoryCatalog(nil)
	c.PutEntry("t1", "", "root")
	c.PutEntry("t1", "whatsapp", "wa-root")

	ctx := context.Background()

	id, err := c.EntryMenuID(ctx, "t1", "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, "wa-root", id)

	id, err = c.EntryMenuID(ctx, "t1", "web")
	require.NoError(t, err)
	assert.Equal(t, "root", id)

	_, err = c.EntryMenuID(ctx, "t2", "web")
	assert.ErrorIs(t, err, ErrMenuNotFound)
}

func TestDefaultQueueAndVars(t *testing.T) {
	c := NewMemoryCatalog(nil)
	c.PutTenant("t1", "triage", map[string]string{"name": "Acme"})

	ctx := context.Background()

	queue, err := c.DefaultQueue(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "triage", queue)

	_, err = c.DefaultQueue(ctx, "t2")
	assert.Error(t, err)

	vars, err := c.Vars(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", vars["name"])

	// Mutating the returned map must not leak into the catalog.
	vars["name"] = "Evil"
	again, _ := c.Vars(ctx, "t1")
	assert.Equal(t, "Acme", again["name"])
}

const seedJSON = `{
  "tenants": [
    {
      "tenant_id": "t1",
      "default_queue": "triage",
      "vars": {"name": "Acme"},
      "entry_menus": {"": "root"},
      "hours": [{"weekday": 1, "from": "09:00", "to": "18:00"}],
      "menus": [
        {
          "id": "support",
          "level": 2,
          "greeting": "Support menu",
          "timeout_seconds": 60,
          "active": true,
          "items": [
            {"id": "s1", "key": "1", "position": 1, "active": true,
             "action": {"type": "forward_to_queue", "data": {"queue_id": "q1"}}}
          ]
        },
        {
          "id": "root",
          "level": 1,
          "greeting": "Hello {{name}}",
          "timeout_seconds": 120,
          "active": true,
          "items": [
            {"id": "r1", "key": "2", "position": 2, "active": true,
             "action": {"type": "enter_submenu", "data": {"target_menu_id": "support"}}}
          ]
        },
        {
          "id": "broken",
          "level": 1,
          "timeout_seconds": 0,
          "active": true,
          "items": []
        }
      ]
    }
  ]
}`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))

	c := NewMemoryCatalog(nil)
	sched := hours.NewSchedule()

	err := LoadFile(path, c, sched)
	require.Error(t, err) // "broken" has a zero timeout

	ctx := context.Background()

	// The submenu reference in "root" resolves even though "support" is
	// declared later in the file.
	root, err := c.Menu(ctx, "t1", "root")
	require.NoError(t, err)
	assert.True(t, root.Active)

	items, err := c.Items(ctx, "root")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.EnterSubmenu{TargetMenuID: "support"}, items[0].Action)

	// The invalid menu is present but inactive.
	broken, err := c.Menu(ctx, "t1", "broken")
	require.NoError(t, err)
	assert.False(t, broken.Active)

	entry, err := c.EntryMenuID(ctx, "t1", "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, "root", entry)

	queue, err := c.DefaultQueue(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "triage", queue)
}

func TestLoadFile_MissingFile(t *testing.T) {
	err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), NewMemoryCatalog(nil), nil)
	assert.Error(t, err)
}
