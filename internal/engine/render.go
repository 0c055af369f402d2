package engine

import (
	"strings"

	"github.com/channeldesk/dialog-engine/internal/model"
)

// renderText substitutes {{name}} placeholders in menu texts. Anything
// beyond plain variable substitution is the admin surface's problem; the
// engine never formats.
func renderText(text string, vars map[string]string) string {
	if text == "" || len(vars) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// textVars builds the substitution set for one dispatch: tenant-level
// catalog vars plus the conversation's own identifiers.
func textVars(base map[string]string, key model.ConversationKey, menu *model.Menu) map[string]string {
	vars := make(map[string]string, len(base)+3)
	for k, v := range base {
		vars[k] = v
	}
	vars["contact_id"] = key.ContactID
	vars["channel_id"] = key.ChannelID
	if menu != nil {
		vars["menu"] = menu.ID
	}
	return vars
}
