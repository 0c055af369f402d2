package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/channeldesk/dialog-engine/internal/model"
)

func TestSubjects(t *testing.T) {
	key := model.ConversationKey{TenantID: "t1", ChannelID: "whatsapp", ContactID: "c1"}

	assert.Equal(t, "dialog.t1.whatsapp.c1.handoff", AuditSubject(key, model.AuditHandoff))
	assert.Equal(t, "dialog.t1.whatsapp.c1.outbound", AuditSubject(key, model.AuditOutbound))
	assert.Equal(t, "dialog.handoff.t1", HandoffSubject("t1"))
	assert.Equal(t, "outbound.whatsapp.t1.c1", OutboundSubject(key))
	assert.Equal(t, "dialog.t1.whatsapp.c1.>", ConversationFilter(key))
}
