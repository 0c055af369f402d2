package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessageText(t *testing.T) {
	assert.NoError(t, ValidateMessageText("hello"))
	assert.Error(t, ValidateMessageText(""))
	assert.Error(t, ValidateMessageText(strings.Repeat("a", 10001)))
	assert.Error(t, ValidateMessageText("bad \xff utf8"))
}

func TestValidateIdentifier(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("tenant ID", "t1"))
	assert.NoError(t, ValidateIdentifier("contact ID", "+5511999990000"))

	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("a", 65)},
		{"dot", "a.b"},
		{"space", "a b"},
		{"nats wildcard", "a*"},
		{"nats tail wildcard", "a>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateIdentifier("id", tt.id))
		})
	}
}

func TestValidateConversationKey(t *testing.T) {
	assert.NoError(t, ValidateConversationKey("t1", "whatsapp", "c1"))
	assert.Error(t, ValidateConversationKey("", "whatsapp", "c1"))
	assert.Error(t, ValidateConversationKey("t1", "", "c1"))
	assert.Error(t, ValidateConversationKey("t1", "whatsapp", "c.1"))
}
