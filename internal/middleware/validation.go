package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ValidateMessageText validates inbound message text.
func ValidateMessageText(text string) error {
	if len(text) == 0 {
		return errors.New("text cannot be empty")
	}
	if len(text) > 10000 {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateIdentifier validates a tenant, channel, or contact identifier.
// Dots are reserved for subject and state-key composition.
func ValidateIdentifier(name, id string) error {
	if len(id) == 0 {
		return errors.New(name + " cannot be empty")
	}
	if len(id) > 64 {
		return errors.New(name + " exceeds maximum length")
	}
	if strings.ContainsAny(id, ". \t\n*>") {
		return errors.New(name + " contains reserved characters")
	}
	return nil
}

// ValidateConversationKey validates all three identifiers of a
// conversation key.
func ValidateConversationKey(tenantID, channelID, contactID string) error {
	if err := ValidateIdentifier("tenant ID", tenantID); err != nil {
		return err
	}
	if err := ValidateIdentifier("channel ID", channelID); err != nil {
		return err
	}
	return ValidateIdentifier("contact ID", contactID)
}
