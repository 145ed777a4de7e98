// Package domain contains core concepts of the chat system.
// This file defines Message records and the outbound wire format.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is a persisted chat message.
// Read flips to true exactly once, when the message is replayed to a joining session.
type Message struct {
	ID        uuid.UUID
	ChatID    ChatID
	SenderID  string
	Sender    string // identity of the sender, used for attribution
	Text      string
	Timestamp time.Time
	Read      bool
}

// FormatOutbound renders a message the way every recipient sees it,
// both for live broadcast and for unread replay.
func FormatOutbound(sender, text string) string {
	return fmt.Sprintf("Client #%s says: %s", sender, text)
}
