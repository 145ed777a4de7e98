package storage

import (
	"fmt"
	"strings"
)

// Describe renders a raw badger entry for debugging tools.
// It returns the record kind, derived from the key prefix, and a readable summary of the value.
func Describe(key string, val []byte) (string, string) {
	kind, _, _ := strings.Cut(key, ":")
	switch kind {
	case "msg":
		m, err := decodeMessage(val)
		if err != nil {
			return "MESSAGE", "Error: " + err.Error()
		}
		return "MESSAGE", fmt.Sprintf("%s: %s (read=%t)", m.Sender, m.Text, m.Read)
	case "user":
		u, err := decodeUser(val)
		if err != nil {
			return "USER", "Error: " + err.Error()
		}
		return "USER", fmt.Sprintf("%s <%s> id=%s", u.Username, u.Email, u.ID)
	case "chat":
		c, err := decodeChat(val)
		if err != nil {
			return "CHAT", "Error: " + err.Error()
		}
		return "CHAT", fmt.Sprintf("%s %q by %s", c.Kind, c.Name, c.CreatorID)
	case "unread", "msg_id", "user_id", "user_email", "chat_user", "group_member":
		return "INDEX", string(val)
	default:
		return "RAW", fmt.Sprintf("Size: %d bytes", len(val))
	}
}
