// Package domain contains core concepts of the chat system.
// This file defines Chat entities. Membership is immutable once created.
package domain

import "time"

type ChatID int64

type ChatKind int

const (
	Private ChatKind = iota + 1
	Group
)

func (k ChatKind) String() string {
	switch k {
	case Private:
		return "private"
	case Group:
		return "group"
	default:
		return "unknown"
	}
}

type Chat struct {
	ID        ChatID
	Name      string
	Kind      ChatKind
	CreatorID string
	CreatedAt time.Time
}
