package domain

import "time"

// User is an account able to join chats.
// Username is the identity used by the connection registry.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
