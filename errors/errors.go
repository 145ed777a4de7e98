package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password is blank or too long")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrEmailAlreadyUsed   = fmt.Errorf("email already used")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrAuthFailed         = fmt.Errorf("authentication failed")

	ErrChatNotFound     = fmt.Errorf("chat not found")
	ErrAccessDenied     = fmt.Errorf("access denied")
	ErrSameParticipant  = fmt.Errorf("you entered yourself, please enter another user")
	ErrEmptyRoster      = fmt.Errorf("group roster is empty")
	ErrInvalidChatName  = fmt.Errorf("chat name is required")
	ErrInvalidCharacter = fmt.Errorf("replacement must be a single character")
	ErrInvalidInterval  = fmt.Errorf("interval must be positive")

	ErrConnectionClosed = fmt.Errorf("connection closed")
)
