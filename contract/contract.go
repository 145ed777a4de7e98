//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// LiveConnection is a bidirectional text channel to one client.
// It is owned by exactly one session; a registry only references it.
type LiveConnection interface {
	SendText(text string) error
	ReceiveText() (string, error)
	Close() error
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, chatID domain.ChatID, user domain.User) bool
}

// MessageStore is what a session needs from message persistence.
type MessageStore interface {
	UnreadMessages(ctx context.Context, chatID domain.ChatID) ([]domain.Message, error)
	MarkRead(ctx context.Context, chatID domain.ChatID, ids []uuid.UUID) error
	PersistMessage(ctx context.Context, chatID domain.ChatID, sender domain.User, text string, at time.Time) (domain.Message, error)
}

type IRegistry interface {
	Connect(identity string, conn LiveConnection) LiveConnection
	Disconnect(identity string)
	Leave(identity string, conn LiveConnection) bool
	Broadcast(text, exclude string) []string
	Online() []string
	Len() int
	CloseAll()
}

// Censor masks forbidden words and reports which ones were found.
type Censor interface {
	Censor(text string) (string, []string)
}

// Close codes sent to clients when a session ends.
const (
	CloseNormal          = 1000
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

// ReasonCloser is implemented by connections able to tell the peer why they are closed.
type ReasonCloser interface {
	CloseWithReason(code int, reason string) error
}
