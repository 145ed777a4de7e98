package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type State int32

const (
	Connecting State = iota
	Authenticating
	Authorizing
	Replaying
	Relaying
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Authorizing:
		return "authorizing"
	case Replaying:
		return "replaying"
	case Relaying:
		return "relaying"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Relay holds what every session of the process shares and starts sessions.
type Relay struct {
	log               *slog.Logger
	rooms             *Rooms
	authenticator     contract.Authenticator
	authorizer        contract.Authorizer
	store             contract.MessageStore
	censor            contract.Censor
	duplicateInterval time.Duration
	clock             func() time.Time
}

func NewRelay(
	log *slog.Logger,
	rooms *Rooms,
	authenticator contract.Authenticator,
	authorizer contract.Authorizer,
	store contract.MessageStore,
	duplicateInterval time.Duration,
) *Relay {
	return &Relay{
		log:               log,
		rooms:             rooms,
		authenticator:     authenticator,
		authorizer:        authorizer,
		store:             store,
		duplicateInterval: duplicateInterval,
		clock:             time.Now,
	}
}

// WithCensor masks forbidden words of inbound messages before they are persisted.
func (r *Relay) WithCensor(censor contract.Censor) *Relay {
	r.censor = censor
	return r
}

// WithClock replaces the time source used for timestamps and duplicate suppression.
func (r *Relay) WithClock(clock func() time.Time) *Relay {
	r.clock = clock
	return r
}

func (r *Relay) NewSession(chatID domain.ChatID, token string, conn contract.LiveConnection) *Session {
	return &Session{
		relay:    r,
		chatID:   chatID,
		token:    token,
		conn:     conn,
		throttle: NewThrottle(r.duplicateInterval),
		log:      r.log.With("chat_id", chatID),
	}
}

// Serve runs a session to completion on the calling goroutine.
func (r *Relay) Serve(ctx context.Context, chatID domain.ChatID, token string, conn contract.LiveConnection) {
	r.NewSession(chatID, token, conn).Run(ctx)
}

// Session is the lifetime of one live connection, from join to teardown.
type Session struct {
	relay    *Relay
	chatID   domain.ChatID
	token    string
	conn     contract.LiveConnection
	registry contract.IRegistry // set once joined
	throttle *Throttle
	log      *slog.Logger
	state    atomic.Int32
	user     domain.User
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
	s.log.Debug("Session state changed", "state", state)
}

// Run drives the session through authentication, authorization, replay and relay.
// It never panics and always leaves the session Closed and unregistered.
func (s *Session) Run(ctx context.Context) {
	code, reason := contract.CloseNormal, "bye"
	registered := false

	// Unblocks ReceiveText when the server shuts down
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })

	defer func() {
		stop()
		if r := recover(); r != nil {
			s.log.Error("Session panic recovered", "panic", r, "stack", string(debug.Stack()))
			code, reason = contract.CloseInternalError, "internal error"
		}
		if registered {
			s.relay.rooms.Leave(s.chatID, s.user.Username, s.conn)
		}
		s.close(code, reason)
		s.setState(Closed)
		if registered {
			s.log.Info("Client disconnected", "online", len(s.relay.rooms.Members(s.chatID)))
		}
	}()

	s.setState(Authenticating)
	user, err := s.relay.authenticator.Authenticate(ctx, s.token)
	if err != nil {
		s.log.Warn("Authentication failed", "error", err)
		code, reason = contract.ClosePolicyViolation, "authentication failed"
		return
	}
	s.user = user
	s.log = s.log.With("identity", user.Username)

	s.setState(Authorizing)
	if !s.relay.authorizer.Authorize(ctx, s.chatID, user) {
		s.log.Warn("Access to chat denied")
		code, reason = contract.ClosePolicyViolation, "access denied"
		return
	}

	s.setState(Replaying)
	if err = s.replay(ctx); err != nil {
		s.log.Warn("Replay of unread messages failed", "error", err)
		return
	}

	s.setState(Relaying)
	// The chat registry exists only while someone is joined
	registry, previous := s.relay.rooms.Join(s.chatID, user.Username, s.conn)
	s.registry = registry
	registered = true
	if previous != nil {
		s.log.Info("Replacing previous connection")
		closeWithReason(previous, contract.CloseNormal, "replaced by a new connection")
	}
	s.log.Info("Client connected", "online", s.registry.Len())

	s.relayLoop(ctx)
}

// replay sends every unread message of the chat, oldest first, then marks
// the delivered ones read in a single commit. A send failure stops the replay.
func (s *Session) replay(ctx context.Context) error {
	messages, err := s.relay.store.UnreadMessages(ctx, s.chatID)
	if err != nil {
		return fmt.Errorf("load unread messages: %w", err)
	}

	delivered := make([]uuid.UUID, 0, len(messages))
	var sendErr error
	for _, message := range messages {
		if sendErr = s.conn.SendText(domain.FormatOutbound(message.Sender, message.Text)); sendErr != nil {
			break
		}
		delivered = append(delivered, message.ID)
	}

	if err = s.relay.store.MarkRead(ctx, s.chatID, delivered); err != nil {
		return fmt.Errorf("mark %d messages read: %w", len(delivered), err)
	}
	if sendErr != nil {
		return fmt.Errorf("replay stopped after %d of %d messages: %w", len(delivered), len(messages), sendErr)
	}
	s.log.Debug("Unread messages replayed", "count", len(delivered))
	return nil
}

func (s *Session) relayLoop(ctx context.Context) {
	for {
		text, err := s.conn.ReceiveText()
		if err != nil {
			if goerrors.Is(err, errors.ErrConnectionClosed) || ctx.Err() != nil {
				s.log.Debug("Connection closed", "error", err)
			} else {
				s.log.Warn("Receive failed", "error", err)
			}
			return
		}

		now := s.relay.clock()
		if s.throttle.ShouldSuppress(now) {
			s.log.Debug("Message suppressed as duplicate")
			continue
		}

		if s.relay.censor != nil {
			var words []string
			if text, words = s.relay.censor.Censor(text); len(words) > 0 {
				s.log.Info("Message censored", "words", len(words))
			}
		}

		// Write before broadcast: a message nobody could persist is never fanned out
		message, err := s.relay.store.PersistMessage(ctx, s.chatID, s.user, text, now)
		if err != nil {
			s.log.Error("Cannot persist message", "error", err)
			return
		}

		failed := s.registry.Broadcast(domain.FormatOutbound(s.user.Username, message.Text), s.user.Username)
		if len(failed) > 0 {
			s.log.Warn("Some recipients were pruned", "failed", failed)
			s.relay.rooms.Release(s.chatID)
		}
	}
}

func (s *Session) close(code int, reason string) {
	closeWithReason(s.conn, code, reason)
}

func closeWithReason(conn contract.LiveConnection, code int, reason string) {
	if closer, ok := conn.(contract.ReasonCloser); ok {
		_ = closer.CloseWithReason(code, reason)
		return
	}
	_ = conn.Close()
}
