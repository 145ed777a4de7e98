package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatServiceMocks struct {
	users    *mocks.MockIUserRepository
	chats    *mocks.MockIChatRepository
	messages *mocks.MockIMessageRepository
}

func newChatService(t *testing.T) (*ChatService, chatServiceMocks) {
	ctrl := gomock.NewController(t)
	m := chatServiceMocks{
		users:    mocks.NewMockIUserRepository(ctrl),
		chats:    mocks.NewMockIChatRepository(ctrl),
		messages: mocks.NewMockIMessageRepository(ctrl),
	}
	return NewChatService(m.users, m.chats, m.messages, logs.GetLoggerFromLevel(slog.LevelDebug)), m
}

var (
	alice = domain.User{ID: "alice-id", Username: "alice"}
	bob   = domain.User{ID: "bob-id", Username: "bob"}
)

func TestChatService_CreatePrivateChat(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a chat with the peer", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		expected := domain.Chat{ID: 1, Name: "ab", Kind: domain.Private, CreatorID: alice.ID}

		m.users.EXPECT().GetUserByUsername("alice").Return(alice, nil)
		m.users.EXPECT().GetUserByID("bob-id").Return(bob, nil)
		m.chats.EXPECT().CreatePrivateChat("ab", "alice-id", "bob-id").Return(expected, nil)

		chat, err := svc.CreatePrivateChat(ctx, "alice", "ab", "bob-id")
		req.NoError(err)
		req.Equal(expected, chat)
	})

	t.Run("should reject a chat with oneself", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		m.users.EXPECT().GetUserByUsername("alice").Return(alice, nil)

		_, err := svc.CreatePrivateChat(ctx, "alice", "me", "alice-id")
		req.ErrorIs(err, errors.ErrSameParticipant)
	})

	t.Run("should reject an unknown peer", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		m.users.EXPECT().GetUserByUsername("alice").Return(alice, nil)
		m.users.EXPECT().GetUserByID("ghost").Return(domain.User{}, errors.ErrUserNotFound)

		_, err := svc.CreatePrivateChat(ctx, "alice", "ag", "ghost")
		req.ErrorIs(err, errors.ErrUserNotFound)
	})

	t.Run("should reject an empty name", func(t *testing.T) {
		req := require.New(t)
		svc, _ := newChatService(t)

		_, err := svc.CreatePrivateChat(ctx, "alice", "  ", "bob-id")
		req.ErrorIs(err, errors.ErrInvalidChatName)
	})
}

func TestChatService_CreateGroupChat(t *testing.T) {
	ctx := context.Background()

	t.Run("should always include the creator once", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)

		m.users.EXPECT().GetUserByUsername("alice").Return(alice, nil)
		m.users.EXPECT().GetUserByID("bob-id").Return(bob, nil)
		m.chats.EXPECT().
			CreateGroupChat("team", "alice-id", []string{"alice-id", "bob-id"}).
			Return(domain.Chat{ID: 2, Kind: domain.Group}, nil)

		chat, err := svc.CreateGroupChat(ctx, "alice", "team", []string{"bob-id", "alice-id", "bob-id"})
		req.NoError(err)
		req.Equal(domain.Group, chat.Kind)
	})

	t.Run("should reject an unknown member", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)

		m.users.EXPECT().GetUserByUsername("alice").Return(alice, nil)
		m.users.EXPECT().GetUserByID("ghost").Return(domain.User{}, errors.ErrUserNotFound)

		_, err := svc.CreateGroupChat(ctx, "alice", "team", []string{"ghost"})
		req.ErrorIs(err, errors.ErrUserNotFound)
	})
}

func TestChatService_Messages(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist an unread message attributed to the sender", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		at := time.Now()

		m.messages.EXPECT().StoreMessage(gomock.Any()).DoAndReturn(func(message domain.Message) error {
			req.Equal(domain.ChatID(4), message.ChatID)
			req.Equal("alice", message.Sender)
			req.Equal("alice-id", message.SenderID)
			req.False(message.Read)
			return nil
		})

		message, err := svc.PersistMessage(ctx, 4, alice, "hello", at)
		req.NoError(err)
		req.Equal("hello", message.Text)
		req.NotEqual(uuid.Nil, message.ID)
	})

	t.Run("should surface a storage failure", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		m.messages.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("disk full"))

		_, err := svc.PersistMessage(ctx, 4, alice, "hello", time.Now())
		req.Error(err)
	})

	t.Run("should skip the commit when nothing was delivered", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		m.messages.EXPECT().MarkRead(gomock.Any()).Times(0)

		req.NoError(svc.MarkRead(ctx, 4, nil))
	})

	t.Run("should mark all ids in one call", func(t *testing.T) {
		req := require.New(t)
		svc, m := newChatService(t)
		ids := []uuid.UUID{uuid.New(), uuid.New()}
		m.messages.EXPECT().MarkRead(ids).Return(2, nil).Times(1)

		req.NoError(svc.MarkRead(ctx, 4, ids))
	})
}
