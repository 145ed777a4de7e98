package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	CreatePrivateChat(ctx context.Context, creator, name, peerID string) (domain.Chat, error)
	CreateGroupChat(ctx context.Context, creator, name string, memberIDs []string) (domain.Chat, error)
}

type ChatService struct {
	userRepository    storage.IUserRepository
	chatRepository    storage.IChatRepository
	messageRepository storage.IMessageRepository
	log               *slog.Logger
}

func NewChatService(
	userRepository storage.IUserRepository,
	chatRepository storage.IChatRepository,
	messageRepository storage.IMessageRepository,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		userRepository:    userRepository,
		chatRepository:    chatRepository,
		messageRepository: messageRepository,
		log:               log,
	}
}

// CreatePrivateChat opens a chat between the creator and exactly one peer.
func (c *ChatService) CreatePrivateChat(_ context.Context, creator, name, peerID string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Chat{}, errors.ErrInvalidChatName
	}
	owner, err := c.userRepository.GetUserByUsername(creator)
	if err != nil {
		return domain.Chat{}, err
	}
	if owner.ID == peerID {
		return domain.Chat{}, errors.ErrSameParticipant
	}
	if _, err = c.userRepository.GetUserByID(peerID); err != nil {
		return domain.Chat{}, err
	}
	return c.chatRepository.CreatePrivateChat(name, owner.ID, peerID)
}

// CreateGroupChat opens a group chat. The creator is always part of the roster
// and duplicated member ids are collapsed.
func (c *ChatService) CreateGroupChat(_ context.Context, creator, name string, memberIDs []string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Chat{}, errors.ErrInvalidChatName
	}
	owner, err := c.userRepository.GetUserByUsername(creator)
	if err != nil {
		return domain.Chat{}, err
	}

	roster := lo.Uniq(append([]string{owner.ID}, memberIDs...))
	for _, memberID := range roster[1:] {
		if _, err = c.userRepository.GetUserByID(memberID); err != nil {
			return domain.Chat{}, fmt.Errorf("member %s: %w", memberID, err)
		}
	}
	return c.chatRepository.CreateGroupChat(name, owner.ID, roster)
}

func (c *ChatService) UnreadMessages(_ context.Context, chatID domain.ChatID) ([]domain.Message, error) {
	return c.messageRepository.GetUnreadMessages(chatID)
}

// MarkRead commits the read flag of every given message at once.
func (c *ChatService) MarkRead(_ context.Context, chatID domain.ChatID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	marked, err := c.messageRepository.MarkRead(ids)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	c.log.Debug("Messages marked as read", "chat_id", chatID, "requested", len(ids), "marked", marked)
	return nil
}

// PersistMessage stores an inbound message as unread and returns it.
func (c *ChatService) PersistMessage(_ context.Context, chatID domain.ChatID, sender domain.User, text string, at time.Time) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  sender.ID,
		Sender:    sender.Username,
		Text:      text,
		Timestamp: at.UTC(),
	}
	if err := c.messageRepository.StoreMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	return message, nil
}
