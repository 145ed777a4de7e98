package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	goerrors "errors"
	"log/slog"

	"github.com/samber/lo"
)

// AccessService decides whether a user may join the live stream of a chat.
// The decision is made once per session and never cached.
type AccessService struct {
	chatRepository storage.IChatRepository
	log            *slog.Logger
}

func NewAccessService(chatRepository storage.IChatRepository, log *slog.Logger) *AccessService {
	return &AccessService{chatRepository: chatRepository, log: log}
}

func (a *AccessService) Authorize(_ context.Context, chatID domain.ChatID, user domain.User) bool {
	chat, err := a.chatRepository.GetChatByID(chatID)
	if goerrors.Is(err, errors.ErrChatNotFound) {
		a.log.Warn("Chat not found", "chat_id", chatID, "identity", user.Username)
		return false
	}
	if err != nil {
		a.log.Error("Cannot load chat", "chat_id", chatID, "error", err)
		return false
	}

	switch chat.Kind {
	case domain.Group:
		members, err := a.chatRepository.GetGroupMembers(chatID)
		if err != nil {
			a.log.Error("Cannot load group roster", "chat_id", chatID, "error", err)
			return false
		}
		return lo.Contains(members, user.ID)
	case domain.Private:
		participants, err := a.chatRepository.GetPrivateParticipants(chatID)
		if err != nil {
			a.log.Error("Cannot load private participants", "chat_id", chatID, "error", err)
			return false
		}
		if len(participants) != 2 {
			a.log.Warn("Private chat has an invalid participant set", "chat_id", chatID, "participants", len(participants))
			return false
		}
		return lo.Contains(participants, user.ID)
	default:
		a.log.Warn("Unknown chat kind", "chat_id", chatID, "kind", chat.Kind)
		return false
	}
}
