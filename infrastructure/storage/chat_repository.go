//go:generate go run go.uber.org/mock/mockgen -source=chat_repository.go -destination=../../mocks/mock_chat_repository.go -package=mocks
package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// sequenceBandwidth is the number of chat ids leased from Badger at once.
const sequenceBandwidth = 100

type IChatRepository interface {
	CreatePrivateChat(name, firstUserID, secondUserID string) (domain.Chat, error)
	CreateGroupChat(name, creatorID string, memberIDs []string) (domain.Chat, error)
	GetChatByID(id domain.ChatID) (domain.Chat, error)
	GetGroupMembers(groupID domain.ChatID) ([]string, error)
	GetPrivateParticipants(id domain.ChatID) ([]string, error)
}

type ChatRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) (*ChatRepository, error) {
	seq, err := db.GetSequence([]byte("seq:chat"), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("chat sequence: %w", err)
	}
	return &ChatRepository{db: db, seq: seq, log: log}, nil
}

// Close returns the unused leased ids to Badger.
func (c *ChatRepository) Close() error {
	return c.seq.Release()
}

func chatKey(id domain.ChatID) []byte { return []byte(fmt.Sprintf("chat:%d", id)) }

func participantPrefix(id domain.ChatID) []byte {
	return []byte(fmt.Sprintf("chat_user:%d:", id))
}

func memberPrefix(id domain.ChatID) []byte {
	return []byte(fmt.Sprintf("group_member:%d:", id))
}

// CreatePrivateChat stores a private chat and its two participant rows.
func (c *ChatRepository) CreatePrivateChat(name, firstUserID, secondUserID string) (domain.Chat, error) {
	chat, err := c.newChat(name, domain.Private, firstUserID)
	if err != nil {
		return domain.Chat{}, err
	}
	prefix := participantPrefix(chat.ID)
	err = c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chatKey(chat.ID), encodeChat(chat)); err != nil {
			return err
		}
		for _, userID := range []string{firstUserID, secondUserID} {
			key := append(append([]byte{}, prefix...), userID...)
			if err := txn.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// CreateGroupChat stores a group chat with its member roster.
// The roster is stored as given; callers decide whether the creator belongs to it.
func (c *ChatRepository) CreateGroupChat(name, creatorID string, memberIDs []string) (domain.Chat, error) {
	if len(memberIDs) == 0 {
		return domain.Chat{}, errors.ErrEmptyRoster
	}
	chat, err := c.newChat(name, domain.Group, creatorID)
	if err != nil {
		return domain.Chat{}, err
	}
	prefix := memberPrefix(chat.ID)
	err = c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chatKey(chat.ID), encodeChat(chat)); err != nil {
			return err
		}
		for _, memberID := range memberIDs {
			key := append(append([]byte{}, prefix...), memberID...)
			if err := txn.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (c *ChatRepository) newChat(name string, kind domain.ChatKind, creatorID string) (domain.Chat, error) {
	next, err := c.seq.Next()
	if err != nil {
		return domain.Chat{}, fmt.Errorf("next chat id: %w", err)
	}
	chat := domain.Chat{
		ID:        domain.ChatID(next + 1),
		Name:      name,
		Kind:      kind,
		CreatorID: creatorID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	c.log.Debug("Chat created", "chat_id", chat.ID, "kind", kind)
	return chat, nil
}

func (c *ChatRepository) GetChatByID(id domain.ChatID) (domain.Chat, error) {
	var chat domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(id))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrChatNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			chat, err = decodeChat(val)
			return err
		})
	})
	return chat, err
}

func (c *ChatRepository) GetGroupMembers(groupID domain.ChatID) ([]string, error) {
	return c.scanIDs(memberPrefix(groupID))
}

func (c *ChatRepository) GetPrivateParticipants(id domain.ChatID) ([]string, error) {
	return c.scanIDs(participantPrefix(id))
}

// scanIDs returns the key suffixes found under prefix, i.e. user ids.
func (c *ChatRepository) scanIDs(prefix []byte) ([]string, error) {
	var ids []string
	err := c.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return ids, err
}
