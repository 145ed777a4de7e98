//go:generate go run go.uber.org/mock/mockgen -source=message_repository.go -destination=../../mocks/mock_message_repository.go -package=mocks
package storage

import (
	"chat-relay/domain"
	goerrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetUnreadMessages(chatID domain.ChatID) ([]domain.Message, error)
	MarkRead(ids []uuid.UUID) (int, error)
	GetMessages(chatID domain.ChatID) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// messageSuffix is shared by the message key, the unread index and the id index.
// The timestamp is zero padded to 19 digits so keys sort chronologically.
func messageSuffix(m domain.Message) string {
	return fmt.Sprintf("%d:%019d:%s", m.ChatID, m.Timestamp.UnixNano(), m.ID)
}

func messageKey(suffix string) []byte { return []byte("msg:" + suffix) }
func unreadKey(suffix string) []byte { return []byte("unread:" + suffix) }
func messageIDKey(id uuid.UUID) []byte { return []byte("msg_id:" + id.String()) }
func messagePrefix(id domain.ChatID) []byte { return []byte(fmt.Sprintf("msg:%d:", id)) }
func unreadPrefix(id domain.ChatID) []byte { return []byte(fmt.Sprintf("unread:%d:", id)) }

// StoreMessage persists a message with its id index and, while unread, its unread index entry.
func (m *MessageRepository) StoreMessage(message domain.Message) error {
	suffix := messageSuffix(message)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(suffix), encodeMessage(message)); err != nil {
			return err
		}
		if err := txn.Set(messageIDKey(message.ID), []byte(suffix)); err != nil {
			return err
		}
		if message.Read {
			return nil
		}
		return txn.Set(unreadKey(suffix), nil)
	})
}

// GetUnreadMessages walks the unread index of a chat, oldest first.
func (m *MessageRepository) GetUnreadMessages(chatID domain.ChatID) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := unreadPrefix(chatID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			suffix := string(it.Item().Key()[len("unread:"):])
			message, err := getMessage(txn, messageKey(suffix))
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// MarkRead flags the given messages as read in a single transaction and returns
// how many of them transitioned. Messages already read are left untouched.
func (m *MessageRepository) MarkRead(ids []uuid.UUID) (int, error) {
	var marked int
	err := m.db.Update(func(txn *badger.Txn) error {
		marked = 0
		for _, id := range ids {
			item, err := txn.Get(messageIDKey(id))
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				m.log.Warn("Cannot mark unknown message as read", "message_id", id)
				continue
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			suffix := string(raw)

			message, err := getMessage(txn, messageKey(suffix))
			if err != nil {
				return err
			}
			if message.Read {
				continue
			}
			message.Read = true
			if err = txn.Set(messageKey(suffix), encodeMessage(message)); err != nil {
				return err
			}
			if err = txn.Delete(unreadKey(suffix)); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	return marked, err
}

// GetMessages returns every message of a chat in chronological order.
func (m *MessageRepository) GetMessages(chatID domain.ChatID) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func getMessage(txn *badger.Txn, key []byte) (domain.Message, error) {
	item, err := txn.Get(key)
	if err != nil {
		return domain.Message{}, fmt.Errorf("get %s: %w", key, err)
	}
	var message domain.Message
	err = item.Value(func(val []byte) error {
		message, err = decodeMessage(val)
		return err
	})
	return message, err
}
