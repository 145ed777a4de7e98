package storage

import (
	"chat-relay/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in Badger using the protobuf wire format.
// Field numbers are part of the on-disk format and must never be reused.
const (
	messageID        protowire.Number = 1
	messageChatID    protowire.Number = 2
	messageSenderID  protowire.Number = 3
	messageSender    protowire.Number = 4
	messageText      protowire.Number = 5
	messageTimestamp protowire.Number = 6
	messageRead      protowire.Number = 7

	userID        protowire.Number = 1
	userUsername  protowire.Number = 2
	userEmail     protowire.Number = 3
	userPassword  protowire.Number = 4
	userCreatedAt protowire.Number = 5

	chatID        protowire.Number = 1
	chatName      protowire.Number = 2
	chatKind      protowire.Number = 3
	chatCreatorID protowire.Number = 4
	chatCreatedAt protowire.Number = 5
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// fieldVisitor receives each decoded field. Exactly one of str or varint is meaningful,
// depending on typ.
type fieldVisitor func(num protowire.Number, typ protowire.Type, str string, varint uint64) error

// walkFields decodes a record field by field. Unknown field numbers are skipped
// so older binaries can read records written by newer ones.
func walkFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("consume tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("consume varint %d: %w", num, protowire.ParseError(m))
			}
			if err := visit(num, typ, "", v); err != nil {
				return err
			}
			b = b[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return fmt.Errorf("consume bytes %d: %w", num, protowire.ParseError(m))
			}
			if err := visit(num, typ, v, 0); err != nil {
				return err
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("skip field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return nil
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, messageID, m.ID.String())
	b = appendVarint(b, messageChatID, uint64(m.ChatID))
	b = appendString(b, messageSenderID, m.SenderID)
	b = appendString(b, messageSender, m.Sender)
	b = appendString(b, messageText, m.Text)
	b = appendVarint(b, messageTimestamp, uint64(m.Timestamp.UnixNano()))
	b = appendVarint(b, messageRead, protowire.EncodeBool(m.Read))
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, str string, varint uint64) error {
		switch num {
		case messageID:
			id, err := uuid.Parse(str)
			if err != nil {
				return fmt.Errorf("message id: %w", err)
			}
			m.ID = id
		case messageChatID:
			m.ChatID = domain.ChatID(varint)
		case messageSenderID:
			m.SenderID = str
		case messageSender:
			m.Sender = str
		case messageText:
			m.Text = str
		case messageTimestamp:
			m.Timestamp = time.Unix(0, int64(varint)).UTC()
		case messageRead:
			m.Read = protowire.DecodeBool(varint)
		}
		return nil
	})
	return m, err
}

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendString(b, userID, u.ID)
	b = appendString(b, userUsername, u.Username)
	b = appendString(b, userEmail, u.Email)
	b = appendString(b, userPassword, u.PasswordHash)
	b = appendVarint(b, userCreatedAt, uint64(u.CreatedAt.Unix()))
	return b
}

func decodeUser(b []byte) (domain.User, error) {
	var u domain.User
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, str string, varint uint64) error {
		switch num {
		case userID:
			u.ID = str
		case userUsername:
			u.Username = str
		case userEmail:
			u.Email = str
		case userPassword:
			u.PasswordHash = str
		case userCreatedAt:
			u.CreatedAt = time.Unix(int64(varint), 0).UTC()
		}
		return nil
	})
	return u, err
}

func encodeChat(c domain.Chat) []byte {
	var b []byte
	b = appendVarint(b, chatID, uint64(c.ID))
	b = appendString(b, chatName, c.Name)
	b = appendVarint(b, chatKind, uint64(c.Kind))
	b = appendString(b, chatCreatorID, c.CreatorID)
	b = appendVarint(b, chatCreatedAt, uint64(c.CreatedAt.Unix()))
	return b
}

func decodeChat(b []byte) (domain.Chat, error) {
	var c domain.Chat
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, str string, varint uint64) error {
		switch num {
		case chatID:
			c.ID = domain.ChatID(varint)
		case chatName:
			c.Name = str
		case chatKind:
			c.Kind = domain.ChatKind(varint)
		case chatCreatorID:
			c.CreatorID = str
		case chatCreatedAt:
			c.CreatedAt = time.Unix(int64(varint), 0).UTC()
		}
		return nil
	})
	return c, err
}
