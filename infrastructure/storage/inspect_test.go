package storage

import (
	"chat-relay/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	req := require.New(t)

	message := newMessage(3, "alice", "hello", time.Now().UTC())
	kind, detail := Describe("msg:3:0001:"+message.ID.String(), encodeMessage(message))
	req.Equal("MESSAGE", kind)
	req.Equal("alice: hello (read=false)", detail)

	kind, detail = Describe("chat:3", encodeChat(domain.Chat{ID: 3, Name: "team", Kind: domain.Group, CreatorID: "alice-id"}))
	req.Equal("CHAT", kind)
	req.Equal(`group "team" by alice-id`, detail)

	kind, detail = Describe("user_email:alice@example.com", []byte("alice"))
	req.Equal("INDEX", kind)
	req.Equal("alice", detail)

	kind, _ = Describe("seq:chat", []byte{0, 1})
	req.Equal("RAW", kind)
}
