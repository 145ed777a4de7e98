package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatOutbound(t *testing.T) {
	req := require.New(t)
	req.Equal("Client #alice says: hello", FormatOutbound("alice", "hello"))
	req.Equal("Client #bob says: ", FormatOutbound("bob", ""))
}

func TestChatKind_String(t *testing.T) {
	req := require.New(t)
	req.Equal("private", Private.String())
	req.Equal("group", Group.String())
	req.Equal("unknown", ChatKind(0).String())
}
