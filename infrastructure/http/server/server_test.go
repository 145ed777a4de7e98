package server

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/transport"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const password = "correct horse battery"

type ServerSuite struct {
	suite.Suite
	db       *badger.DB
	chats    *storage.ChatRepository
	messages *storage.MessageRepository
	rooms    *runtime.Rooms
	server   *httptest.Server
	secret   []byte
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	var err error
	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	users := storage.NewUserRepository(s.db)
	s.chats, err = storage.NewChatRepository(s.db, log)
	s.Require().NoError(err)
	s.messages = storage.NewMessageRepository(s.db, log)
	s.secret = []byte("server-test-secret-for-hs256")

	authService := services.NewAuthService(users, s.secret, time.Hour)
	chatService := services.NewChatService(users, s.chats, s.messages, log)
	accessService := services.NewAccessService(s.chats, log)

	s.rooms = runtime.NewRooms(log)
	relay := runtime.NewRelay(log, s.rooms, authService, accessService, chatService, 0)
	server := NewServer(log, relay, s.rooms, authService, chatService, Options{
		Secret:          s.secret,
		Transport:       transport.DefaultOptions,
		ShutdownTimeout: time.Second,
	})
	s.server = httptest.NewServer(server.Handler())
}

func (s *ServerSuite) TearDownTest() {
	s.rooms.CloseAll()
	s.server.Close()
	_ = s.chats.Close()
	_ = s.db.Close()
}

func (s *ServerSuite) register(username string) userResponse {
	body, err := json.Marshal(registerRequest{Username: username, Email: username + "@example.com", Password: password})
	s.Require().NoError(err)
	resp, err := http.Post(s.server.URL+"/register", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var user userResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&user))
	return user
}

func (s *ServerSuite) token(username, pass string) (string, int) {
	resp, err := http.PostForm(s.server.URL+"/token", url.Values{"username": {username}, "password": {pass}})
	s.Require().NoError(err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode
	}
	var token tokenResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&token))
	s.Require().Equal("bearer", token.TokenType)
	return token.AccessToken, resp.StatusCode
}

func (s *ServerSuite) postJSON(path, token string, payload any) *http.Response {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)
	request, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(body))
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	return resp
}

func (s *ServerSuite) createPrivateChat(token, peerID string) chatResponse {
	resp := s.postJSON("/chats/private", token, privateChatRequest{Name: "direct", PeerID: peerID})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var chat chatResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&chat))
	return chat
}

func (s *ServerSuite) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + path
}

func (s *ServerSuite) dial(chatID int64, token string) *websocket.Conn {
	ws, resp, err := websocket.DefaultDialer.Dial(s.wsURL("/chat/"+strconv.FormatInt(chatID, 10)+"?token="+url.QueryEscape(token)), nil)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	s.T().Cleanup(func() { _ = ws.Close() })
	return ws
}

// waitOnline blocks until the identity is registered for live delivery in the chat.
func (s *ServerSuite) waitOnline(chatID int64, identity string) {
	s.Require().Eventually(func() bool {
		for _, online := range s.rooms.Members(domain.ChatID(chatID)) {
			if online == identity {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServerSuite) read(ws *websocket.Conn) string {
	s.Require().NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := ws.ReadMessage()
	s.Require().NoError(err)
	return string(data)
}

func (s *ServerSuite) TestLive_Broadcast_Between_Two_Participants() {
	s.register("alice")
	bob := s.register("bob")
	aliceToken, _ := s.token("alice", password)
	bobToken, _ := s.token("bob", password)
	chat := s.createPrivateChat(aliceToken, bob.ID)

	// Given both participants connected
	aliceWS := s.dial(chat.ID, aliceToken)
	s.waitOnline(chat.ID, "alice")
	bobWS := s.dial(chat.ID, bobToken)
	s.waitOnline(chat.ID, "bob")

	// When alice writes
	s.Require().NoError(aliceWS.WriteMessage(websocket.TextMessage, []byte("hello bob")))

	// Then bob receives it with attribution and alice gets no echo
	s.Equal("Client #alice says: hello bob", s.read(bobWS))

	s.Require().NoError(bobWS.WriteMessage(websocket.TextMessage, []byte("hi alice")))
	s.Equal("Client #bob says: hi alice", s.read(aliceWS))
}

func (s *ServerSuite) TestReplay_Of_Unread_Messages() {
	s.register("alice")
	bob := s.register("bob")
	aliceToken, _ := s.token("alice", password)
	bobToken, _ := s.token("bob", password)
	chat := s.createPrivateChat(aliceToken, bob.ID)

	// Given alice wrote while bob was offline
	aliceWS := s.dial(chat.ID, aliceToken)
	s.waitOnline(chat.ID, "alice")
	s.Require().NoError(aliceWS.WriteMessage(websocket.TextMessage, []byte("are you there?")))
	s.Require().Eventually(func() bool {
		unread, err := s.messages.GetUnreadMessages(domain.ChatID(chat.ID))
		return err == nil && len(unread) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// When bob joins, the message is replayed then marked read
	bobWS := s.dial(chat.ID, bobToken)
	s.Equal("Client #alice says: are you there?", s.read(bobWS))
	s.Require().Eventually(func() bool {
		unread, err := s.messages.GetUnreadMessages(domain.ChatID(chat.ID))
		return err == nil && len(unread) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServerSuite) TestChat_Rejects_Bad_Query_Before_Upgrade() {
	for _, path := range []string{"/chat/abc?token=x", "/chat/0?token=x", "/chat/1"} {
		_, resp, err := websocket.DefaultDialer.Dial(s.wsURL(path), nil)
		s.Require().ErrorIs(err, websocket.ErrBadHandshake, path)
		s.Equal(http.StatusBadRequest, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func (s *ServerSuite) TestChat_Closes_With_Policy_Violation() {
	s.register("alice")
	bob := s.register("bob")
	s.register("carol")
	aliceToken, _ := s.token("alice", password)
	carolToken, _ := s.token("carol", password)
	chat := s.createPrivateChat(aliceToken, bob.ID)

	cases := map[string]struct {
		chatID int64
		token  string
	}{
		"invalid token": {chatID: chat.ID, token: "not-a-jwt"},
		"non member":    {chatID: chat.ID, token: carolToken},
		"unknown chat":  {chatID: 9999, token: aliceToken},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			ws := s.dial(tc.chatID, tc.token)
			s.Require().NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
			_, _, err := ws.ReadMessage()
			s.True(websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
		})
	}
	s.Zero(s.rooms.Len())
}

func (s *ServerSuite) TestChat_Rejects_Foreign_Origin() {
	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(s.wsURL("/chat/1?token=x"), header)
	s.Require().ErrorIs(err, websocket.ErrBadHandshake)
	s.Equal(http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func (s *ServerSuite) TestRegister_And_Token() {
	s.register("alice")

	// Duplicate username
	resp := s.postJSON("/register", "", registerRequest{Username: "alice", Email: "other@example.com", Password: password})
	s.Equal(http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	// Blank password
	resp = s.postJSON("/register", "", registerRequest{Username: "dave", Email: "dave@example.com", Password: "  "})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	_, status := s.token("alice", "wrong horse battery")
	s.Equal(http.StatusUnauthorized, status)

	token, status := s.token("ALICE", password)
	s.Equal(http.StatusOK, status)
	s.NotEmpty(token)
}

func (s *ServerSuite) TestCreate_Chats() {
	alice := s.register("alice")
	bob := s.register("bob")
	carol := s.register("carol")
	token, _ := s.token("alice", password)

	s.Run("requires a bearer token", func() {
		resp := s.postJSON("/chats/private", "", privateChatRequest{Name: "x", PeerID: bob.ID})
		defer resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("refuses a chat with oneself", func() {
		resp := s.postJSON("/chats/private", token, privateChatRequest{Name: "me", PeerID: alice.ID})
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("refuses an unknown peer", func() {
		resp := s.postJSON("/chats/private", token, privateChatRequest{Name: "ghost", PeerID: "missing"})
		defer resp.Body.Close()
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("creates a group including the creator", func() {
		resp := s.postJSON("/chats/group", token, groupChatRequest{Name: "team", Members: []string{bob.ID, carol.ID}})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusCreated, resp.StatusCode)

		var chat chatResponse
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(&chat))
		s.Equal("group", chat.Kind)
		s.Equal(alice.ID, chat.CreatorID)

		members, err := s.chats.GetGroupMembers(domain.ChatID(chat.ID))
		s.Require().NoError(err)
		s.ElementsMatch([]string{alice.ID, bob.ID, carol.ID}, members)
	})
}

func (s *ServerSuite) TestHealth() {
	resp, err := http.Get(s.server.URL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *ServerSuite) TestRun_Stops_On_Cancel() {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	rooms := runtime.NewRooms(log)
	server := NewServer(log, nil, rooms, nil, nil, Options{Address: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(3 * time.Second):
		s.Fail("server did not stop")
	}
}
