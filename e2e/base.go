package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR is not set, skipping end-to-end tests")
	}
}

// Step prints a colorized header for a test step
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseRelaySuite) httpURL(path string) string {
	return "http://" + s.Config.RelayAddr + path
}

// Register creates an account and returns its id
func (s *BaseRelaySuite) Register(username, password string) string {
	body := fmt.Sprintf(`{"username":%q,"email":%q,"password":%q}`, username, username+"@example.com", password)
	resp, err := http.Post(s.httpURL("/register"), "application/json", strings.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var user struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&user))
	return user.ID
}

func (s *BaseRelaySuite) Token(username, password string) string {
	resp, err := http.PostForm(s.httpURL("/token"), url.Values{"username": {username}, "password": {password}})
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var token struct {
		AccessToken string `json:"access_token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&token))
	return token.AccessToken
}

// PrivateChat opens a private chat with peerID on behalf of the token owner
func (s *BaseRelaySuite) PrivateChat(token, peerID string) int64 {
	body := fmt.Sprintf(`{"name":"e2e","peer_id":%q}`, peerID)
	request, err := http.NewRequest(http.MethodPost, s.httpURL("/chats/private"), strings.NewReader(body))
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var chat struct {
		ID int64 `json:"id"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&chat))
	return chat.ID
}

func (s *BaseRelaySuite) Join(chatID int64, token string) *websocket.Conn {
	endpoint := url.URL{
		Scheme:   "ws",
		Host:     s.Config.RelayAddr,
		Path:     "/chat/" + strconv.FormatInt(chatID, 10),
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	ws, resp, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	return ws
}

func (s *BaseRelaySuite) Read(ws *websocket.Conn) string {
	s.Require().NoError(ws.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, data, err := ws.ReadMessage()
	s.Require().NoError(err)
	return string(data)
}

// WithHealth provides a gRPC health client within a contextual test step
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	s.Step(name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
