package e2e

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const password = "correct horse battery"

type testRelaySuite struct {
	BaseRelaySuite
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, &testRelaySuite{})
}

func (s *testRelaySuite) TestFullRelayFlow() {
	suffix := time.Now().UnixNano()
	alice := fmt.Sprintf("alice%d", suffix)
	bob := fmt.Sprintf("bob%d", suffix)

	var aliceToken, bobToken string
	var chatID int64

	s.Run("Step 0: Relay reports SERVING", func() {
		s.WithHealth("Checking relay health", func(ctx context.Context, client healthpb.HealthClient) {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "chat.Relay"})
			s.Require().NoError(err)
			s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.Status)
		})
	})

	s.Run("Step 1: Register accounts and open a private chat", func() {
		s.Step("Registering alice and bob")
		s.Register(alice, password)
		bobID := s.Register(bob, password)
		aliceToken = s.Token(alice, password)
		bobToken = s.Token(bob, password)
		chatID = s.PrivateChat(aliceToken, bobID)
	})

	s.Run("Step 2: Offline message is replayed once", func() {
		s.Step("Alice writes while bob is offline")
		aliceWS := s.Join(chatID, aliceToken)
		defer aliceWS.Close()
		s.Require().NoError(aliceWS.WriteMessage(websocket.TextMessage, []byte("are you there?")))
		// Leave time for the relay to persist before bob joins
		time.Sleep(200 * time.Millisecond)

		bobWS := s.Join(chatID, bobToken)
		defer bobWS.Close()
		s.Equal(fmt.Sprintf("Client #%s says: are you there?", alice), s.Read(bobWS))

		s.Step("Bob answers live")
		// Give the relay time to register bob after the replay
		time.Sleep(200 * time.Millisecond)
		s.Require().NoError(bobWS.WriteMessage(websocket.TextMessage, []byte("here")))
		s.Equal(fmt.Sprintf("Client #%s says: here", bob), s.Read(aliceWS))
	})
}
