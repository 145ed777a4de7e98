package server

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/transport"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	Address         string
	Secret          []byte
	Transport       transport.Options
	Origins         []string
	ShutdownTimeout time.Duration
}

// Server exposes the live chat endpoint and the REST collaborators.
// It is a supervised worker: Run serves until the context is cancelled.
type Server struct {
	log         *slog.Logger
	relay       *runtime.Relay
	rooms       *runtime.Rooms
	authService services.IAuthService
	chatService services.IChatService
	upgrader    websocket.Upgrader
	opts        Options
}

func NewServer(
	log *slog.Logger,
	relay *runtime.Relay,
	rooms *runtime.Rooms,
	authService services.IAuthService,
	chatService services.IChatService,
	opts Options,
) *Server {
	policy := NewOriginPolicy(opts.Origins, log)
	return &Server{
		log:         log,
		relay:       relay,
		rooms:       rooms,
		authService: authService,
		chatService: chatService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.CheckOrigin,
		},
		opts: opts,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat/{chat_id}", s.handleChat)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /token", s.handleToken)
	mux.Handle("POST /chats/private", auth.RequireBearer(s.opts.Secret, http.HandlerFunc(s.handleCreatePrivateChat)))
	mux.Handle("POST /chats/group", auth.RequireBearer(s.opts.Secret, http.HandlerFunc(s.handleCreateGroupChat)))
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Run listens on the configured address and serves until ctx is cancelled.
// Request contexts derive from ctx so live sessions end on shutdown.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Address, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "address", listener.Addr().String(), "at", time.Now().UTC())
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down HTTP server")
	case err = <-errChan:
		if goerrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	// Hijacked websockets are not tracked by Shutdown
	s.rooms.CloseAll()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP shutdown incomplete", "error", err)
	}
	<-errChan
	return nil
}
