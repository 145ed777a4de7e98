package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/transport"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type privateChatRequest struct {
	Name   string `json:"name"`
	PeerID string `json:"peer_id"`
}

type groupChatRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type chatResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func toChatResponse(chat domain.Chat) chatResponse {
	return chatResponse{
		ID:        int64(chat.ID),
		Name:      chat.Name,
		Kind:      chat.Kind.String(),
		CreatorID: chat.CreatorID,
		CreatedAt: chat.CreatedAt,
	}
}

// handleChat validates the query before upgrading, then runs the session
// on the handler goroutine until the connection ends.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.PathValue("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		writeError(w, http.StatusBadRequest, "chat_id must be a positive integer")
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error
		s.log.Debug("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	conn := transport.NewConn(ws, s.opts.Transport, s.log.With("remote", r.RemoteAddr))
	s.relay.Serve(r.Context(), domain.ChatID(chatID), token, conn)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.authService.Register(body.Username, body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// handleToken follows the OAuth2 password grant form: username and password fields.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	token, err := s.authService.Login(r.PostForm.Get("username"), r.PostForm.Get("password"))
	if goerrors.Is(err, errors.ErrInvalidCredentials) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token.String(), TokenType: "bearer"})
}

func (s *Server) handleCreatePrivateChat(w http.ResponseWriter, r *http.Request) {
	username, _ := auth.UsernameFromContext(r.Context())
	var body privateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	chat, err := s.chatService.CreatePrivateChat(r.Context(), username, body.Name, body.PeerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log.Info("Private chat created", "chat_id", chat.ID, "identity", username)
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) handleCreateGroupChat(w http.ResponseWriter, r *http.Request) {
	username, _ := auth.UsernameFromContext(r.Context())
	var body groupChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	members := lo.Filter(body.Members, func(member string, _ int) bool { return member != "" })

	chat, err := s.chatService.CreateGroupChat(r.Context(), username, body.Name, members)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log.Info("Group chat created", "chat_id", chat.ID, "identity", username, "members", len(members))
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chat-relay is running, %d connection(s) online", s.rooms.Online())
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case goerrors.Is(err, errors.ErrInvalidPassword),
		goerrors.Is(err, errors.ErrInvalidCredentials),
		goerrors.Is(err, errors.ErrSameParticipant),
		goerrors.Is(err, errors.ErrInvalidChatName),
		goerrors.Is(err, errors.ErrEmptyRoster):
		return http.StatusBadRequest
	case goerrors.Is(err, errors.ErrUserNotFound),
		goerrors.Is(err, errors.ErrChatNotFound):
		return http.StatusNotFound
	case goerrors.Is(err, errors.ErrUserAlreadyExists),
		goerrors.Is(err, errors.ErrEmailAlreadyUsed):
		return http.StatusConflict
	case goerrors.Is(err, errors.ErrAuthFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
