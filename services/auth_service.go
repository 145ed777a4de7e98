package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	goerrors "errors"
	"fmt"
	"strings"
	"time"
)

type IAuthService interface {
	Register(username, email, password string) (domain.User, error)
	Login(username, password string) (Token, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

type AuthService struct {
	userRepository    storage.IUserRepository
	secret            []byte
	authTokenDuration time.Duration
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo storage.IUserRepository, secret []byte, authTokenDuration time.Duration) *AuthService {
	return &AuthService{userRepository: repo, secret: secret, authTokenDuration: authTokenDuration}
}

// Register validates and stores a new account. Usernames are case-insensitive
// and always stored lower-cased.
func (s *AuthService) Register(username, email, password string) (domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	valReq := auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	// 1. Validate business rules before any expensive cryptographic operation
	if err := auth.ValidateRegister(valReq); err != nil {
		if goerrors.Is(err, errors.ErrInvalidPassword) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}

	// 2. Hash in the service layer so the repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Will propagate ErrUserAlreadyExists / ErrEmailAlreadyUsed
	return s.userRepository.CreateUser(username, email, hashedPassword)
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByUsername(strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(s.secret, user.Username, s.authTokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Authenticate resolves a bearer token to a stored user.
// Every failure is reported as ErrAuthFailed.
func (s *AuthService) Authenticate(_ context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, fmt.Errorf("%w: empty token", errors.ErrAuthFailed)
	}
	claims, err := auth.ValidateToken(s.secret, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrAuthFailed, err)
	}
	user, err := s.userRepository.GetUserByUsername(claims.Subject)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrAuthFailed, err)
	}
	return user, nil
}
