package storage

import (
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// Given a registered user
	created, err := repository.CreateUser("alice", "alice@example.com", "$argon2id$hash")
	req.NoError(err)
	req.NotEmpty(created.ID)

	// Then it can be found by username and by id
	byName, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(created, byName)

	byID, err := repository.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal(created, byID)
}

func TestUserRepository_Uniqueness(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice", "alice@example.com", "hash")
	req.NoError(err)

	// When the username is reused
	_, err = repository.CreateUser("alice", "other@example.com", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	// When the email is reused
	_, err = repository.CreateUser("bob", "alice@example.com", "hash")
	req.ErrorIs(err, errors.ErrEmailAlreadyUsed)

	// Then the failed attempts left nothing behind
	_, err = repository.GetUserByUsername("bob")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByUsername("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByID("ghost-id")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
