package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/server/auth"
	"github.com/mpavlenko/docketsync/internal/server/repositories/repomanager"
)

func newUserService() *UserService {
	return NewUserService(repomanager.NewMemoryManager(), "test-secret", time.Minute, testLogger())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "s3cret", string(u.PasswordHash))

	token, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	userID, err := auth.GetUserIDFromToken(token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "one")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "two")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestRegister_EmptyCredentials(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "pw")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Register(ctx, "bob", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "s3cret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
