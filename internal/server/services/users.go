package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/server/auth"
	srvmodels "github.com/mpavlenko/docketsync/internal/server/models"
	"github.com/mpavlenko/docketsync/internal/server/repositories/repomanager"
)

// UserService handles account registration and login.
type UserService struct {
	manager       repomanager.Manager
	secretKey     []byte
	tokenValidity time.Duration
	log           logging.Logger
}

func NewUserService(manager repomanager.Manager, secretKey string, tokenValidity time.Duration, log logging.Logger) *UserService {
	return &UserService{
		manager:       manager,
		secretKey:     []byte(secretKey),
		tokenValidity: tokenValidity,
		log:           log,
	}
}

// Register creates an account with a bcrypt-hashed password. Returns
// common.ErrAlreadyExists when the username is taken.
func (s *UserService) Register(ctx context.Context, username, password string) (*srvmodels.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u, err := s.manager.Users().Create(ctx, &srvmodels.User{Username: username, PasswordHash: hash})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "username", username)
	return u, nil
}

// Login verifies credentials and issues an access token. Both an unknown
// username and a wrong password map to common.ErrUnauthorized so the two are
// indistinguishable to a caller probing for accounts.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.manager.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid username or password", common.ErrUnauthorized)
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid username or password", common.ErrUnauthorized)
	}

	return auth.GenerateToken(u.ID, s.secretKey, s.tokenValidity)
}
