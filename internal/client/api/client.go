// Package api is the client's HTTP binding to the docketsync server.
package api

import (
	"context"

	"github.com/mpavlenko/docketsync/internal/models"
)

// Client is the server surface the sync orchestrator and CLI depend on.
// Implementations return the shared sentinel errors: common.ErrUnauthorized
// for rejected credentials or tokens, common.ErrNotFound for a missing
// escrowed key, common.ErrNetwork for transport failures.
type Client interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)

	Pull(ctx context.Context, token string, lastPulledAtMs int64) (*models.PullResponse, error)
	Push(ctx context.Context, token string, ch *models.Changes) (*models.PushResponse, error)

	GetKey(ctx context.Context, token string) (*models.KeyPayload, error)
	PutKey(ctx context.Context, token string, payload *models.KeyPayload) error

	Ping(ctx context.Context) error
}
