package sync

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/mpavlenko/docketsync/internal/client/api"
	"github.com/mpavlenko/docketsync/internal/client/storage"
	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/models"
	"github.com/mpavlenko/docketsync/internal/vault"
)

// metaKeyCache keeps the owner DEK in the client's metadata table.
type metaKeyCache struct {
	meta *storage.MetaStore
}

func (c metaKeyCache) Get(ctx context.Context) ([]byte, error) {
	keyHex, err := c.meta.Get(ctx, storage.MetaOwnerKey)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("cached owner key is malformed: %w", err)
	}
	return key, nil
}

func (c metaKeyCache) Put(ctx context.Context, key []byte) error {
	return c.meta.Set(ctx, storage.MetaOwnerKey, hex.EncodeToString(key))
}

// apiEscrow downloads/uploads the owner DEK through the server's key
// endpoint, so a second device can recover the key after login.
type apiEscrow struct {
	api   api.Client
	meta  *storage.MetaStore
	token string
	log   logging.Logger
}

func (e apiEscrow) Fetch(ctx context.Context) (*vault.EscrowedKey, error) {
	payload, err := e.api.GetKey(ctx, e.token)
	if err != nil {
		return nil, err
	}
	// Version bookkeeping is best-effort; the key itself is what matters.
	if err := e.meta.Set(ctx, storage.MetaKeyVersion, strconv.Itoa(payload.Version)); err != nil {
		e.log.Warn(ctx, "caching key version", "error", err)
	}
	return &vault.EscrowedKey{KeyHex: payload.KeyHex, Version: payload.Version}, nil
}

func (e apiEscrow) Store(ctx context.Context, key *vault.EscrowedKey) error {
	if err := e.api.PutKey(ctx, e.token, &models.KeyPayload{KeyHex: key.KeyHex, Version: key.Version}); err != nil {
		return err
	}
	return e.meta.Set(ctx, storage.MetaKeyVersion, strconv.Itoa(key.Version))
}
