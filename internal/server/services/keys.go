package services

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/models"
	srvmodels "github.com/mpavlenko/docketsync/internal/server/models"
	"github.com/mpavlenko/docketsync/internal/server/repositories/repomanager"
	"github.com/mpavlenko/docketsync/internal/vault"
)

// KeyService backs the key escrow endpoint: clients download the owner DEK
// when setting up a new device and upload one when none is escrowed yet.
type KeyService struct {
	manager repomanager.Manager
	keyring *vault.Keyring
}

func NewKeyService(manager repomanager.Manager, keyring *vault.Keyring) *KeyService {
	return &KeyService{manager: manager, keyring: keyring}
}

// Get returns the escrowed key for the owner, or common.ErrNotFound when no
// key has been escrowed.
func (s *KeyService) Get(ctx context.Context, ownerID string) (*models.KeyPayload, error) {
	k, err := s.manager.OwnerKeys().Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &models.KeyPayload{KeyHex: k.KeyHex, Version: k.Version}, nil
}

// Put stores or replaces the owner's escrowed key and refreshes the server's
// in-process keyring so subsequent pushes encrypt with the new material.
func (s *KeyService) Put(ctx context.Context, ownerID string, payload *models.KeyPayload) error {
	key, err := hex.DecodeString(payload.KeyHex)
	if err != nil || len(key) != vault.KeySize {
		return fmt.Errorf("%w: key must be %d hex-encoded bytes", common.ErrValidation, vault.KeySize)
	}

	version := payload.Version
	if version <= 0 {
		version = 1
	}

	if err := s.manager.OwnerKeys().Upsert(ctx, &srvmodels.OwnerKey{
		OwnerID: ownerID,
		KeyHex:  payload.KeyHex,
		Version: version,
	}); err != nil {
		return err
	}

	s.keyring.Put(ownerID, key)
	return nil
}
