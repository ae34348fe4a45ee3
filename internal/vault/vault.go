// Package vault implements per-owner envelope encryption: DEK lifecycle
// (local cache, server escrow, fresh generation) and authenticated
// field-level encryption with AES-256-GCM.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/models"
)

const (
	// KeySize is the DEK length in bytes (AES-256).
	KeySize = 32
	// ivSize is the GCM nonce length in bytes (96 bits).
	ivSize = 12
)

// EscrowedKey is an owner DEK as held by the server-side escrow.
type EscrowedKey struct {
	KeyHex  string
	Version int
}

// KeyCache stores the owner DEK locally. Get returns (nil, nil) when no key
// is cached.
type KeyCache interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, key []byte) error
}

// Escrow uploads and downloads the owner DEK for multi-device recovery.
// Fetch returns common.ErrNotFound when no key has been escrowed yet.
type Escrow interface {
	Fetch(ctx context.Context) (*EscrowedKey, error)
	Store(ctx context.Context, key *EscrowedKey) error
}

// GenerateKey returns a fresh cryptographically secure 256-bit DEK.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("no secure randomness source: %w", err)
	}
	return key, nil
}

// EncryptField authenticated-encrypts one field value with the owner key,
// using a fresh random 96-bit IV per call. IVs are never reused.
func EncryptField(plaintext string, key []byte) (*models.Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("iv generation: %w", err)
	}

	ciphertext := aesgcm.Seal(nil, iv, []byte(plaintext), nil)

	return &models.Envelope{
		Version:    models.EnvelopeVersion,
		Algorithm:  models.EnvelopeAlgorithm,
		IV:         hex.EncodeToString(iv),
		Ciphertext: hex.EncodeToString(ciphertext),
	}, nil
}

// DecryptField reverses EncryptField. It fails with common.ErrDecryption on
// tag mismatch, malformed hex, a wrong key, or an unsupported algorithm.
func DecryptField(env *models.Envelope, key []byte) (string, error) {
	if env == nil {
		return "", fmt.Errorf("%w: nil envelope", common.ErrDecryption)
	}
	if env.Algorithm != models.EnvelopeAlgorithm {
		return "", fmt.Errorf("%w: unsupported algorithm %q", common.ErrDecryption, env.Algorithm)
	}

	iv, err := hex.DecodeString(env.IV)
	if err != nil {
		return "", fmt.Errorf("%w: malformed iv: %v", common.ErrDecryption, err)
	}
	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext: %v", common.ErrDecryption, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	if len(iv) != aesgcm.NonceSize() {
		return "", fmt.Errorf("%w: bad iv length %d", common.ErrDecryption, len(iv))
	}

	plaintext, err := aesgcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return string(plaintext), nil
}

// Vault resolves and holds the owner DEK for one authenticated owner. The
// cache is an explicit object handed in by the caller, so switching owners
// means building a new Vault over a fresh (or wiped) cache.
type Vault struct {
	cache  KeyCache
	escrow Escrow
	log    logging.Logger
}

func New(cache KeyCache, escrow Escrow, log logging.Logger) *Vault {
	return &Vault{cache: cache, escrow: escrow, log: log}
}

// EnsureKey returns the owner's DEK, trying local cache, then server escrow,
// then fresh generation, in that order. A freshly generated key is cached
// locally and escrowed best-effort: an escrow upload failure is logged and
// does not block local encryption.
func (v *Vault) EnsureKey(ctx context.Context) ([]byte, error) {
	if key, err := v.cache.Get(ctx); err != nil {
		v.log.Warn(ctx, "key cache read failed", "error", err)
	} else if len(key) == KeySize {
		return key, nil
	}

	escrowed, err := v.escrow.Fetch(ctx)
	switch {
	case err == nil:
		key, err := hex.DecodeString(escrowed.KeyHex)
		if err != nil || len(key) != KeySize {
			return nil, fmt.Errorf("escrowed key is malformed: %v", err)
		}
		if err := v.cache.Put(ctx, key); err != nil {
			v.log.Warn(ctx, "key cache write failed", "error", err)
		}
		return key, nil
	case errors.Is(err, common.ErrNotFound):
		// No escrowed key yet; fall through to generation.
	default:
		// Escrow download is best-effort, but generating a new key while an
		// escrowed one might exist would fork key material across devices.
		return nil, fmt.Errorf("escrow fetch failed: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := v.cache.Put(ctx, key); err != nil {
		return nil, fmt.Errorf("caching fresh key: %w", err)
	}
	if err := v.escrow.Store(ctx, &EscrowedKey{KeyHex: hex.EncodeToString(key), Version: 1}); err != nil {
		v.log.Warn(ctx, "key escrow upload failed, key is cached locally only", "error", err)
	}
	return key, nil
}
