package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/dbx"
)

// Metadata keys used by the client.
const (
	MetaLastPulledAt = "last_pulled_at"
	MetaAccessToken  = "access_token"
	MetaUsername     = "username"
	MetaOwnerKey     = "owner_key"
	MetaKeyVersion   = "owner_key_version"
)

// MetaStore is a small key/value table for sync state: cursor, session token,
// cached owner key.
type MetaStore struct {
	db dbx.DBTX
}

// Get returns the value for key or common.ErrNotFound.
func (s *MetaStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	return value, err
}

// GetInt64 returns the value for key parsed as an integer, or 0 when the key
// is missing or malformed.
func (s *MetaStore) GetInt64(ctx context.Context, key string) (int64, error) {
	value, err := s.Get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *MetaStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *MetaStore) SetInt64(ctx context.Context, key string, value int64) error {
	return s.Set(ctx, key, strconv.FormatInt(value, 10))
}

func (s *MetaStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM metadata WHERE key = ?", key)
	return err
}
