// Package fieldcol maps the plain/encrypted field union onto its two-column
// storage shape: a plaintext column and an envelope JSON column, exactly one
// of which is non-NULL.
package fieldcol

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mpavlenko/docketsync/internal/models"
)

// ToColumns splits a field into its plaintext and envelope columns.
func ToColumns(f models.Field) (plain sql.NullString, env sql.NullString, err error) {
	if f.Enc != nil {
		b, err := json.Marshal(f.Enc)
		if err != nil {
			return plain, env, fmt.Errorf("marshal envelope: %w", err)
		}
		return sql.NullString{}, sql.NullString{String: string(b), Valid: true}, nil
	}
	return sql.NullString{String: f.Plain, Valid: true}, sql.NullString{}, nil
}

// FromColumns rebuilds a field from its two columns. The envelope column
// wins when both are set; two NULLs decode as an empty plaintext.
func FromColumns(plain, env sql.NullString) (models.Field, error) {
	if env.Valid {
		var e models.Envelope
		if err := json.Unmarshal([]byte(env.String), &e); err != nil {
			return models.Field{}, fmt.Errorf("unmarshal envelope: %w", err)
		}
		return models.EncryptedField(&e), nil
	}
	return models.PlainField(plain.String), nil
}
