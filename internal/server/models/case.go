// Package models defines the server-side stored shapes of docketsync
// records. Unlike the wire shapes, these carry explicit owner scoping.
package models

import (
	"time"

	"github.com/mpavlenko/docketsync/internal/models"
)

// Case is a stored court case. Sensitive fields keep the plain/encrypted
// union from the wire model; the repository maps each union to a pair of
// columns.
type Case struct {
	ID          string
	OwnerID     string
	Plaintiff   models.Field
	Defendant   models.Field
	Title       models.Field
	Details     models.Field
	CreatedAtMs int64
	UpdatedAtMs int64
	Deleted     bool
}

// CaseDate is a stored hearing/deadline. Date stays plaintext for calendar
// indexing.
type CaseDate struct {
	ID          string
	OwnerID     string
	CaseID      string
	Date        string
	Notes       models.Field
	CreatedAtMs int64
	UpdatedAtMs int64
	Deleted     bool
}

// User is an account that owns cases and dates.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// OwnerKey is the escrowed per-owner DEK, hex-encoded, versioned.
type OwnerKey struct {
	OwnerID   string
	KeyHex    string
	Version   int
	CreatedAt time.Time
}
