// Package models defines the client-side stored shapes of docketsync
// records. The local database holds plaintext; envelopes exist only on the
// wire and on the server.
package models

// Sync status of a local row, driving which push list it lands in.
const (
	// StatusCreated marks a row born locally and never pushed.
	StatusCreated = "created"
	// StatusUpdated marks a previously synced row with local edits.
	StatusUpdated = "updated"
	// StatusSynced marks a row the server has acknowledged.
	StatusSynced = "synced"
)

// Case is a locally stored court case.
type Case struct {
	ID          string
	Plaintiff   string
	Defendant   string
	Title       string
	Details     string
	CreatedAtMs int64
	UpdatedAtMs int64
	Deleted     bool
	SyncStatus  string
}

// CaseDate is a locally stored hearing or deadline. PhotoPath points at a
// device-local attachment and never crosses the wire.
type CaseDate struct {
	ID          string
	CaseID      string
	Date        string
	Notes       string
	PhotoPath   string
	CreatedAtMs int64
	UpdatedAtMs int64
	Deleted     bool
	SyncStatus  string
}
