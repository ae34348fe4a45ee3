// Package models defines the wire shapes shared by the server reconciler and
// the client orchestrator: Case and CaseDate records, the plain/encrypted
// field union, and the pull/push change-set bodies.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/mpavlenko/docketsync/internal/common"
)

// Field length limits enforced at push time. Limits apply to plaintext
// values; enveloped fields are checked after decryption on the client side
// and passed through by the server.
const (
	MaxPartyNameLen = 50
	MaxTitleLen     = 100
	MaxDetailsLen   = 200
	MaxNotesLen     = 200
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Case is a court case record. Owner scoping is implicit: the owner comes
// from the authenticated channel and never appears on the wire.
type Case struct {
	ID          string
	Plaintiff   Field
	Defendant   Field
	Title       Field
	Details     Field
	CreatedAtMs int64
	UpdatedAtMs int64
	Deleted     bool
}

// CaseDate is a hearing or deadline tied to a Case. Date stays plaintext so
// calendars can be indexed without decryption. Photo attachments are
// local-only and never cross the wire.
type CaseDate struct {
	ID          string
	CaseID      string
	Date        string
	Notes       Field
	CreatedAtMs int64
	UpdatedAtMs int64
	Deleted     bool
}

// caseWire is the JSON shape of a Case. Each sensitive field occupies either
// its plaintext key or its <field>Enc key, never both.
type caseWire struct {
	ID           string    `json:"id"`
	Plaintiff    *string   `json:"plaintiff,omitempty"`
	PlaintiffEnc *Envelope `json:"plaintiffEnc,omitempty"`
	Defendant    *string   `json:"defendant,omitempty"`
	DefendantEnc *Envelope `json:"defendantEnc,omitempty"`
	Title        *string   `json:"title,omitempty"`
	TitleEnc     *Envelope `json:"titleEnc,omitempty"`
	Details      *string   `json:"details,omitempty"`
	DetailsEnc   *Envelope `json:"detailsEnc,omitempty"`
	CreatedAtMs  Millis    `json:"createdAtMs,omitempty"`
	UpdatedAtMs  Millis    `json:"updatedAtMs,omitempty"`
	Deleted      bool      `json:"deleted,omitempty"`
}

type dateWire struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"caseId"`
	Date        string    `json:"date"`
	Notes       *string   `json:"notes,omitempty"`
	NotesEnc    *Envelope `json:"notesEnc,omitempty"`
	CreatedAtMs Millis    `json:"createdAtMs,omitempty"`
	UpdatedAtMs Millis    `json:"updatedAtMs,omitempty"`
	Deleted     bool      `json:"deleted,omitempty"`
}

func fieldToWire(f Field) (*string, *Envelope) {
	if f.Enc != nil {
		return nil, f.Enc
	}
	p := f.Plain
	return &p, nil
}

func fieldFromWire(plain *string, enc *Envelope) Field {
	if enc != nil {
		return EncryptedField(enc)
	}
	if plain != nil {
		return PlainField(*plain)
	}
	return PlainField("")
}

func (c Case) MarshalJSON() ([]byte, error) {
	w := caseWire{
		ID:          c.ID,
		CreatedAtMs: Millis(c.CreatedAtMs),
		UpdatedAtMs: Millis(c.UpdatedAtMs),
		Deleted:     c.Deleted,
	}
	w.Plaintiff, w.PlaintiffEnc = fieldToWire(c.Plaintiff)
	w.Defendant, w.DefendantEnc = fieldToWire(c.Defendant)
	w.Title, w.TitleEnc = fieldToWire(c.Title)
	w.Details, w.DetailsEnc = fieldToWire(c.Details)
	return json.Marshal(w)
}

func (c *Case) UnmarshalJSON(b []byte) error {
	var w caseWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	c.ID = w.ID
	c.Plaintiff = fieldFromWire(w.Plaintiff, w.PlaintiffEnc)
	c.Defendant = fieldFromWire(w.Defendant, w.DefendantEnc)
	c.Title = fieldFromWire(w.Title, w.TitleEnc)
	c.Details = fieldFromWire(w.Details, w.DetailsEnc)
	c.CreatedAtMs = int64(w.CreatedAtMs)
	c.UpdatedAtMs = int64(w.UpdatedAtMs)
	c.Deleted = w.Deleted
	return nil
}

func (d CaseDate) MarshalJSON() ([]byte, error) {
	w := dateWire{
		ID:          d.ID,
		CaseID:      d.CaseID,
		Date:        d.Date,
		CreatedAtMs: Millis(d.CreatedAtMs),
		UpdatedAtMs: Millis(d.UpdatedAtMs),
		Deleted:     d.Deleted,
	}
	w.Notes, w.NotesEnc = fieldToWire(d.Notes)
	return json.Marshal(w)
}

func (d *CaseDate) UnmarshalJSON(b []byte) error {
	var w dateWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	d.ID = w.ID
	d.CaseID = w.CaseID
	d.Date = w.Date
	d.Notes = fieldFromWire(w.Notes, w.NotesEnc)
	d.CreatedAtMs = int64(w.CreatedAtMs)
	d.UpdatedAtMs = int64(w.UpdatedAtMs)
	d.Deleted = w.Deleted
	return nil
}

// Normalize fills in missing timestamps: an absent/unparseable createdAtMs
// becomes now, an absent updatedAtMs falls back to createdAtMs, and
// updatedAtMs is clamped so it never precedes createdAtMs.
func (c *Case) Normalize(nowMs int64) {
	if c.CreatedAtMs <= 0 {
		c.CreatedAtMs = nowMs
	}
	if c.UpdatedAtMs < c.CreatedAtMs {
		c.UpdatedAtMs = c.CreatedAtMs
	}
}

func (d *CaseDate) Normalize(nowMs int64) {
	if d.CreatedAtMs <= 0 {
		d.CreatedAtMs = nowMs
	}
	if d.UpdatedAtMs < d.CreatedAtMs {
		d.UpdatedAtMs = d.CreatedAtMs
	}
}

func checkLen(name, value string, max int) error {
	if len([]rune(value)) > max {
		return fmt.Errorf("%w: %s exceeds %d characters", common.ErrValidation, name, max)
	}
	return nil
}

// Validate checks required fields and plaintext length limits.
func (c *Case) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrValidation)
	}
	if !c.Plaintiff.Encrypted() {
		if err := checkLen("plaintiff", c.Plaintiff.Plain, MaxPartyNameLen); err != nil {
			return err
		}
	}
	if !c.Defendant.Encrypted() {
		if err := checkLen("defendant", c.Defendant.Plain, MaxPartyNameLen); err != nil {
			return err
		}
	}
	if !c.Title.Encrypted() {
		if err := checkLen("title", c.Title.Plain, MaxTitleLen); err != nil {
			return err
		}
	}
	if !c.Details.Encrypted() {
		if err := checkLen("details", c.Details.Plain, MaxDetailsLen); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks required fields, the calendar date format, and plaintext
// length limits.
func (d *CaseDate) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrValidation)
	}
	if d.CaseID == "" {
		return fmt.Errorf("%w: missing caseId", common.ErrValidation)
	}
	if !dateRe.MatchString(d.Date) {
		return fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", common.ErrValidation, d.Date)
	}
	if !d.Notes.Encrypted() {
		if err := checkLen("notes", d.Notes.Plain, MaxNotesLen); err != nil {
			return err
		}
	}
	return nil
}
