package sync

import (
	"fmt"

	clientmodels "github.com/mpavlenko/docketsync/internal/client/models"
	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/models"
	"github.com/mpavlenko/docketsync/internal/vault"
)

// outField envelopes a non-empty value when a key is present, otherwise
// passes plaintext through.
func outField(value string, key []byte) (models.Field, error) {
	if key == nil || value == "" {
		return models.PlainField(value), nil
	}
	env, err := vault.EncryptField(value, key)
	if err != nil {
		return models.Field{}, err
	}
	return models.EncryptedField(env), nil
}

// inField opens an envelope arriving from the server. An envelope with no
// key to open it is unreadable on this device.
func inField(f models.Field, key []byte) (string, error) {
	if f.Enc == nil {
		return f.Plain, nil
	}
	if key == nil {
		return "", fmt.Errorf("%w: no key for enveloped field", common.ErrDecryption)
	}
	return vault.DecryptField(f.Enc, key)
}

func outCase(c *clientmodels.Case, key []byte) (*models.Case, error) {
	w := &models.Case{
		ID:          c.ID,
		CreatedAtMs: c.CreatedAtMs,
		UpdatedAtMs: c.UpdatedAtMs,
		Deleted:     c.Deleted,
	}
	var err error
	if w.Plaintiff, err = outField(c.Plaintiff, key); err != nil {
		return nil, err
	}
	if w.Defendant, err = outField(c.Defendant, key); err != nil {
		return nil, err
	}
	if w.Title, err = outField(c.Title, key); err != nil {
		return nil, err
	}
	if w.Details, err = outField(c.Details, key); err != nil {
		return nil, err
	}
	return w, nil
}

func inCase(w *models.Case, key []byte) (*clientmodels.Case, error) {
	c := &clientmodels.Case{
		ID:          w.ID,
		CreatedAtMs: w.CreatedAtMs,
		UpdatedAtMs: w.UpdatedAtMs,
		Deleted:     w.Deleted,
	}
	var err error
	if c.Plaintiff, err = inField(w.Plaintiff, key); err != nil {
		return nil, err
	}
	if c.Defendant, err = inField(w.Defendant, key); err != nil {
		return nil, err
	}
	if c.Title, err = inField(w.Title, key); err != nil {
		return nil, err
	}
	if c.Details, err = inField(w.Details, key); err != nil {
		return nil, err
	}
	return c, nil
}

func outDate(d *clientmodels.CaseDate, key []byte) (*models.CaseDate, error) {
	w := &models.CaseDate{
		ID:          d.ID,
		CaseID:      d.CaseID,
		Date:        d.Date, // calendar dates stay plaintext
		CreatedAtMs: d.CreatedAtMs,
		UpdatedAtMs: d.UpdatedAtMs,
		Deleted:     d.Deleted,
	}
	var err error
	if w.Notes, err = outField(d.Notes, key); err != nil {
		return nil, err
	}
	return w, nil
}

func inDate(w *models.CaseDate, key []byte) (*clientmodels.CaseDate, error) {
	d := &clientmodels.CaseDate{
		ID:          w.ID,
		CaseID:      w.CaseID,
		Date:        w.Date,
		CreatedAtMs: w.CreatedAtMs,
		UpdatedAtMs: w.UpdatedAtMs,
		Deleted:     w.Deleted,
	}
	var err error
	if d.Notes, err = inField(w.Notes, key); err != nil {
		return nil, err
	}
	return d, nil
}
