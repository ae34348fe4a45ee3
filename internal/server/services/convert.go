package services

import (
	"github.com/mpavlenko/docketsync/internal/models"
	srvmodels "github.com/mpavlenko/docketsync/internal/server/models"
	"github.com/mpavlenko/docketsync/internal/vault"
)

func storedCase(ownerID string, c *models.Case) *srvmodels.Case {
	return &srvmodels.Case{
		ID:          c.ID,
		OwnerID:     ownerID,
		Plaintiff:   c.Plaintiff,
		Defendant:   c.Defendant,
		Title:       c.Title,
		Details:     c.Details,
		CreatedAtMs: c.CreatedAtMs,
		UpdatedAtMs: c.UpdatedAtMs,
		Deleted:     c.Deleted,
	}
}

func wireCase(c *srvmodels.Case) *models.Case {
	return &models.Case{
		ID:          c.ID,
		Plaintiff:   c.Plaintiff,
		Defendant:   c.Defendant,
		Title:       c.Title,
		Details:     c.Details,
		CreatedAtMs: c.CreatedAtMs,
		UpdatedAtMs: c.UpdatedAtMs,
		Deleted:     c.Deleted,
	}
}

func storedDate(ownerID string, d *models.CaseDate) *srvmodels.CaseDate {
	return &srvmodels.CaseDate{
		ID:          d.ID,
		OwnerID:     ownerID,
		CaseID:      d.CaseID,
		Date:        d.Date,
		Notes:       d.Notes,
		CreatedAtMs: d.CreatedAtMs,
		UpdatedAtMs: d.UpdatedAtMs,
		Deleted:     d.Deleted,
	}
}

func wireDate(d *srvmodels.CaseDate) *models.CaseDate {
	return &models.CaseDate{
		ID:          d.ID,
		CaseID:      d.CaseID,
		Date:        d.Date,
		Notes:       d.Notes,
		CreatedAtMs: d.CreatedAtMs,
		UpdatedAtMs: d.UpdatedAtMs,
		Deleted:     d.Deleted,
	}
}

// encryptField envelopes a non-empty plaintext value in place. Fields that
// arrive already enveloped pass through untouched; an empty value has nothing
// worth hiding and stays plain so the column reads as absent.
func encryptField(f *models.Field, key []byte) error {
	if key == nil || f.Enc != nil || f.Plain == "" {
		return nil
	}
	env, err := vault.EncryptField(f.Plain, key)
	if err != nil {
		return err
	}
	*f = models.EncryptedField(env)
	return nil
}

func encryptCaseFields(c *models.Case, key []byte) error {
	for _, f := range []*models.Field{&c.Plaintiff, &c.Defendant, &c.Title, &c.Details} {
		if err := encryptField(f, key); err != nil {
			return err
		}
	}
	return nil
}

// decryptField opens an envelope in place. With no key the envelope is left
// as-is for the client to open.
func decryptField(f *models.Field, key []byte) error {
	if key == nil || f.Enc == nil {
		return nil
	}
	plain, err := vault.DecryptField(f.Enc, key)
	if err != nil {
		return err
	}
	*f = models.PlainField(plain)
	return nil
}

func decryptCaseFields(c *models.Case, key []byte) error {
	for _, f := range []*models.Field{&c.Plaintiff, &c.Defendant, &c.Title, &c.Details} {
		if err := decryptField(f, key); err != nil {
			return err
		}
	}
	return nil
}
