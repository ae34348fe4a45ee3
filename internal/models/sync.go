package models

// CaseChanges is one entity type's slice of a change set.
type CaseChanges struct {
	Created []*Case  `json:"created"`
	Updated []*Case  `json:"updated"`
	Deleted []string `json:"deleted"`
}

type DateChanges struct {
	Created []*CaseDate `json:"created"`
	Updated []*CaseDate `json:"updated"`
	Deleted []string    `json:"deleted"`
}

// Changes is the change set exchanged by both pull and push.
type Changes struct {
	Cases     CaseChanges `json:"cases"`
	CaseDates DateChanges `json:"case_dates"`
}

// NewChanges returns a change set with empty (non-nil) lists so it
// marshals as arrays, never null.
func NewChanges() *Changes {
	return &Changes{
		Cases: CaseChanges{
			Created: []*Case{},
			Updated: []*Case{},
			Deleted: []string{},
		},
		CaseDates: DateChanges{
			Created: []*CaseDate{},
			Updated: []*CaseDate{},
			Deleted: []string{},
		},
	}
}

// CaseTotal returns the number of case changes of all kinds.
func (c *Changes) CaseTotal() int {
	return len(c.Cases.Created) + len(c.Cases.Updated) + len(c.Cases.Deleted)
}

// DateTotal returns the number of case-date changes of all kinds.
func (c *Changes) DateTotal() int {
	return len(c.CaseDates.Created) + len(c.CaseDates.Updated) + len(c.CaseDates.Deleted)
}

// MaxArrayLen returns the length of the longest per-type array in the set.
func (c *Changes) MaxArrayLen() int {
	m := 0
	for _, n := range []int{
		len(c.Cases.Created), len(c.Cases.Updated), len(c.Cases.Deleted),
		len(c.CaseDates.Created), len(c.CaseDates.Updated), len(c.CaseDates.Deleted),
	} {
		if n > m {
			m = n
		}
	}
	return m
}

// Empty reports whether the set carries no changes at all.
func (c *Changes) Empty() bool {
	return c.CaseTotal() == 0 && c.DateTotal() == 0
}

type PullRequest struct {
	LastPulledAt Millis `json:"last_pulled_at"`
}

type PullResponse struct {
	Changes   Changes `json:"changes"`
	Timestamp int64   `json:"timestamp"`
}

type PushRequest struct {
	Changes Changes `json:"changes"`
}

// Skip names one record a push did not apply, with a machine-readable reason.
type Skip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Skip reasons reported in the optional push acknowledgement.
const (
	SkipValidation  = "validation"
	SkipQuota       = "quota"
	SkipReferential = "referential_integrity"
	SkipNotFound    = "not_found"
	SkipConflict    = "ordering_conflict"
)

// EntityReport is the per-entity part of a push acknowledgement.
type EntityReport struct {
	Applied []string `json:"applied"`
	Skipped []Skip   `json:"skipped,omitempty"`
}

// PushReport is the optional per-record acknowledgement a push can return.
// Legacy clients ignore it; the response stays {ok:true} when reporting is
// disabled server-side.
type PushReport struct {
	Cases     EntityReport `json:"cases"`
	CaseDates EntityReport `json:"case_dates"`
}

type PushResponse struct {
	OK      bool        `json:"ok"`
	Applied *PushReport `json:"applied,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// KeyPayload is the wire shape of the escrowed owner key.
type KeyPayload struct {
	KeyHex  string `json:"key_hex"`
	Version int    `json:"version"`
}

// Credentials is the register/login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the login response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}
