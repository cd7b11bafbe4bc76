// Package storage defines the record and settings stores shared by the local
// SQLite implementation and the in-memory one.
package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

// DateRange bounds ListEntries on the entry date, inclusive on both ends.
// An empty bound is open.
type DateRange struct {
	Start string
	End   string
}

// Contains reports whether the YYYY-MM-DD date falls inside the range
func (r *DateRange) Contains(date string) bool {
	if r == nil {
		return true
	}
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// DataCounts is the number of live records in each collection
type DataCounts struct {
	Challenges int `json:"challengeCount"`
	Entries    int `json:"entryCount"`
}

// Total returns the combined record count
func (c DataCounts) Total() int {
	return c.Challenges + c.Entries
}

// Snapshot is the full contents of a record store
type Snapshot struct {
	Challenges []models.Challenge
	Entries    []models.Entry
}

// Normalized returns a copy with every record's free text normalized
func (s Snapshot) Normalized() Snapshot {
	out := Snapshot{
		Challenges: make([]models.Challenge, len(s.Challenges)),
		Entries:    make([]models.Entry, len(s.Entries)),
	}
	for i, c := range s.Challenges {
		out.Challenges[i] = c.Normalized()
	}
	for i, e := range s.Entries {
		out.Entries[i] = e.Normalized()
	}
	return out
}

// IDMappings lists ids rewritten during a merge import, old id to new id
type IDMappings struct {
	Challenges map[string]string `json:"challenges,omitempty"`
	Entries    map[string]string `json:"entries,omitempty"`
}

// ImportResult reports what ImportAll wrote
type ImportResult struct {
	ChallengesImported int
	EntriesImported    int
	IDMappings         IDMappings
}

// RecordStore holds challenges and entries
type RecordStore interface {
	PutChallenge(models.Challenge) (models.Challenge, error)
	GetChallenge(id string) (models.Challenge, error)
	ListChallenges(includeArchived bool) ([]models.Challenge, error)
	DeleteChallenge(id string) error

	PutEntry(models.Entry) (models.Entry, error)
	GetEntry(id string) (models.Entry, error)
	// ListEntries returns a challenge's entries ordered by date. An empty
	// challengeID lists entries across all challenges.
	ListEntries(challengeID string, dateRange *DateRange) ([]models.Entry, error)
	DeleteEntry(id string) error

	ClearAll() error
	GetDataCounts() (DataCounts, error)
	HasData() (bool, error)

	// Snapshot reads every record in one consistent view
	Snapshot() (Snapshot, error)
	// ImportAll writes already-validated records in one transaction, keeping
	// their timestamps. With replace the store is cleared first; otherwise ids
	// already used by the store are rewritten and reported in IDMappings.
	ImportAll(snapshot Snapshot, replace bool) (ImportResult, error)
}

// SettingsStore persists process-wide flags such as the operating mode
type SettingsStore interface {
	GetSetting(key string) (value string, ok bool, err error)
	SetSetting(key, value string) error
	DeleteSettings(keys ...string) error
}

// Provider is a complete local store
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	RecordStore
	SettingsStore

	// Utils
	GetConfigPath() string
}

// Clock returns the current time. Stores take one so tests can pin it.
type Clock func() time.Time

// NewID returns a fresh record id not rejected by taken
func NewID(taken func(id string) (bool, error)) (string, error) {
	for {
		id := uuid.NewString()
		used, err := taken(id)
		if err != nil {
			return "", err
		}
		if !used {
			return id, nil
		}
	}
}

// Stamp computes the timestamps of an upserted record. An existing record
// keeps its createdAt; updatedAt never decreases and never precedes createdAt.
// A new record keeps a caller-supplied createdAt and otherwise starts at now.
func Stamp(createdAt int64, existing *Timestamps, now int64) Timestamps {
	ts := Timestamps{CreatedAt: createdAt, UpdatedAt: now}
	if existing != nil {
		ts.CreatedAt = existing.CreatedAt
		if existing.UpdatedAt > ts.UpdatedAt {
			ts.UpdatedAt = existing.UpdatedAt
		}
	} else if ts.CreatedAt <= 0 {
		ts.CreatedAt = now
	}
	if ts.UpdatedAt < ts.CreatedAt {
		ts.UpdatedAt = ts.CreatedAt
	}
	return ts
}

// Timestamps is the createdAt/updatedAt pair of a stored record
type Timestamps struct {
	CreatedAt int64
	UpdatedAt int64
}

// RetiredIDError reports a caller-supplied id that belonged to a deleted record
func RetiredIDError(record string) error {
	return errors.NewValidation(record, "id", "was used by a deleted record and cannot be reused")
}

// MissingChallengeError reports an entry whose challenge is not in the store
func MissingChallengeError(e models.Entry) error {
	return errors.NewValidation(e.Label(), "challengeId", "references unknown challenge %q", e.ChallengeID)
}

// CheckSnapshot validates every record of an import and the references
// between them. known reports challenges that already exist in the store.
func CheckSnapshot(snapshot Snapshot, known func(id string) bool) errors.ValidationErrors {
	var errs errors.ValidationErrors
	ids := make(map[string]bool, len(snapshot.Challenges))
	for _, c := range snapshot.Challenges {
		errs = append(errs, c.Validate()...)
		if ids[c.ID] {
			errs = append(errs, errors.NewValidation(c.Label(), "id", "is duplicated"))
		}
		ids[c.ID] = true
	}
	entryIDs := make(map[string]bool, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		errs = append(errs, e.Validate()...)
		if entryIDs[e.ID] {
			errs = append(errs, errors.NewValidation(e.Label(), "id", "is duplicated"))
		}
		entryIDs[e.ID] = true
		if e.ChallengeID != "" && !ids[e.ChallengeID] && (known == nil || !known(e.ChallengeID)) {
			errs = append(errs, errors.NewValidation(e.Label(), "challengeId", "references unknown challenge %q", e.ChallengeID))
		}
	}
	return errs
}
