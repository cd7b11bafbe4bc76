// Package memory is an in-process record and settings store. It keeps the
// same upsert, cascade and id rules as the SQLite store and is used by tests
// and ephemeral sessions.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

type Store struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
	entries    map[string]models.Entry
	retired    map[string]map[string]bool
	settings   map[string]string
	now        storage.Clock

	// FailClear makes ClearAll fail, simulating a storage fault
	FailClear error
	// FailSettings makes SetSetting fail, simulating a storage fault
	FailSettings error
}

var _ storage.Provider = (*Store)(nil)

func NewStore() *Store {
	s := &Store{now: time.Now}
	s.reset()
	s.settings = map[string]string{}
	return s
}

func (s *Store) reset() {
	s.challenges = map[string]models.Challenge{}
	s.entries = map[string]models.Entry{}
	s.retired = map[string]map[string]bool{"challenges": {}, "entries": {}}
}

// SetClock replaces the time source used to stamp records
func (s *Store) SetClock(clock storage.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = clock
}

func (s *Store) Init() error           { return nil }
func (s *Store) Load() error           { return nil }
func (s *Store) Close() error          { return nil }
func (s *Store) GetConfigPath() string { return ":memory:" }

func (s *Store) millis() int64 {
	return s.now().UnixMilli()
}

func (s *Store) taken(collection, id string) bool {
	if s.retired[collection][id] {
		return true
	}
	if collection == "challenges" {
		_, ok := s.challenges[id]
		return ok
	}
	_, ok := s.entries[id]
	return ok
}

func (s *Store) newID(collection string) string {
	id, _ := storage.NewID(func(id string) (bool, error) {
		return s.taken(collection, id), nil
	})
	return id
}

func (s *Store) PutChallenge(c models.Challenge) (models.Challenge, error) {
	c = c.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.newID("challenges")
	} else if s.retired["challenges"][c.ID] {
		return models.Challenge{}, storage.RetiredIDError(c.Label())
	}

	var existing *storage.Timestamps
	if old, ok := s.challenges[c.ID]; ok {
		existing = &storage.Timestamps{CreatedAt: old.CreatedAt, UpdatedAt: old.UpdatedAt}
	}
	ts := storage.Stamp(c.CreatedAt, existing, s.millis())
	c.CreatedAt, c.UpdatedAt = ts.CreatedAt, ts.UpdatedAt

	if errs := c.Validate(); len(errs) > 0 {
		return models.Challenge{}, errs
	}
	s.challenges[c.ID] = c
	return c, nil
}

func (s *Store) GetChallenge(id string) (models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return models.Challenge{}, &errors.NotFoundError{Kind: "challenge", ID: id}
	}
	return c, nil
}

func (s *Store) ListChallenges(includeArchived bool) ([]models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Challenge{}
	for _, c := range s.challenges {
		if c.Archived && !includeArchived {
			continue
		}
		out = append(out, c)
	}
	sortChallenges(out)
	return out, nil
}

func (s *Store) DeleteChallenge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[id]; !ok {
		return nil
	}
	for entryID, e := range s.entries {
		if e.ChallengeID == id {
			delete(s.entries, entryID)
			s.retired["entries"][entryID] = true
		}
	}
	delete(s.challenges, id)
	s.retired["challenges"][id] = true
	return nil
}

func (s *Store) PutEntry(e models.Entry) (models.Entry, error) {
	e = e.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.newID("entries")
	} else if s.retired["entries"][e.ID] {
		return models.Entry{}, storage.RetiredIDError(e.Label())
	}

	var existing *storage.Timestamps
	if old, ok := s.entries[e.ID]; ok {
		existing = &storage.Timestamps{CreatedAt: old.CreatedAt, UpdatedAt: old.UpdatedAt}
	}
	ts := storage.Stamp(e.CreatedAt, existing, s.millis())
	e.CreatedAt, e.UpdatedAt = ts.CreatedAt, ts.UpdatedAt

	if errs := e.Validate(); len(errs) > 0 {
		return models.Entry{}, errs
	}
	if _, ok := s.challenges[e.ChallengeID]; !ok {
		return models.Entry{}, storage.MissingChallengeError(e)
	}
	e.Sets = append(models.Sets(nil), e.Sets...)
	s.entries[e.ID] = e
	return e, nil
}

func (s *Store) GetEntry(id string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return models.Entry{}, &errors.NotFoundError{Kind: "entry", ID: id}
	}
	return e, nil
}

func (s *Store) ListEntries(challengeID string, dateRange *storage.DateRange) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Entry{}
	for _, e := range s.entries {
		if challengeID != "" && e.ChallengeID != challengeID {
			continue
		}
		if !dateRange.Contains(e.Date) {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (s *Store) DeleteEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		delete(s.entries, id)
		s.retired["entries"][id] = true
	}
	return nil
}

func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailClear != nil {
		return errors.NewStorage("clear all", s.FailClear)
	}
	s.reset()
	return nil
}

func (s *Store) GetDataCounts() (storage.DataCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.DataCounts{Challenges: len(s.challenges), Entries: len(s.entries)}, nil
}

func (s *Store) HasData() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges) > 0 || len(s.entries) > 0, nil
}

func (s *Store) Snapshot() (storage.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := storage.Snapshot{
		Challenges: make([]models.Challenge, 0, len(s.challenges)),
		Entries:    make([]models.Entry, 0, len(s.entries)),
	}
	for _, c := range s.challenges {
		snap.Challenges = append(snap.Challenges, c)
	}
	for _, e := range s.entries {
		snap.Entries = append(snap.Entries, e)
	}
	sortChallenges(snap.Challenges)
	sortEntries(snap.Entries)
	return snap, nil
}

func (s *Store) ImportAll(snapshot storage.Snapshot, replace bool) (storage.ImportResult, error) {
	snapshot = snapshot.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()

	challenges, entries, retired := s.challenges, s.entries, s.retired
	if replace {
		challenges = map[string]models.Challenge{}
		entries = map[string]models.Entry{}
		retired = map[string]map[string]bool{"challenges": {}, "entries": {}}
	}
	if errs := storage.CheckSnapshot(snapshot, func(id string) bool {
		_, ok := challenges[id]
		return ok
	}); len(errs) > 0 {
		return storage.ImportResult{}, errs
	}

	// Build on copies so a failure leaves the store untouched
	next := &Store{
		challenges: copyMap(challenges),
		entries:    copyMap(entries),
		retired: map[string]map[string]bool{
			"challenges": copyMap(retired["challenges"]),
			"entries":    copyMap(retired["entries"]),
		},
	}

	var result storage.ImportResult
	challengeMap := map[string]string{}
	for _, c := range snapshot.Challenges {
		if next.taken("challenges", c.ID) {
			newID := next.newID("challenges")
			challengeMap[c.ID] = newID
			c.ID = newID
		}
		next.challenges[c.ID] = c
		result.ChallengesImported++
	}
	entryMap := map[string]string{}
	for _, e := range snapshot.Entries {
		if mapped, ok := challengeMap[e.ChallengeID]; ok {
			e.ChallengeID = mapped
		}
		if next.taken("entries", e.ID) {
			newID := next.newID("entries")
			entryMap[e.ID] = newID
			e.ID = newID
		}
		next.entries[e.ID] = e
		result.EntriesImported++
	}
	if len(challengeMap) > 0 {
		result.IDMappings.Challenges = challengeMap
	}
	if len(entryMap) > 0 {
		result.IDMappings.Entries = entryMap
	}

	s.challenges, s.entries, s.retired = next.challenges, next.entries, next.retired
	return result, nil
}

func (s *Store) GetSetting(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.settings[key]
	return value, ok, nil
}

func (s *Store) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSettings != nil {
		return errors.NewStorage("set setting", s.FailSettings)
	}
	s.settings[key] = value
	return nil
}

func (s *Store) DeleteSettings(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.settings, key)
	}
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortChallenges(cs []models.Challenge) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].CreatedAt != cs[j].CreatedAt {
			return cs[i].CreatedAt < cs[j].CreatedAt
		}
		return cs[i].ID < cs[j].ID
	})
}

func sortEntries(es []models.Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Date != es[j].Date {
			return es[i].Date < es[j].Date
		}
		if es[i].CreatedAt != es[j].CreatedAt {
			return es[i].CreatedAt < es[j].CreatedAt
		}
		return es[i].ID < es[j].ID
	})
}
