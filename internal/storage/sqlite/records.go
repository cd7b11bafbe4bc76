package sqlite

import (
	"database/sql"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

// ClearAll empties both collections and forgets retired ids in one transaction
func (s *Store) ClearAll() error {
	if err := s.withTx(clearTables); err != nil {
		return errors.NewStorage("clear all", err)
	}
	logger.Info("Cleared all local records")
	return nil
}

func clearTables(tx *sql.Tx) error {
	for _, stmt := range []string{
		"DELETE FROM entries",
		"DELETE FROM challenges",
		"DELETE FROM retired_ids",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetDataCounts() (storage.DataCounts, error) {
	var counts storage.DataCounts
	err := s.db.QueryRow("SELECT (SELECT count(*) FROM challenges), (SELECT count(*) FROM entries)").
		Scan(&counts.Challenges, &counts.Entries)
	if err != nil {
		return storage.DataCounts{}, errors.NewStorage("count records", err)
	}
	return counts, nil
}

func (s *Store) HasData() (bool, error) {
	found, err := exists(s.db, "SELECT count(*) FROM (SELECT id FROM challenges LIMIT 1)")
	if err != nil {
		return false, errors.NewStorage("check data", err)
	}
	return found, nil
}

func (s *Store) Snapshot() (storage.Snapshot, error) {
	var snap storage.Snapshot
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		snap.Challenges, err = queryChallenges(tx, "SELECT "+challengeColumns+" FROM challenges ORDER BY created_at, id")
		if err != nil {
			return err
		}
		snap.Entries, err = queryEntries(tx, "SELECT "+entryColumns+" FROM entries ORDER BY date, created_at, id")
		return err
	})
	if err != nil {
		return storage.Snapshot{}, errors.NewStorage("snapshot", err)
	}
	return snap, nil
}

func (s *Store) ImportAll(snapshot storage.Snapshot, replace bool) (storage.ImportResult, error) {
	snapshot = snapshot.Normalized()
	var result storage.ImportResult
	err := s.withTx(func(tx *sql.Tx) error {
		if replace {
			if err := clearTables(tx); err != nil {
				return err
			}
		}

		live, err := liveIDs(tx, "challenges")
		if err != nil {
			return err
		}
		if errs := storage.CheckSnapshot(snapshot, func(id string) bool { return live[id] }); len(errs) > 0 {
			return errs
		}

		challengeMap := map[string]string{}
		for _, c := range snapshot.Challenges {
			taken, err := idTaken(tx, "challenges", constants.RetiredCollectionChallenges, c.ID)
			if err != nil {
				return err
			}
			if taken {
				newID, err := storage.NewID(func(id string) (bool, error) {
					return idTaken(tx, "challenges", constants.RetiredCollectionChallenges, id)
				})
				if err != nil {
					return err
				}
				challengeMap[c.ID] = newID
				c.ID = newID
			}
			if err := insertChallenge(tx, c); err != nil {
				return err
			}
			result.ChallengesImported++
		}

		entryMap := map[string]string{}
		for _, e := range snapshot.Entries {
			if mapped, ok := challengeMap[e.ChallengeID]; ok {
				e.ChallengeID = mapped
			}
			taken, err := idTaken(tx, "entries", constants.RetiredCollectionEntries, e.ID)
			if err != nil {
				return err
			}
			if taken {
				newID, err := storage.NewID(func(id string) (bool, error) {
					return idTaken(tx, "entries", constants.RetiredCollectionEntries, id)
				})
				if err != nil {
					return err
				}
				entryMap[e.ID] = newID
				e.ID = newID
			}
			if err := insertEntry(tx, e, false); err != nil {
				return err
			}
			result.EntriesImported++
		}

		if len(challengeMap) > 0 {
			result.IDMappings.Challenges = challengeMap
		}
		if len(entryMap) > 0 {
			result.IDMappings.Entries = entryMap
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrValidation) {
			return storage.ImportResult{}, err
		}
		return storage.ImportResult{}, errors.NewStorage("import", err)
	}

	logger.Info("Imported records", "challenges", result.ChallengesImported, "entries", result.EntriesImported, "replace", replace)
	return result, nil
}

func insertChallenge(tx *sql.Tx, c models.Challenge) error {
	_, err := tx.Exec(`INSERT INTO challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.TargetNumber, c.Year, c.Color, c.Icon, string(c.TimeframeUnit),
		nullString(c.StartDate), nullString(c.EndDate), c.IsPublic, c.Archived, c.CreatedAt, c.UpdatedAt)
	return err
}

func liveIDs(q queryer, table string) (map[string]bool, error) {
	rows, err := q.Query("SELECT id FROM " + table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
