package sqlite

import (
	"database/sql"
	"strings"

	"github.com/goccy/go-json"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

const entryColumns = `id, challenge_id, date, count, note, feeling, sets, created_at, updated_at`

func scanEntry(row rowScanner) (models.Entry, error) {
	var e models.Entry
	var note, feeling, sets sql.NullString
	err := row.Scan(&e.ID, &e.ChallengeID, &e.Date, &e.Count, &note, &feeling, &sets, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return models.Entry{}, err
	}
	e.Note = note.String
	e.Feeling = models.Feeling(feeling.String)
	if sets.Valid {
		if err := json.Unmarshal([]byte(sets.String), &e.Sets); err != nil {
			return models.Entry{}, err
		}
	}
	return e, nil
}

func encodeSets(sets models.Sets) (sql.NullString, error) {
	if sets == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal([]int(sets))
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func insertEntry(tx *sql.Tx, e models.Entry, upsert bool) error {
	sets, err := encodeSets(e.Sets)
	if err != nil {
		return err
	}
	query := `INSERT INTO entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
			ON CONFLICT(id) DO UPDATE SET
				challenge_id = excluded.challenge_id,
				date = excluded.date,
				count = excluded.count,
				note = excluded.note,
				feeling = excluded.feeling,
				sets = excluded.sets,
				updated_at = excluded.updated_at`
	}
	_, err = tx.Exec(query, e.ID, e.ChallengeID, e.Date, e.Count,
		nullString(e.Note), nullString(string(e.Feeling)), sets, e.CreatedAt, e.UpdatedAt)
	return err
}

// PutEntry upserts an entry. The challenge must already be stored.
func (s *Store) PutEntry(e models.Entry) (models.Entry, error) {
	e = e.Normalized()
	err := s.withTx(func(tx *sql.Tx) error {
		if e.ID == "" {
			id, err := storage.NewID(func(id string) (bool, error) {
				return idTaken(tx, "entries", constants.RetiredCollectionEntries, id)
			})
			if err != nil {
				return err
			}
			e.ID = id
		} else {
			retired, err := isRetired(tx, constants.RetiredCollectionEntries, e.ID)
			if err != nil {
				return err
			}
			if retired {
				return storage.RetiredIDError(e.Label())
			}
		}

		var existing *storage.Timestamps
		var ts storage.Timestamps
		err := tx.QueryRow("SELECT created_at, updated_at FROM entries WHERE id = ?", e.ID).Scan(&ts.CreatedAt, &ts.UpdatedAt)
		switch {
		case err == nil:
			existing = &ts
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		stamped := storage.Stamp(e.CreatedAt, existing, s.millis())
		e.CreatedAt, e.UpdatedAt = stamped.CreatedAt, stamped.UpdatedAt

		if errs := e.Validate(); len(errs) > 0 {
			return errs
		}

		found, err := exists(tx, "SELECT count(*) FROM challenges WHERE id = ?", e.ChallengeID)
		if err != nil {
			return err
		}
		if !found {
			return storage.MissingChallengeError(e)
		}

		return insertEntry(tx, e, true)
	})
	if err != nil {
		if errors.Is(err, errors.ErrValidation) {
			return models.Entry{}, err
		}
		return models.Entry{}, errors.NewStorage("put entry", err)
	}

	logger.Debug("Stored entry", "id", e.ID, "challenge", e.ChallengeID)
	return e, nil
}

func (s *Store) GetEntry(id string) (models.Entry, error) {
	e, err := scanEntry(s.db.QueryRow("SELECT "+entryColumns+" FROM entries WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Entry{}, &errors.NotFoundError{Kind: "entry", ID: id}
		}
		return models.Entry{}, errors.NewStorage("get entry", err)
	}
	return e, nil
}

func (s *Store) ListEntries(challengeID string, dateRange *storage.DateRange) ([]models.Entry, error) {
	var where []string
	var args []interface{}
	if challengeID != "" {
		where = append(where, "challenge_id = ?")
		args = append(args, challengeID)
	}
	if dateRange != nil && dateRange.Start != "" {
		where = append(where, "date >= ?")
		args = append(args, dateRange.Start)
	}
	if dateRange != nil && dateRange.End != "" {
		where = append(where, "date <= ?")
		args = append(args, dateRange.End)
	}

	query := "SELECT " + entryColumns + " FROM entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, created_at, id"

	entries, err := queryEntries(s.db, query, args...)
	if err != nil {
		return nil, errors.NewStorage("list entries", err)
	}
	return entries, nil
}

func queryEntries(q queryer, query string, args ...interface{}) ([]models.Entry, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteEntry removes an entry. Deleting an unknown id is a no-op.
func (s *Store) DeleteEntry(id string) error {
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM entries WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		return retire(tx, constants.RetiredCollectionEntries, id, s.millis())
	})
	if err != nil {
		return errors.NewStorage("delete entry", err)
	}
	logger.Debug("Deleted entry", "id", id)
	return nil
}
