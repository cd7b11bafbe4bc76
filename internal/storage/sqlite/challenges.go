package sqlite

import (
	"database/sql"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

const challengeColumns = `id, name, target_number, year, color, icon, timeframe_unit,
	start_date, end_date, is_public, archived, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChallenge(row rowScanner) (models.Challenge, error) {
	var c models.Challenge
	var timeframe string
	var startDate, endDate sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.TargetNumber, &c.Year, &c.Color, &c.Icon, &timeframe,
		&startDate, &endDate, &c.IsPublic, &c.Archived, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return models.Challenge{}, err
	}
	c.TimeframeUnit = models.TimeframeUnit(timeframe)
	c.StartDate = startDate.String
	c.EndDate = endDate.String
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) PutChallenge(c models.Challenge) (models.Challenge, error) {
	c = c.Normalized()
	err := s.withTx(func(tx *sql.Tx) error {
		if c.ID == "" {
			id, err := storage.NewID(func(id string) (bool, error) {
				return idTaken(tx, "challenges", constants.RetiredCollectionChallenges, id)
			})
			if err != nil {
				return err
			}
			c.ID = id
		} else {
			retired, err := isRetired(tx, constants.RetiredCollectionChallenges, c.ID)
			if err != nil {
				return err
			}
			if retired {
				return storage.RetiredIDError(c.Label())
			}
		}

		var existing *storage.Timestamps
		var ts storage.Timestamps
		err := tx.QueryRow("SELECT created_at, updated_at FROM challenges WHERE id = ?", c.ID).Scan(&ts.CreatedAt, &ts.UpdatedAt)
		switch {
		case err == nil:
			existing = &ts
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		stamped := storage.Stamp(c.CreatedAt, existing, s.millis())
		c.CreatedAt, c.UpdatedAt = stamped.CreatedAt, stamped.UpdatedAt

		if errs := c.Validate(); len(errs) > 0 {
			return errs
		}

		_, err = tx.Exec(`
			INSERT INTO challenges (`+challengeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				target_number = excluded.target_number,
				year = excluded.year,
				color = excluded.color,
				icon = excluded.icon,
				timeframe_unit = excluded.timeframe_unit,
				start_date = excluded.start_date,
				end_date = excluded.end_date,
				is_public = excluded.is_public,
				archived = excluded.archived,
				updated_at = excluded.updated_at`,
			c.ID, c.Name, c.TargetNumber, c.Year, c.Color, c.Icon, string(c.TimeframeUnit),
			nullString(c.StartDate), nullString(c.EndDate), c.IsPublic, c.Archived, c.CreatedAt, c.UpdatedAt)
		return err
	})
	if err != nil {
		if errors.Is(err, errors.ErrValidation) {
			return models.Challenge{}, err
		}
		return models.Challenge{}, errors.NewStorage("put challenge", err)
	}

	logger.Debug("Stored challenge", "id", c.ID)
	return c, nil
}

func (s *Store) GetChallenge(id string) (models.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRow("SELECT "+challengeColumns+" FROM challenges WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Challenge{}, &errors.NotFoundError{Kind: "challenge", ID: id}
		}
		return models.Challenge{}, errors.NewStorage("get challenge", err)
	}
	return c, nil
}

func (s *Store) ListChallenges(includeArchived bool) ([]models.Challenge, error) {
	query := "SELECT " + challengeColumns + " FROM challenges"
	if !includeArchived {
		query += " WHERE archived = 0"
	}
	query += " ORDER BY created_at, id"

	challenges, err := queryChallenges(s.db, query)
	if err != nil {
		return nil, errors.NewStorage("list challenges", err)
	}
	return challenges, nil
}

func queryChallenges(q queryer, query string, args ...interface{}) ([]models.Challenge, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	challenges := []models.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// DeleteChallenge removes the challenge and its entries in one transaction.
// Deleting an unknown id is a no-op.
func (s *Store) DeleteChallenge(id string) error {
	removed := 0
	err := s.withTx(func(tx *sql.Tx) error {
		found, err := exists(tx, "SELECT count(*) FROM challenges WHERE id = ?", id)
		if err != nil || !found {
			return err
		}

		now := s.millis()
		rows, err := tx.Query("SELECT id FROM entries WHERE challenge_id = ?", id)
		if err != nil {
			return err
		}
		var entryIDs []string
		for rows.Next() {
			var entryID string
			if err := rows.Scan(&entryID); err != nil {
				rows.Close()
				return err
			}
			entryIDs = append(entryIDs, entryID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, entryID := range entryIDs {
			if err := retire(tx, constants.RetiredCollectionEntries, entryID, now); err != nil {
				return err
			}
		}
		if err := retire(tx, constants.RetiredCollectionChallenges, id, now); err != nil {
			return err
		}

		if _, err := tx.Exec("DELETE FROM entries WHERE challenge_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM challenges WHERE id = ?", id); err != nil {
			return err
		}
		removed = len(entryIDs)
		return nil
	})
	if err != nil {
		return errors.NewStorage("delete challenge", err)
	}

	logger.Debug("Deleted challenge", "id", id, "entries", removed)
	return nil
}
