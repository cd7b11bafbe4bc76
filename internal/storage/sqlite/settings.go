package sqlite

import (
	"database/sql"

	"github.com/julianstephens/tally/internal/errors"
)

func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.NewStorage("get setting", err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return errors.NewStorage("set setting", err)
}

func (s *Store) DeleteSettings(keys ...string) error {
	err := s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("DELETE FROM settings WHERE key = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, key := range keys {
			if _, err := stmt.Exec(key); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.NewStorage("delete settings", err)
}
