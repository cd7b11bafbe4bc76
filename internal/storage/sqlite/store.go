package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migrations"
	"github.com/julianstephens/tally/internal/schema"
	"github.com/julianstephens/tally/internal/storage"
)

// Every write is synced before the transaction returns
const pragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"

type Store struct {
	path string
	db   *sql.DB
	now  storage.Clock
}

var _ storage.Provider = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{
		path: path,
		now:  time.Now,
	}
}

// SetClock replaces the time source used to stamp records
func (s *Store) SetClock(clock storage.Clock) {
	s.now = clock
}

func (s *Store) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := s.open(); err != nil {
		return err
	}

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'tally init' first")
	}

	if err := s.open(); err != nil {
		return err
	}

	runner := schema.NewRunner(s.db, migrations.SQLite(), schema.DialectSQLite)
	if err := runner.ValidateVersion(); err != nil {
		return err
	}
	complete, err := runner.IsComplete()
	if err != nil {
		return err
	}
	if !complete {
		// An older binary's database; bring it forward
		return s.runMigrations()
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) open() error {
	db, err := sql.Open("sqlite", s.path+pragmas)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writes linearized in call order
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

func (s *Store) runMigrations() error {
	runner := schema.NewRunner(s.db, migrations.SQLite(), schema.DialectSQLite)
	_, err := runner.ApplyMigrations(func(msg string) {
		logger.Debug(msg)
	})
	return err
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying database connection.
// Returns nil if the database has not been initialized or loaded.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

func (s *Store) millis() int64 {
	return s.now().UnixMilli()
}

// withTx runs fn in a transaction, committing only when fn succeeds
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func exists(q queryer, query string, args ...interface{}) (bool, error) {
	var n int
	if err := q.QueryRow(query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func isRetired(q queryer, collection, id string) (bool, error) {
	return exists(q, "SELECT count(*) FROM retired_ids WHERE collection = ? AND id = ?", collection, id)
}

func retire(tx *sql.Tx, collection, id string, at int64) error {
	_, err := tx.Exec("INSERT OR IGNORE INTO retired_ids (collection, id, retired_at) VALUES (?, ?, ?)", collection, id, at)
	return err
}

// idTaken reports whether id is live in table or was retired from it
func idTaken(q queryer, table, collection, id string) (bool, error) {
	live, err := exists(q, "SELECT count(*) FROM "+table+" WHERE id = ?", id)
	if err != nil || live {
		return live, err
	}
	return isRetired(q, collection, id)
}
