package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migrations"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/schema"
)

var marshalSets = func(sets models.Sets) ([]byte, error) {
	return json.Marshal([]int(sets))
}

// Postgres writes migrations straight into a self-hosted PostgreSQL
// database. Every row is scoped to one account by user_id.
type Postgres struct {
	db     *sql.DB
	userID string
}

var _ Gateway = (*Postgres)(nil)

// NewPostgres wraps an open database. The schema is not touched; call EnsureSchema.
func NewPostgres(db *sql.DB, userID string) (*Postgres, error) {
	if userID == "" {
		return nil, fmt.Errorf("remote.user_id is required for the postgres driver")
	}
	return &Postgres{db: db, userID: userID}, nil
}

// OpenPostgres connects with dsn and brings the schema up to date.
// Passwords belong in PGPASSWORD or ~/.pgpass, never in the DSN.
func OpenPostgres(dsn, userID string) (*Postgres, error) {
	if err := checkDSN(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	p, err := NewPostgres(db, userID)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := p.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// checkDSN rejects connection strings that embed a password
func checkDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("remote.dsn is not configured")
	}
	conn := dsn
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		parsed, err := pq.ParseURL(dsn)
		if err != nil {
			return fmt.Errorf("invalid postgres dsn: %w", err)
		}
		conn = parsed
	}
	for _, field := range strings.Fields(conn) {
		if strings.HasPrefix(field, "password=") {
			return fmt.Errorf("postgres dsn must not contain a password; use PGPASSWORD or ~/.pgpass")
		}
	}
	return nil
}

func (p *Postgres) EnsureSchema() error {
	runner := schema.NewRunner(p.db, migrations.Postgres(), schema.DialectPostgres)
	if err := runner.ValidateVersion(); err != nil {
		return err
	}
	count, err := runner.ApplyMigrations(func(msg string) { logger.Debug(msg) })
	if err != nil {
		return fmt.Errorf("failed to migrate remote schema: %w", err)
	}
	if count > 0 {
		logger.Info("Applied remote schema migrations", "count", count)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Probe(ctx context.Context) (CloudState, error) {
	var state CloudState
	err := p.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM challenges WHERE user_id = $1),
			(SELECT COUNT(*) FROM entries WHERE user_id = $1)`,
		p.userID,
	).Scan(&state.ChallengeCount, &state.EntryCount)
	if err != nil {
		return CloudState{}, classify(ctx, "probe", err)
	}
	state.HasData = state.ChallengeCount > 0 || state.EntryCount > 0
	return state, nil
}

func (p *Postgres) Import(ctx context.Context, sub Submission) (ImportResult, error) {
	if !sub.Strategy.Valid() {
		return ImportResult{}, &errors.RemoteRejectedError{Message: fmt.Sprintf("unknown strategy %q", sub.Strategy)}
	}

	// Encode sets before opening the transaction.
	sets := make([]interface{}, len(sub.Entries))
	for i, e := range sub.Entries {
		if e.Sets == nil {
			continue
		}
		data, err := marshalSets(e.Sets)
		if err != nil {
			return ImportResult{}, errors.NewStorage("encode sets of "+e.Label(), err)
		}
		sets[i] = string(data)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, classify(ctx, "import", err)
	}
	defer tx.Rollback()

	if sub.Strategy == StrategyReplace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE user_id = $1`, p.userID); err != nil {
			return ImportResult{}, classify(ctx, "import", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM challenges WHERE user_id = $1`, p.userID); err != nil {
			return ImportResult{}, classify(ctx, "import", err)
		}
	}

	result := ImportResult{Success: true}
	for _, c := range sub.Challenges {
		n, err := p.insertChallenge(ctx, tx, c)
		if err != nil {
			return ImportResult{}, classify(ctx, "import", err)
		}
		result.ChallengesImported += n
	}
	for i, e := range sub.Entries {
		n, err := p.insertEntry(ctx, tx, e, sets[i])
		if err != nil {
			return ImportResult{}, classify(ctx, "import", err)
		}
		result.EntriesImported += n
	}

	if err := tx.Commit(); err != nil {
		return ImportResult{}, classify(ctx, "import", err)
	}

	logger.For("remote-import").Info("Imported into postgres", "user", p.userID, "strategy", sub.Strategy,
		"challenges", result.ChallengesImported, "entries", result.EntriesImported)
	return result, nil
}

func (p *Postgres) insertChallenge(ctx context.Context, tx *sql.Tx, c models.Challenge) (int, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO challenges (user_id, id, name, target_number, year, color, icon, timeframe_unit,
			start_date, end_date, is_public, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, id) DO NOTHING`,
		p.userID, c.ID, c.Name, c.TargetNumber, c.Year, c.Color, c.Icon, string(c.TimeframeUnit),
		nullable(c.StartDate), nullable(c.EndDate), c.IsPublic, c.Archived, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (p *Postgres) insertEntry(ctx context.Context, tx *sql.Tx, e models.Entry, sets interface{}) (int, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries (user_id, id, challenge_id, date, count, note, feeling, sets, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, id) DO NOTHING`,
		p.userID, e.ID, e.ChallengeID, e.Date, e.Count, nullable(e.Note), nullable(string(e.Feeling)),
		sets, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// classify maps database failures onto the gateway error classes. Server-side
// errors are rejections; anything that never got an answer is a network error.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return &errors.NetworkError{Op: op, Err: ctx.Err()}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &errors.RemoteRejectedError{Message: fmt.Sprintf("%s (%s)", pqErr.Message, pqErr.Code.Name())}
	}
	return &errors.NetworkError{Op: op, Err: err}
}
