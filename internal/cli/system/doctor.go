package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/lock"
	"github.com/julianstephens/tally/internal/migrations"
	"github.com/julianstephens/tally/internal/mode"
	"github.com/julianstephens/tally/internal/schema"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

type DoctorCmd struct{}

type check struct {
	name string
	run  func(ctx *cli.Context) error
	// needsDB checks are skipped when the database can't be reached
	needsDB bool
	// warnOnly failures don't fail the command
	warnOnly bool
}

var checks = []check{
	{name: "Schema version", run: checkSchemaVersion, needsDB: true},
	{name: "Migrations complete", run: checkMigrationsComplete, needsDB: true},
	{name: "Operating mode", run: checkMode, needsDB: true},
	{name: "Data validation", run: checkValidation, needsDB: true},
	{name: "Lockfile", run: checkLock},
	{name: "Backups present", run: checkBackupsPresent, warnOnly: true},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "Configuration", run: checkConfig},
	{name: "Sync credentials", run: checkCredentials, warnOnly: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := true
	if err := checkDBReachable(ctx); err != nil {
		ctx.Printf("❌ Database reachable: FAIL\n")
		ctx.Printf("   Error: %v\n", err)
		hasError = true
		dbReachable = false
	} else {
		ctx.Printf("✓ Database reachable: OK\n")
	}

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			ctx.Printf("⚠ %s: WARNING\n", c.name)
			ctx.Printf("   %v\n", err)
		default:
			ctx.Printf("❌ %s: FAIL\n", c.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Some checks failed.")
		return errors.New("diagnostics failed")
	}
	ctx.Println("All checks passed.")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	if sqliteStore, ok := ctx.Store.(*sqlite.Store); ok {
		db := sqliteStore.GetDB()
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func schemaRunner(ctx *cli.Context) (*schema.Runner, error) {
	sqliteStore, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return nil, nil
	}
	db := sqliteStore.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return schema.NewRunner(db, migrations.SQLite(), schema.DialectSQLite), nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	runner, err := schemaRunner(ctx)
	if err != nil || runner == nil {
		return err
	}
	return runner.ValidateVersion()
}

func checkMigrationsComplete(ctx *cli.Context) error {
	runner, err := schemaRunner(ctx)
	if err != nil || runner == nil {
		return err
	}
	current, err := runner.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}
	latest, err := runner.GetLatestVersion()
	if err != nil {
		return fmt.Errorf("failed to get latest schema version: %w", err)
	}
	if current < latest {
		return fmt.Errorf("schema is at version %d, latest is %d - run any tally command to migrate", current, latest)
	}
	return nil
}

func checkMode(ctx *cli.Context) error {
	current, err := ctx.Modes.Mode()
	if err != nil {
		return err
	}
	done, err := ctx.Modes.IsMigrationCompleted()
	if err != nil {
		return err
	}
	if done && current != mode.Synced {
		return fmt.Errorf("migration is marked complete but mode is %s", current)
	}
	return nil
}

func checkValidation(ctx *cli.Context) error {
	snapshot, err := ctx.Store.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	if errs := storage.CheckSnapshot(snapshot, nil); len(errs) > 0 {
		return errs
	}
	return nil
}

func checkLock(ctx *cli.Context) error {
	holder, err := lock.Inspect(lock.PathFor(ctx.Store.GetConfigPath()))
	if err != nil {
		return fmt.Errorf("lockfile is unreadable: %w", err)
	}
	if holder != nil {
		return holder
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	backups, err := ctx.Backups().ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'tally backup db'")
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	now := ctx.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkConfig(ctx *cli.Context) error {
	return ctx.Config.Validate()
}

func checkCredentials(ctx *cli.Context) error {
	if ctx.Config.Remote.Driver == config.DriverPostgres {
		if ctx.Config.Remote.DSN == "" {
			return fmt.Errorf("remote.dsn is not set")
		}
		return nil
	}
	if ctx.Config.Token != "" {
		return nil
	}
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; set TALLY_TOKEN to sync")
	}
	if _, err := keyring.GetToken(); err != nil {
		return fmt.Errorf("no sync token stored - run 'tally auth set-token'")
	}
	return nil
}
