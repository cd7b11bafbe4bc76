package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/cli/backups"
	"github.com/julianstephens/tally/internal/cli/records"
	"github.com/julianstephens/tally/internal/cli/sync"
	"github.com/julianstephens/tally/internal/cli/system"
	"github.com/julianstephens/tally/internal/cli/transfer"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

// App is the command tree
type App struct {
	Version kong.VersionFlag
	DB      string `name:"db" help:"Path to the local database." type:"string" default:"${default_db}" env:"TALLY_DB"`
	Config  string `help:"Config file path. Defaults to config.yaml next to the database." type:"string"`
	Debug   bool   `help:"Log debug output to stderr."`

	Init   system.InitCmd   `cmd:"" help:"Initialize tally storage."`
	Doctor system.DoctorCmd `cmd:"" help:"Run health checks and diagnostics."`
	Mode   struct {
		Show  system.ModeShowCmd  `cmd:"" help:"Show the operating mode." default:"1"`
		Local system.ModeLocalCmd `cmd:"" help:"Keep data on this device."`
	} `cmd:"" help:"Show or choose the operating mode."`

	Challenge struct {
		Add     records.ChallengeAddCmd     `cmd:"" help:"Add a challenge."`
		List    records.ChallengeListCmd    `cmd:"" help:"List challenges." default:"1"`
		Show    records.ChallengeShowCmd    `cmd:"" help:"Show a challenge and its recent entries."`
		Archive records.ChallengeArchiveCmd `cmd:"" help:"Archive or unarchive a challenge."`
		Delete  records.ChallengeDeleteCmd  `cmd:"" help:"Delete a challenge and its entries."`
	} `cmd:"" help:"Manage challenges."`
	Entry struct {
		Add    records.EntryAddCmd    `cmd:"" help:"Log an entry."`
		List   records.EntryListCmd   `cmd:"" help:"List entries."`
		Delete records.EntryDeleteCmd `cmd:"" help:"Delete an entry."`
	} `cmd:"" help:"Manage entries."`
	Stats records.StatsCmd `cmd:"" help:"Show progress toward each challenge."`

	Export transfer.ExportCmd `cmd:"" help:"Export all records as JSON or CSV."`
	Import transfer.ImportCmd `cmd:"" help:"Import records from a JSON or CSV export."`
	Clear  transfer.ClearCmd  `cmd:"" help:"Delete every local challenge and entry."`

	Backup struct {
		DB      backups.BackupDBCmd      `cmd:"" name:"db" help:"Snapshot the database." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a database snapshot."`
	} `cmd:"" help:"Manage backups."`

	Migrate struct {
		Status sync.MigrateStatusCmd `cmd:"" help:"Compare local data with the sync server." default:"1"`
		Run    sync.MigrateRunCmd    `cmd:"" help:"Move local data to the sync server."`
		Skip   sync.MigrateSkipCmd   `cmd:"" help:"Switch to synced without moving local data."`
	} `cmd:"" help:"Migrate this device to the sync server."`

	Auth struct {
		SetToken system.AuthSetTokenCmd `cmd:"" name:"set-token" help:"Store the sync server token in the OS keyring."`
		Clear    system.AuthClearCmd    `cmd:"" help:"Remove the stored token."`
		Status   system.AuthStatusCmd   `cmd:"" help:"Show where the token comes from." default:"1"`
	} `cmd:"" help:"Manage sync server credentials."`
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func newParser(app *App, stdout io.Writer) (*kong.Kong, error) {
	return kong.New(app,
		kong.Name(constants.AppName),
		kong.Description("Local-first challenge and entry tracker"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":    constants.Version,
			"default_db": constants.DefaultConfigPath,
		},
		kong.Writers(stdout, os.Stderr),
	)
}

// execute wires logging, configuration and the local store around the
// selected command
func execute(app *App, kctx *kong.Context, stdout io.Writer) error {
	dbPath := expandHome(app.DB)
	dir := filepath.Dir(dbPath)

	if err := logger.Init(logger.Config{Debug: app.Debug, ConfigDir: dir}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(expandHome(app.Config), dir)
	if err != nil {
		return err
	}

	store := sqlite.NewStore(dbPath)
	defer store.Close()
	appCtx := cli.NewContext(store, cfg)
	appCtx.Out = stdout

	// Init handles its own loading; doctor reports a missing database itself
	if cmd := kctx.Command(); cmd != "init" && cmd != "doctor" {
		if err := store.Load(); err != nil {
			return err
		}
	}
	return kctx.Run(appCtx)
}

func main() {
	var app App
	parser, err := newParser(&app, os.Stdout)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := execute(&app, kctx, os.Stdout); err != nil {
		errors.Fatal(err)
	}
}
