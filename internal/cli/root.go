package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/julianstephens/tally/internal/archive"
	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/gateway"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/lock"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/mode"
	"github.com/julianstephens/tally/internal/storage"
)

type Context struct {
	Store  storage.Provider
	Config *config.Config
	Modes  *mode.Machine
	Now    func() time.Time
	Out    io.Writer

	// NewGateway overrides the configured remote; tests use it
	NewGateway func() (gateway.Gateway, func(), error)
}

// NewContext wires a context around a loaded or soon-to-be-initialized store
func NewContext(store storage.Provider, cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Context{
		Store:  store,
		Config: cfg,
		Modes:  mode.New(store),
		Now:    time.Now,
		Out:    os.Stdout,
	}
}

func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.Out, args...)
}

// Backups returns a backup manager for the current database
func (c *Context) Backups() *backup.Manager {
	mgr := backup.NewManager(c.Store.GetConfigPath(), c.Config.Backups.Max)
	mgr.SetClock(c.Now)
	return mgr
}

// Codec returns an archive codec stamped with the configured source
func (c *Context) Codec() *archive.Codec {
	return archive.NewCodec(c.Config.Source(), archive.WithClock(c.Now))
}

// PerformAutomaticBackup snapshots the database and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if _, err := c.Backups().CreateSnapshot(); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// RequireLocal refuses to touch local records once the device is synced
func (c *Context) RequireLocal() error {
	current, err := c.Modes.Mode()
	if err != nil {
		return err
	}
	if current == mode.Synced {
		return fmt.Errorf("this device is synced; challenges and entries live on the sync server now")
	}
	return nil
}

// EnsureLocal is RequireLocal for writes. An undecided device becomes local-only
// on its first local write.
func (c *Context) EnsureLocal() error {
	if err := c.RequireLocal(); err != nil {
		return err
	}
	return c.Modes.SetModeIfUnset(mode.LocalOnly)
}

// Mutate runs fn while holding the single-writer lock
func (c *Context) Mutate(fn func() error) error {
	l, err := lock.Acquire(lock.PathFor(c.Store.GetConfigPath()))
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			logger.Warn("Failed to release lock", "error", err)
		}
	}()
	return fn()
}

// Token returns the bearer token, preferring TALLY_TOKEN over the keyring
func (c *Context) Token() (string, error) {
	if c.Config.Token != "" {
		return c.Config.Token, nil
	}
	token, err := keyring.GetToken()
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", fmt.Errorf("no bearer token; run 'tally auth set-token' or set TALLY_TOKEN")
		}
		return "", err
	}
	return token, nil
}

// Gateway opens the configured remote. The returned func releases it.
func (c *Context) Gateway() (gateway.Gateway, func(), error) {
	if c.NewGateway != nil {
		return c.NewGateway()
	}

	remote := c.Config.Remote
	switch remote.Driver {
	case config.DriverPostgres:
		pg, err := gateway.OpenPostgres(remote.DSN, remote.UserID)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	default:
		token, err := c.Token()
		if err != nil {
			return nil, nil, err
		}
		h, err := gateway.NewHTTP(gateway.HTTPConfig{BaseURL: remote.URL, Token: token, Gzip: remote.Gzip})
		if err != nil {
			return nil, nil, err
		}
		return h, func() {}, nil
	}
}

// Engine builds a migration engine against the configured remote
func (c *Context) Engine() (*migration.Engine, func(), error) {
	remote, release, err := c.Gateway()
	if err != nil {
		return nil, nil, err
	}
	engine := migration.New(c.Store, c.Modes, c.Codec(), remote, migration.WithTimeout(c.Config.Remote.Timeout))
	return engine, release, nil
}
