// Package migration moves a local-only device onto the sync server.
//
// The commit order is remote success, then local clear, then mode flip. A
// failure at any point leaves one of three states: nothing changed; cloud
// populated with local data still present; or cloud populated with local data
// cleared and the mode not yet flipped. None of them loses data, and a
// replace-cloud re-run finishes the job from each.
package migration

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/archive"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/gateway"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/mode"
	"github.com/julianstephens/tally/internal/storage"
)

var (
	// ErrAlreadyMigrated is returned when the device is Synced and the migration already ran
	ErrAlreadyMigrated = goerrors.New("device is already synced and migrated")
	// ErrPartialMigration marks a failure after the remote accepted the data
	ErrPartialMigration = goerrors.New("cloud import succeeded but the local finish failed; re-running with replace-cloud is safe")
)

// State is a read-only view used to decide whether and how to migrate
type State struct {
	Mode               mode.Mode          `json:"mode"`
	MigrationCompleted bool               `json:"migrationCompleted"`
	HasLocalData       bool               `json:"hasLocalData"`
	LocalCounts        storage.DataCounts `json:"localCounts"`
	// CloudKnown is false when no probe result was supplied
	CloudKnown   bool               `json:"cloudKnown"`
	HasCloudData bool               `json:"hasCloudData"`
	CloudCounts  storage.DataCounts `json:"cloudCounts"`
}

// NeedsMigration reports whether there is local data left to move
func (s State) NeedsMigration() bool {
	return !(s.Mode == mode.Synced && s.MigrationCompleted) && s.HasLocalData
}

var migrateLog = logger.For("migrate")

// Result describes how a migration attempt ended
type Result struct {
	Success bool
	NewMode mode.Mode
	Import  gateway.ImportResult
	// Transferred is false when there was nothing local to send
	Transferred bool
	Err         error
}

type Option func(*Engine)

// WithTimeout bounds each network call. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// Engine coordinates the record store, mode machine and remote gateway
type Engine struct {
	store   storage.RecordStore
	modes   *mode.Machine
	codec   *archive.Codec
	remote  gateway.Gateway
	timeout time.Duration
}

func New(store storage.RecordStore, modes *mode.Machine, codec *archive.Codec, remote gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{store: store, modes: modes, codec: codec, remote: remote}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) networkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// CheckState summarises local and (optionally) cloud data. It performs no writes.
func (e *Engine) CheckState(cloud *gateway.CloudState) (State, error) {
	var state State

	current, err := e.modes.Mode()
	if err != nil {
		return state, err
	}
	done, err := e.modes.IsMigrationCompleted()
	if err != nil {
		return state, err
	}
	counts, err := e.store.GetDataCounts()
	if err != nil {
		return state, err
	}

	state.Mode = current
	state.MigrationCompleted = done
	state.LocalCounts = counts
	state.HasLocalData = counts.Total() > 0
	if cloud != nil {
		state.CloudKnown = true
		state.HasCloudData = cloud.HasData || cloud.ChallengeCount > 0 || cloud.EntryCount > 0
		state.CloudCounts = storage.DataCounts{Challenges: cloud.ChallengeCount, Entries: cloud.EntryCount}
	}
	return state, nil
}

// ProbeCloud asks the remote what the account already holds
func (e *Engine) ProbeCloud(ctx context.Context) (gateway.CloudState, error) {
	ctx, cancel := e.networkContext(ctx)
	defer cancel()
	return e.remote.Probe(ctx)
}

// Migrate transfers the local archive to the remote with the given strategy.
// The returned Result always carries the mode the device is left in.
func (e *Engine) Migrate(ctx context.Context, strategy gateway.Strategy) Result {
	current, err := e.modes.Mode()
	if err != nil {
		return Result{NewMode: current, Err: err}
	}
	fail := func(err error) Result {
		left := current
		if m, merr := e.modes.Mode(); merr == nil {
			left = m
		}
		migrateLog.Warn("Migration failed", "strategy", strategy, "mode", left, "error", err)
		return Result{NewMode: left, Err: err}
	}

	if !strategy.Valid() {
		return fail(fmt.Errorf("unknown strategy %q", strategy))
	}
	done, err := e.modes.IsMigrationCompleted()
	if err != nil {
		return fail(err)
	}
	if current == mode.Synced && done {
		return fail(ErrAlreadyMigrated)
	}

	counts, err := e.store.GetDataCounts()
	if err != nil {
		return fail(err)
	}
	if counts.Total() == 0 {
		if err := e.finish(); err != nil {
			return fail(err)
		}
		migrateLog.Info("Migration completed with no local data")
		return Result{Success: true, NewMode: mode.Synced}
	}

	// Local records exist, so an undecided device is effectively local-only
	if current == mode.Unset {
		if err := e.modes.SetMode(mode.LocalOnly); err != nil {
			return fail(err)
		}
		current = mode.LocalOnly
	}

	payload, err := e.codec.ExportAll(e.store)
	if err != nil {
		return fail(err)
	}
	sub := gateway.Submission{
		SchemaVersion: payload.SchemaVersion,
		Challenges:    payload.Challenges,
		Entries:       payload.Entries,
		Strategy:      strategy,
	}

	migrateLog.Info("Submitting migration", "strategy", strategy,
		"challenges", counts.Challenges, "entries", counts.Entries)

	netCtx, cancel := e.networkContext(ctx)
	res, err := e.remote.Import(netCtx, sub)
	cancel()
	if err == nil && !res.Success {
		err = &errors.RemoteRejectedError{Message: res.Error}
	}
	if err != nil {
		return fail(err)
	}

	// The cloud now holds the data. Everything below is local bookkeeping.
	if err := e.store.ClearAll(); err != nil {
		r := fail(fmt.Errorf("%w: clearing local data: %w", ErrPartialMigration, err))
		r.Import = res
		r.Transferred = true
		return r
	}
	if err := e.finish(); err != nil {
		r := fail(fmt.Errorf("%w: updating mode: %w", ErrPartialMigration, err))
		r.Import = res
		r.Transferred = true
		return r
	}

	migrateLog.Info("Migration completed", "strategy", strategy,
		"challengesImported", res.ChallengesImported, "entriesImported", res.EntriesImported)
	return Result{Success: true, NewMode: mode.Synced, Import: res, Transferred: true}
}

// Skip moves the device to Synced without reading or clearing local data
func (e *Engine) Skip() error {
	if err := e.finish(); err != nil {
		return err
	}
	migrateLog.Info("Migration skipped; local data retained")
	return nil
}

func (e *Engine) finish() error {
	if err := e.modes.SetMode(mode.Synced); err != nil {
		return err
	}
	return e.modes.SetMigrationCompleted(true)
}
