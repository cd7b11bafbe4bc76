package sync

import (
	"context"
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/gateway"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/mode"
)

type MigrateStatusCmd struct {
	Offline bool `help:"Do not ask the sync server what it already holds."`
}

func (c *MigrateStatusCmd) Run(ctx *cli.Context) error {
	var cloud *gateway.CloudState
	var probeErr error

	engine, release, err := ctx.Engine()
	if err != nil {
		if !c.Offline {
			probeErr = err
		}
		// Local-only view still works without a remote
		engine = migration.New(ctx.Store, ctx.Modes, ctx.Codec(), nil)
		release = func() {}
	}
	defer release()

	if !c.Offline && probeErr == nil {
		state, err := engine.ProbeCloud(context.Background())
		if err != nil {
			probeErr = err
		} else {
			cloud = &state
		}
	}

	state, err := engine.CheckState(cloud)
	if err != nil {
		return err
	}

	ctx.Println(cli.TitleStyle.Render("Migration status"))
	ctx.Println(cli.Field("Mode", state.Mode))
	ctx.Println(cli.Field("Migration completed", state.MigrationCompleted))
	ctx.Println(cli.Field("Local challenges", state.LocalCounts.Challenges))
	ctx.Println(cli.Field("Local entries", state.LocalCounts.Entries))
	switch {
	case state.CloudKnown:
		ctx.Println(cli.Field("Cloud challenges", state.CloudCounts.Challenges))
		ctx.Println(cli.Field("Cloud entries", state.CloudCounts.Entries))
	case probeErr != nil:
		ctx.Println(cli.Field("Cloud", cli.WarnStyle.Render("unavailable: "+errors.Describe(probeErr))))
	default:
		ctx.Println(cli.Field("Cloud", cli.MutedStyle.Render("not checked")))
	}

	ctx.Println()
	switch {
	case state.Mode == mode.Synced && state.MigrationCompleted:
		ctx.Println("This device is synced.")
		if state.HasLocalData {
			ctx.Println(cli.MutedStyle.Render("Old local records are still on disk; 'tally export' then 'tally clear' removes them."))
		}
	case !state.HasLocalData:
		ctx.Println("Nothing to migrate. 'tally migrate run' switches this device to synced.")
	default:
		ctx.Println("Run 'tally migrate run' to move local records to the sync server.")
	}
	return nil
}

type MigrateRunCmd struct {
	Strategy string `help:"replace-cloud discards cloud data; keep-cloud keeps cloud records that collide." enum:"ask,replace-cloud,keep-cloud" default:"ask"`
	Yes      bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *MigrateRunCmd) Run(ctx *cli.Context) error {
	engine, release, err := ctx.Engine()
	if err != nil {
		return err
	}
	defer release()

	return ctx.Mutate(func() error {
		var cloud *gateway.CloudState
		probe, err := engine.ProbeCloud(context.Background())
		if err != nil {
			logger.For("migrate").Warn("Cloud probe failed", "error", err)
		} else {
			cloud = &probe
		}
		state, err := engine.CheckState(cloud)
		if err != nil {
			return err
		}
		if state.Mode == mode.Synced && state.MigrationCompleted {
			ctx.Println("This device is already synced.")
			return nil
		}

		strategy, err := c.pickStrategy(state)
		if err != nil {
			return err
		}
		if state.HasLocalData {
			ok, err := cli.Confirm(c.Yes, "Move local data to the sync server?",
				fmt.Sprintf("%d challenges and %d entries are sent, then removed from this device. A snapshot is taken first.",
					state.LocalCounts.Challenges, state.LocalCounts.Entries))
			if err != nil {
				return err
			}
			if !ok {
				ctx.Println("Migration cancelled.")
				return nil
			}
			ctx.PerformAutomaticBackup()
		}

		res := engine.Migrate(context.Background(), strategy)
		if res.Err != nil {
			ctx.Printf("%s Migration failed. Mode is %s.\n", cli.ErrorStyle.Render("✗"), res.NewMode)
			ctx.Println(errors.Describe(res.Err))
			return res.Err
		}
		if res.Transferred {
			ctx.Printf("%s Migrated %d challenges and %d entries. This device is now synced.\n",
				cli.SuccessStyle.Render("✓"), res.Import.ChallengesImported, res.Import.EntriesImported)
		} else {
			ctx.Printf("%s No local data to move. This device is now synced.\n", cli.SuccessStyle.Render("✓"))
		}
		return nil
	})
}

func (c *MigrateRunCmd) pickStrategy(state migration.State) (gateway.Strategy, error) {
	if c.Strategy != "" && c.Strategy != "ask" {
		return gateway.ParseStrategy(c.Strategy)
	}
	if !state.HasLocalData || (state.CloudKnown && !state.HasCloudData) {
		// Nothing in the cloud to collide with
		return gateway.StrategyReplace, nil
	}
	title := "Your account already has data in the cloud"
	desc := fmt.Sprintf("Cloud: %d challenges, %d entries. This device: %d challenges, %d entries.",
		state.CloudCounts.Challenges, state.CloudCounts.Entries, state.LocalCounts.Challenges, state.LocalCounts.Entries)
	if !state.CloudKnown {
		// An unreachable status endpoint is not an empty cloud
		title = "Couldn't check what the cloud already holds"
		desc = fmt.Sprintf("This device: %d challenges, %d entries. Replacing deletes anything already in the cloud.",
			state.LocalCounts.Challenges, state.LocalCounts.Entries)
	}
	choice, err := cli.Select(title, desc,
		[]cli.Option{
			{Label: "Replace cloud data with this device's data", Value: string(gateway.StrategyReplace)},
			{Label: "Keep cloud data; only add records it doesn't have", Value: string(gateway.StrategySkip)},
		})
	if err != nil {
		return "", err
	}
	return gateway.ParseStrategy(choice)
}

type MigrateSkipCmd struct {
	Yes bool `short:"y" help:"Skip the confirmation prompt."`
}

func (c *MigrateSkipCmd) Run(ctx *cli.Context) error {
	return ctx.Mutate(func() error {
		ok, err := cli.Confirm(c.Yes, "Switch to synced without moving local data?",
			"Local records stay on disk but are no longer used. This cannot be undone.")
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Cancelled.")
			return nil
		}
		engine := migration.New(ctx.Store, ctx.Modes, ctx.Codec(), nil)
		if err := engine.Skip(); err != nil {
			return err
		}
		ctx.Printf("%s This device is now synced. Local data was kept.\n", cli.SuccessStyle.Render("✓"))
		return nil
	})
}
