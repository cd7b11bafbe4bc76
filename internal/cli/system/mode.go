package system

import (
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/mode"
)

type ModeShowCmd struct{}

func (c *ModeShowCmd) Run(ctx *cli.Context) error {
	current, err := ctx.Modes.Mode()
	if err != nil {
		return err
	}
	done, err := ctx.Modes.IsMigrationCompleted()
	if err != nil {
		return err
	}
	ctx.Println(cli.Field("Mode", current))
	ctx.Println(cli.Field("Migration completed", done))
	if current == mode.Unset {
		ctx.Println(cli.MutedStyle.Render("Run 'tally mode local' to keep data on this device, or 'tally migrate run' to sync."))
	}
	return nil
}

// ModeLocalCmd commits an undecided device to keeping its data locally
type ModeLocalCmd struct{}

func (c *ModeLocalCmd) Run(ctx *cli.Context) error {
	return ctx.Mutate(func() error {
		if err := ctx.Modes.SetMode(mode.LocalOnly); err != nil {
			return err
		}
		ctx.Printf("%s This device keeps its data locally.\n", cli.SuccessStyle.Render("✓"))
		return nil
	})
}
