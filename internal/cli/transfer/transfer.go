package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/julianstephens/tally/internal/archive"
	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/cli"
)

type ExportCmd struct {
	Format string `help:"Output format: json or csv." default:"json" enum:"json,csv"`
	Out    string `help:"Write to this path ('-' for stdout). Defaults to a dated file in the backup directory."`
}

func (c *ExportCmd) Run(ctx *cli.Context) error {
	format, err := archive.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	codec := ctx.Codec()
	payload, err := codec.ExportAll(ctx.Store)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	text, err := codec.ToText(payload, format)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	switch c.Out {
	case "-":
		_, err := fmt.Fprint(ctx.Out, text)
		return err
	case "":
		path, err := ctx.Backups().WriteExport(text, format)
		if err != nil {
			return err
		}
		ctx.Printf("%s Exported %d challenges and %d entries to %s\n",
			cli.SuccessStyle.Render("✓"), len(payload.Challenges), len(payload.Entries), path)
	default:
		if err := backup.WriteFileAtomic(c.Out, []byte(text)); err != nil {
			return fmt.Errorf("failed to write %s: %w", c.Out, err)
		}
		ctx.Printf("%s Exported %d challenges and %d entries to %s\n",
			cli.SuccessStyle.Render("✓"), len(payload.Challenges), len(payload.Entries), c.Out)
	}
	return nil
}

type ImportCmd struct {
	File    string `arg:"" help:"Export file to import." type:"existingfile"`
	Format  string `help:"Input format: json or csv. Guessed from the extension when omitted."`
	Replace bool   `help:"Replace all local data instead of merging."`
	Yes     bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	format := archive.FormatFromPath(c.File)
	if c.Format != "" {
		f, err := archive.ParseFormat(c.Format)
		if err != nil {
			return err
		}
		format = f
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	payload, err := ctx.Codec().FromText(string(data), format)
	if err != nil {
		return err
	}
	if errs := archive.Validate(payload); len(errs) > 0 {
		ctx.Printf("%s %s is invalid (%d problems):\n", cli.ErrorStyle.Render("✗"), filepath.Base(c.File), len(errs))
		for _, e := range errs {
			ctx.Printf("  - %s\n", e.Error())
		}
		return errs
	}

	return ctx.Mutate(func() error {
		if err := ctx.EnsureLocal(); err != nil {
			return err
		}
		mode := archive.ImportMerge
		if c.Replace {
			counts, err := ctx.Store.GetDataCounts()
			if err != nil {
				return err
			}
			if counts.Total() > 0 {
				ok, err := cli.Confirm(c.Yes, "Replace all local data?",
					fmt.Sprintf("%d challenges and %d entries will be replaced. A snapshot is taken first.", counts.Challenges, counts.Entries))
				if err != nil {
					return err
				}
				if !ok {
					ctx.Println("Import cancelled.")
					return nil
				}
				ctx.PerformAutomaticBackup()
			}
			mode = archive.ImportReplace
		}

		res, err := archive.Import(ctx.Store, payload, mode)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		ctx.Printf("%s Imported %d challenges and %d entries\n",
			cli.SuccessStyle.Render("✓"), res.ChallengesImported, res.EntriesImported)
		if res.FollowedSkipped > 0 {
			ctx.Println(cli.MutedStyle.Render(fmt.Sprintf("  %d follows skipped (they only exist on the sync server)", res.FollowedSkipped)))
		}
		printMappings(ctx, "challenge", res.IDMappings.Challenges)
		printMappings(ctx, "entry", res.IDMappings.Entries)
		return nil
	})
}

func printMappings(ctx *cli.Context, kind string, mappings map[string]string) {
	if len(mappings) == 0 {
		return
	}
	ids := make([]string, 0, len(mappings))
	for old := range mappings {
		ids = append(ids, old)
	}
	sort.Strings(ids)
	ctx.Println(cli.WarnStyle.Render(fmt.Sprintf("  %d %s ids were already in use and were renamed:", len(ids), kind)))
	for _, old := range ids {
		ctx.Printf("    %s -> %s\n", old, mappings[old])
	}
}

type ClearCmd struct {
	Yes bool `short:"y" help:"Skip the confirmation prompt."`
}

func (c *ClearCmd) Run(ctx *cli.Context) error {
	return ctx.Mutate(func() error {
		counts, err := ctx.Store.GetDataCounts()
		if err != nil {
			return err
		}
		if counts.Total() == 0 {
			ctx.Println("Nothing to clear.")
			return nil
		}

		ok, err := cli.Confirm(c.Yes, "Delete all local challenges and entries?",
			fmt.Sprintf("%d challenges and %d entries will be removed. A snapshot is taken first.", counts.Challenges, counts.Entries))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Clear cancelled.")
			return nil
		}

		ctx.PerformAutomaticBackup()
		if err := ctx.Store.ClearAll(); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		ctx.Printf("%s Cleared %d challenges and %d entries\n", cli.SuccessStyle.Render("✓"), counts.Challenges, counts.Entries)
		return nil
	})
}
