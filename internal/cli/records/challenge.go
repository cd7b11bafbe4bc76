package records

import (
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

type ChallengeAddCmd struct {
	Name      string `arg:"" help:"Challenge name."`
	Target    int    `help:"Target total to reach." required:""`
	Year      int    `help:"Year the challenge belongs to (defaults to this year)."`
	Timeframe string `help:"Timeframe: year, month or custom." default:"year" enum:"year,month,custom"`
	Start     string `help:"Start date for a custom timeframe (YYYY-MM-DD)."`
	End       string `help:"End date for a custom timeframe (YYYY-MM-DD)."`
	Color     string `help:"Display color." default:"#3b82f6"`
	Icon      string `help:"Display icon." default:"target"`
	Public    bool   `help:"Make the challenge public once synced."`
}

func (c *ChallengeAddCmd) Run(ctx *cli.Context) error {
	year := c.Year
	if year == 0 {
		year = ctx.Now().Year()
	}
	challenge := models.Challenge{
		Name:          strings.TrimSpace(c.Name),
		TargetNumber:  c.Target,
		Year:          year,
		Color:         c.Color,
		Icon:          c.Icon,
		TimeframeUnit: models.TimeframeUnit(c.Timeframe),
		StartDate:     c.Start,
		EndDate:       c.End,
		IsPublic:      c.Public,
	}

	return ctx.Mutate(func() error {
		if err := ctx.EnsureLocal(); err != nil {
			return err
		}
		saved, err := ctx.Store.PutChallenge(challenge)
		if err != nil {
			return fmt.Errorf("failed to add challenge: %w", err)
		}
		ctx.Printf("%s Added challenge %q (%s)\n", cli.SuccessStyle.Render("✓"), saved.Name, saved.ID)
		return nil
	})
}

type ChallengeListCmd struct {
	All bool `help:"Include archived challenges."`
}

func (c *ChallengeListCmd) Run(ctx *cli.Context) error {
	if err := ctx.RequireLocal(); err != nil {
		return err
	}
	challenges, err := ctx.Store.ListChallenges(c.All)
	if err != nil {
		return fmt.Errorf("failed to list challenges: %w", err)
	}
	if len(challenges) == 0 {
		ctx.Println("No challenges yet. Add one with 'tally challenge add'.")
		return nil
	}

	ctx.Println(cli.TitleStyle.Render("Challenges"))
	for _, ch := range challenges {
		total, _, err := progress(ctx, ch.ID)
		if err != nil {
			return err
		}
		name := ch.Name
		if ch.Archived {
			name += cli.MutedStyle.Render(" (archived)")
		}
		ctx.Printf("  %s  %s\n", cli.MutedStyle.Render(ch.ID), name)
		ctx.Printf("      %s  %d / %d\n", cli.ProgressBar(total, ch.TargetNumber, 20), total, ch.TargetNumber)
	}
	return nil
}

type ChallengeShowCmd struct {
	ID     string `arg:"" help:"Challenge ID."`
	Recent int    `help:"Number of recent entries to show." default:"10"`
}

func (c *ChallengeShowCmd) Run(ctx *cli.Context) error {
	if err := ctx.RequireLocal(); err != nil {
		return err
	}
	ch, err := ctx.Store.GetChallenge(c.ID)
	if err != nil {
		return err
	}
	total, entries, err := progress(ctx, ch.ID)
	if err != nil {
		return err
	}

	ctx.Println(cli.TitleStyle.Render(ch.Name))
	ctx.Println(cli.Field("ID", ch.ID))
	ctx.Println(cli.Field("Target", ch.TargetNumber))
	ctx.Println(cli.Field("Year", ch.Year))
	window := string(ch.TimeframeUnit)
	if ch.TimeframeUnit == models.TimeframeCustom {
		window = fmt.Sprintf("%s to %s", ch.StartDate, ch.EndDate)
	}
	ctx.Println(cli.Field("Timeframe", window))
	ctx.Println(cli.Field("Public", ch.IsPublic))
	ctx.Println(cli.Field("Archived", ch.Archived))
	ctx.Println(cli.Field("Progress", fmt.Sprintf("%s  %d / %d", cli.ProgressBar(total, ch.TargetNumber, 20), total, ch.TargetNumber)))

	if len(entries) > 0 {
		ctx.Println()
		ctx.Println(cli.TitleStyle.Render("Recent entries"))
		start := len(entries) - c.Recent
		if start < 0 || c.Recent <= 0 {
			start = 0
		}
		for i := len(entries) - 1; i >= start; i-- {
			printEntry(ctx, entries[i])
		}
	}
	return nil
}

type ChallengeArchiveCmd struct {
	ID    string `arg:"" help:"Challenge ID."`
	Unset bool   `help:"Unarchive instead."`
}

func (c *ChallengeArchiveCmd) Run(ctx *cli.Context) error {
	return ctx.Mutate(func() error {
		if err := ctx.EnsureLocal(); err != nil {
			return err
		}
		ch, err := ctx.Store.GetChallenge(c.ID)
		if err != nil {
			return err
		}
		ch.Archived = !c.Unset
		if _, err := ctx.Store.PutChallenge(ch); err != nil {
			return fmt.Errorf("failed to update challenge: %w", err)
		}
		verb := "Archived"
		if c.Unset {
			verb = "Unarchived"
		}
		ctx.Printf("%s %s %q\n", cli.SuccessStyle.Render("✓"), verb, ch.Name)
		return nil
	})
}

type ChallengeDeleteCmd struct {
	ID  string `arg:"" help:"Challenge ID."`
	Yes bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *ChallengeDeleteCmd) Run(ctx *cli.Context) error {
	return ctx.Mutate(func() error {
		if err := ctx.EnsureLocal(); err != nil {
			return err
		}
		ch, err := ctx.Store.GetChallenge(c.ID)
		if err != nil {
			return err
		}
		entries, err := ctx.Store.ListEntries(ch.ID, nil)
		if err != nil {
			return err
		}

		ok, err := cli.Confirm(c.Yes,
			fmt.Sprintf("Delete %q?", ch.Name),
			fmt.Sprintf("This also deletes its %d entries.", len(entries)))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Delete cancelled.")
			return nil
		}

		if err := ctx.Store.DeleteChallenge(ch.ID); err != nil {
			return fmt.Errorf("failed to delete challenge: %w", err)
		}
		ctx.Printf("%s Deleted %q and %d entries\n", cli.SuccessStyle.Render("✓"), ch.Name, len(entries))
		return nil
	})
}

// progress sums a challenge's entries
func progress(ctx *cli.Context, challengeID string) (int, []models.Entry, error) {
	entries, err := ctx.Store.ListEntries(challengeID, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list entries: %w", err)
	}
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	return total, entries, nil
}
