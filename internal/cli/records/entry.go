package records

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

type EntryAddCmd struct {
	ChallengeID string `arg:"" help:"Challenge ID."`
	Count       int    `arg:"" optional:"" help:"Count to add. Defaults to the sum of --sets."`
	Date        string `help:"Date (YYYY-MM-DD or e.g. 'yesterday')." default:"today"`
	Note        string `help:"Optional note."`
	Feeling     string `help:"How it felt: great, good, okay or tough."`
	Sets        string `help:"Comma-separated per-set counts, e.g. 10,20."`
}

func (c *EntryAddCmd) Run(ctx *cli.Context) error {
	date, err := cli.ParseDate(c.Date, ctx.Now())
	if err != nil {
		return err
	}
	sets, err := ParseSets(c.Sets)
	if err != nil {
		return err
	}
	count := c.Count
	if count == 0 && sets != nil {
		count = sets.Sum()
	}

	entry := models.Entry{
		ChallengeID: c.ChallengeID,
		Date:        date,
		Count:       count,
		Note:        c.Note,
		Feeling:     models.Feeling(strings.ToLower(c.Feeling)),
		Sets:        sets,
	}

	return ctx.Mutate(func() error {
		if err := ctx.EnsureLocal(); err != nil {
			return err
		}
		saved, err := ctx.Store.PutEntry(entry)
		if err != nil {
			return fmt.Errorf("failed to add entry: %w", err)
		}
		ctx.Printf("%s Logged %d on %s (%s)\n", cli.SuccessStyle.Render("✓"), saved.Count, saved.Date, saved.ID)
		return nil
	})
}

// ParseSets reads "10,20,30" into per-set counts. An empty string means no sets.
func ParseSets(s string) (models.Sets, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	sets := make(models.Sets, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid set count %q", part)
		}
		sets = append(sets, n)
	}
	return sets, nil
}

type EntryListCmd struct {
	Challenge string `help:"Only entries for this challenge ID."`
	From      string `help:"Earliest date (inclusive)."`
	To        string `help:"Latest date (inclusive)."`
}

func (c *EntryListCmd) Run(ctx *cli.Context) error {
	if err := ctx.RequireLocal(); err != nil {
		return err
	}

	var dateRange *storage.DateRange
	if c.From != "" || c.To != "" {
		dateRange = &storage.DateRange{}
		if c.From != "" {
			from, err := cli.ParseDate(c.From, ctx.Now())
			if err != nil {
				return err
			}
			dateRange.Start = from
		}
		if c.To != "" {
			to, err := cli.ParseDate(c.To, ctx.Now())
			if err != nil {
				return err
			}
			dateRange.End = to
		}
	}

	entries, err := ctx.Store.ListEntries(c.Challenge, dateRange)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	if len(entries) == 0 {
		ctx.Println("No entries found.")
		return nil
	}
	for _, e := range entries {
		printEntry(ctx, e)
	}
	return nil
}

type EntryDeleteCmd struct {
	ID string `arg:"" help:"Entry ID."`
}

func (c *EntryDeleteCmd) Run(ctx *cli.Context) error {
	return ctx.Mutate(func() error {
		if err := ctx.EnsureLocal(); err != nil {
			return err
		}
		if err := ctx.Store.DeleteEntry(c.ID); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		ctx.Printf("%s Deleted entry %s\n", cli.SuccessStyle.Render("✓"), c.ID)
		return nil
	})
}

func printEntry(ctx *cli.Context, e models.Entry) {
	line := fmt.Sprintf("  %s  %5d", e.Date, e.Count)
	if len(e.Sets) > 0 {
		parts := make([]string, len(e.Sets))
		for i, n := range e.Sets {
			parts[i] = strconv.Itoa(n)
		}
		line += cli.MutedStyle.Render(" [" + strings.Join(parts, "+") + "]")
	}
	if e.Feeling != "" {
		line += "  " + string(e.Feeling)
	}
	if e.Note != "" {
		line += "  " + cli.MutedStyle.Render(e.Note)
	}
	ctx.Printf("%s  %s\n", line, cli.MutedStyle.Render(e.ID))
}
