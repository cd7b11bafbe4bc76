package records

import (
	"fmt"
	"math"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

// Stats summarises one challenge's progress
type Stats struct {
	Total      int
	Remaining  int
	DaysLogged int
	BestDay    string
	BestCount  int
	// PerDayNeeded is the daily average still required; zero once the window closed or the target is met
	PerDayNeeded int
}

// Window returns the first and last day a challenge counts toward, as of now
func Window(ch models.Challenge, now time.Time) (time.Time, time.Time) {
	switch ch.TimeframeUnit {
	case models.TimeframeCustom:
		start, _ := models.ParseDate(ch.StartDate)
		end, _ := models.ParseDate(ch.EndDate)
		return start, end
	case models.TimeframeMonth:
		month := now.Month()
		if now.Year() != ch.Year {
			month = time.January
		}
		start := time.Date(ch.Year, month, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	}
	return time.Date(ch.Year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(ch.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// Compute derives Stats from a challenge's entries
func Compute(ch models.Challenge, entries []models.Entry, now time.Time) Stats {
	var s Stats
	perDay := map[string]int{}
	for _, e := range entries {
		s.Total += e.Count
		perDay[e.Date] += e.Count
	}
	s.DaysLogged = len(perDay)
	for day, n := range perDay {
		if n > s.BestCount || (n == s.BestCount && day < s.BestDay) {
			s.BestDay, s.BestCount = day, n
		}
	}
	if s.Total < ch.TargetNumber {
		s.Remaining = ch.TargetNumber - s.Total
	}

	_, end := Window(ch, now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if s.Remaining > 0 && !today.After(end) {
		days := int(end.Sub(today).Hours()/24) + 1
		s.PerDayNeeded = int(math.Ceil(float64(s.Remaining) / float64(days)))
	}
	return s
}

type StatsCmd struct {
	All bool `help:"Include archived challenges."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	if err := ctx.RequireLocal(); err != nil {
		return err
	}
	challenges, err := ctx.Store.ListChallenges(c.All)
	if err != nil {
		return fmt.Errorf("failed to list challenges: %w", err)
	}
	counts, err := ctx.Store.GetDataCounts()
	if err != nil {
		return err
	}

	ctx.Println(cli.TitleStyle.Render("Stats"))
	ctx.Println(cli.Field("Challenges", counts.Challenges))
	ctx.Println(cli.Field("Entries", counts.Entries))

	now := ctx.Now()
	for _, ch := range challenges {
		entries, err := ctx.Store.ListEntries(ch.ID, nil)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
		s := Compute(ch, entries, now)

		ctx.Println()
		ctx.Println(cli.TitleStyle.Render(ch.Name))
		ctx.Println(cli.Field("Progress", fmt.Sprintf("%s  %d / %d", cli.ProgressBar(s.Total, ch.TargetNumber, 20), s.Total, ch.TargetNumber)))
		ctx.Println(cli.Field("Days logged", s.DaysLogged))
		if s.BestDay != "" {
			ctx.Println(cli.Field("Best day", fmt.Sprintf("%s (%d)", s.BestDay, s.BestCount)))
		}
		switch {
		case s.Remaining == 0:
			ctx.Println(cli.Field("Status", cli.SuccessStyle.Render("target reached")))
		case s.PerDayNeeded > 0:
			ctx.Println(cli.Field("Needed per day", s.PerDayNeeded))
		default:
			ctx.Println(cli.Field("Status", cli.WarnStyle.Render(fmt.Sprintf("window closed, %d short", s.Remaining))))
		}
	}
	return nil
}
