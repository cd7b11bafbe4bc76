package records

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/mode"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tally.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	ctx := cli.NewContext(store, nil)
	out := &bytes.Buffer{}
	ctx.Out = out
	ctx.Now = func() time.Time { return time.Date(2025, 1, 16, 9, 0, 0, 0, time.Local) }

	cleanup := func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}
	return ctx, out, cleanup
}

func TestChallengeAndEntryWorkflow(t *testing.T) {
	ctx, out, cleanup := setupTestContext(t)
	defer cleanup()

	add := &ChallengeAddCmd{Name: "Pushups", Target: 1000, Timeframe: "year", Color: "#fff", Icon: "star"}
	if err := add.Run(ctx); err != nil {
		t.Fatalf("challenge add failed: %v", err)
	}
	challenges, err := ctx.Store.ListChallenges(false)
	if err != nil || len(challenges) != 1 {
		t.Fatalf("expected one challenge, got %v (%v)", challenges, err)
	}
	ch := challenges[0]
	if ch.Year != 2025 {
		t.Errorf("expected year to default to 2025, got %d", ch.Year)
	}

	// First local write chooses local-only
	if m, _ := ctx.Modes.Mode(); m != mode.LocalOnly {
		t.Errorf("expected local-only after first write, got %s", m)
	}

	entry := &EntryAddCmd{ChallengeID: ch.ID, Date: "yesterday", Sets: "10,20", Feeling: "great"}
	if err := entry.Run(ctx); err != nil {
		t.Fatalf("entry add failed: %v", err)
	}
	entries, err := ctx.Store.ListEntries(ch.ID, nil)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry, got %v (%v)", entries, err)
	}
	if entries[0].Count != 30 || entries[0].Date != "2025-01-15" {
		t.Errorf("unexpected entry %+v", entries[0])
	}

	out.Reset()
	if err := (&ChallengeListCmd{}).Run(ctx); err != nil {
		t.Fatalf("challenge list failed: %v", err)
	}
	if !strings.Contains(out.String(), "Pushups") || !strings.Contains(out.String(), "30 / 1000") {
		t.Errorf("unexpected list output:\n%s", out.String())
	}

	if err := (&ChallengeDeleteCmd{ID: ch.ID, Yes: true}).Run(ctx); err != nil {
		t.Fatalf("challenge delete failed: %v", err)
	}
	counts, _ := ctx.Store.GetDataCounts()
	if counts.Total() != 0 {
		t.Errorf("expected cascade delete, got %+v", counts)
	}
}

func TestEntryAddUnknownChallenge(t *testing.T) {
	ctx, _, cleanup := setupTestContext(t)
	defer cleanup()

	err := (&EntryAddCmd{ChallengeID: "missing", Count: 5, Date: "today"}).Run(ctx)
	if err == nil {
		t.Fatal("expected an error for an unknown challenge")
	}
}

func TestSyncedDeviceRefusesLocalCommands(t *testing.T) {
	ctx, _, cleanup := setupTestContext(t)
	defer cleanup()

	if err := ctx.Modes.SetMode(mode.Synced); err != nil {
		t.Fatal(err)
	}
	if err := (&ChallengeAddCmd{Name: "Pushups", Target: 10, Timeframe: "year", Color: "#fff", Icon: "star"}).Run(ctx); err == nil {
		t.Error("expected challenge add to be refused on a synced device")
	}
	if err := (&ChallengeListCmd{}).Run(ctx); err == nil {
		t.Error("expected challenge list to be refused on a synced device")
	}
}

func TestParseSets(t *testing.T) {
	sets, err := ParseSets(" 10, 20 ,5")
	if err != nil {
		t.Fatal(err)
	}
	if sets.Sum() != 35 || len(sets) != 3 {
		t.Errorf("unexpected sets %v", sets)
	}
	if sets, _ := ParseSets(""); sets != nil {
		t.Errorf("expected nil sets, got %v", sets)
	}
	if _, err := ParseSets("10,x"); err == nil {
		t.Error("expected an error for a non-numeric set")
	}
}

func TestCompute(t *testing.T) {
	ch := models.Challenge{TargetNumber: 100, Year: 2025, TimeframeUnit: models.TimeframeYear}
	entries := []models.Entry{
		{Date: "2025-01-01", Count: 10},
		{Date: "2025-01-02", Count: 15},
		{Date: "2025-01-02", Count: 5},
	}
	now := time.Date(2025, 12, 22, 8, 0, 0, 0, time.UTC)

	s := Compute(ch, entries, now)
	if s.Total != 30 || s.Remaining != 70 || s.DaysLogged != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.BestDay != "2025-01-02" || s.BestCount != 20 {
		t.Errorf("unexpected best day %+v", s)
	}
	// 10 days left including today
	if s.PerDayNeeded != 7 {
		t.Errorf("expected 7 per day, got %d", s.PerDayNeeded)
	}

	closed := Compute(ch, entries, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if closed.PerDayNeeded != 0 {
		t.Errorf("expected no daily target after the window, got %d", closed.PerDayNeeded)
	}
}
