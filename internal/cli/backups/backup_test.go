package backups

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer, func()) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "tally.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	ctx := cli.NewContext(store, nil)
	out := &bytes.Buffer{}
	ctx.Out = out
	return ctx, out, func() { store.Close() }
}

func TestBackupDBAndList(t *testing.T) {
	ctx, out, cleanup := setupTestContext(t)
	defer cleanup()

	if err := (&BackupDBCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup db failed: %v", err)
	}
	if !strings.Contains(out.String(), "Snapshot created") {
		t.Errorf("unexpected output: %s", out.String())
	}

	out.Reset()
	if err := (&BackupListCmd{Kind: "db"}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), ".db") {
		t.Errorf("expected the snapshot to be listed:\n%s", out.String())
	}

	out.Reset()
	if err := (&BackupListCmd{Kind: "json"}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No backups found") {
		t.Errorf("expected no json exports:\n%s", out.String())
	}
}

func TestBackupRestore(t *testing.T) {
	ctx, _, cleanup := setupTestContext(t)
	defer cleanup()

	_, err := ctx.Store.PutChallenge(models.Challenge{
		ID: "c1", Name: "Pushups", TargetNumber: 1000, Year: 2025,
		Color: "#fff", Icon: "star", TimeframeUnit: models.TimeframeYear,
	})
	if err != nil {
		t.Fatal(err)
	}
	snapshot, err := ctx.Backups().CreateSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Store.ClearAll(); err != nil {
		t.Fatal(err)
	}

	// Later clock so the pre-restore snapshot gets a distinct name
	ctx.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if err := (&BackupRestoreCmd{BackupFile: filepath.Base(snapshot), Yes: true}).Run(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if _, err := ctx.Store.GetChallenge("c1"); err != nil {
		t.Errorf("expected restored challenge, got %v", err)
	}
}

func TestBackupRestoreMissingFile(t *testing.T) {
	ctx, _, cleanup := setupTestContext(t)
	defer cleanup()

	if err := (&BackupRestoreCmd{BackupFile: "tally-20990101-0000.db", Yes: true}).Run(ctx); err == nil {
		t.Error("expected an error for a missing snapshot")
	}
}
