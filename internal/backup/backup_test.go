package backup

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/tally/internal/archive"
)

func setupTestDB(t *testing.T) string {
	dbPath := filepath.Join(t.TempDir(), "tally.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE challenges (id TEXT PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("failed to create test table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO challenges (id, name) VALUES ('c1', 'Pushups'), ('c2', 'Squats')`); err != nil {
		t.Fatalf("failed to insert test data: %v", err)
	}
	return dbPath
}

// minuteClock advances one minute per call so snapshot names never collide
func minuteClock() func() time.Time {
	current := time.Date(2025, 1, 15, 9, 0, 0, 0, time.Local)
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func countRows(t *testing.T, path string) int {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM challenges").Scan(&count); err != nil {
		t.Fatalf("failed to query database: %v", err)
	}
	return count
}

func TestWriteExportNaming(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, 0)
	mgr.SetClock(func() time.Time { return time.Date(2025, 1, 15, 18, 30, 0, 0, time.Local) })

	first, err := mgr.WriteExport(`{"schemaVersion":"1.0.0"}`, archive.FormatJSON)
	if err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}
	if filepath.Base(first) != "tally-backup-2025-01-15.json" {
		t.Errorf("unexpected name %s", filepath.Base(first))
	}

	second, err := mgr.WriteExport(`{"schemaVersion":"1.0.0"}`, archive.FormatJSON)
	if err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}
	if filepath.Base(second) != "tally-backup-2025-01-15-1.json" {
		t.Errorf("unexpected name %s", filepath.Base(second))
	}

	csvPath, err := mgr.WriteExport("type,id\n", archive.FormatCSV)
	if err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}
	if filepath.Base(csvPath) != "tally-backup-2025-01-15.csv" {
		t.Errorf("unexpected name %s", filepath.Base(csvPath))
	}

	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if string(data) != `{"schemaVersion":"1.0.0"}` {
		t.Errorf("unexpected contents %q", data)
	}
}

func TestCreateSnapshot(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, 0)

	backupPath, err := mgr.CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}
	if count := countRows(t, backupPath); count != 2 {
		t.Errorf("expected 2 rows in snapshot, got %d", count)
	}
}

func TestUniqueSnapshotFilenames(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, 0)
	fixed := time.Date(2025, 1, 15, 9, 0, 0, 0, time.Local)
	mgr.SetClock(func() time.Time { return fixed })

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		path, err := mgr.CreateSnapshot()
		if err != nil {
			t.Fatalf("CreateSnapshot #%d failed: %v", i, err)
		}
		if seen[path] {
			t.Fatalf("duplicate snapshot path %s", path)
		}
		seen[path] = true
	}
}

func TestRotationPerKind(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, 3)
	mgr.SetClock(minuteClock())

	for i := 0; i < 5; i++ {
		if _, err := mgr.CreateSnapshot(); err != nil {
			t.Fatalf("CreateSnapshot #%d failed: %v", i, err)
		}
		if _, err := mgr.WriteExport("{}", archive.FormatJSON); err != nil {
			t.Fatalf("WriteExport #%d failed: %v", i, err)
		}
	}

	backups, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}

	exports, snapshots := 0, 0
	for _, b := range backups {
		if b.Kind.IsExport() {
			exports++
		} else {
			snapshots++
		}
	}
	if exports != 3 || snapshots != 3 {
		t.Errorf("expected 3 of each kind, got %d exports and %d snapshots", exports, snapshots)
	}

	// Same-day exports keep the highest counters
	for _, b := range backups {
		if b.Kind == KindJSON && filepath.Base(b.Path) == "tally-backup-2025-01-15.json" {
			t.Errorf("expected the oldest export to be rotated away")
		}
	}
}

func TestListBackupsSortedAndFiltered(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, 0)
	if err := os.MkdirAll(mgr.GetBackupDir(), 0700); err != nil {
		t.Fatal(err)
	}

	names := []string{
		"tally-backup-2025-01-14.json",
		"tally-backup-2025-01-15.csv",
		"tally-backup-2025-01-15-2.json",
		"tally-20250113-0800.db",
		"tally-20250116-080000-1.db",
		"notes.txt",
		"tally-backup-yesterday.json",
		"tally-backup-2025-01-15.xml",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(mgr.GetBackupDir(), name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	backups, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}

	want := []string{
		"tally-20250116-080000-1.db",
		"tally-backup-2025-01-15-2.json",
		"tally-backup-2025-01-15.csv",
		"tally-backup-2025-01-14.json",
		"tally-20250113-0800.db",
	}
	if len(backups) != len(want) {
		t.Fatalf("expected %d backups, got %d", len(want), len(backups))
	}
	for i, b := range backups {
		if filepath.Base(b.Path) != want[i] {
			t.Errorf("backup %d: expected %s, got %s", i, want[i], filepath.Base(b.Path))
		}
	}
}

func TestRestoreSnapshot(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, 0)
	mgr.SetClock(minuteClock())

	snapshot, err := mgr.CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("DELETE FROM challenges"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	previous, err := mgr.RestoreSnapshot(snapshot)
	if err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}
	if count := countRows(t, dbPath); count != 2 {
		t.Errorf("expected restored database to have 2 rows, got %d", count)
	}
	if count := countRows(t, previous); count != 0 {
		t.Errorf("expected pre-restore snapshot to hold the emptied database, got %d rows", count)
	}
}

func TestRestoreRejectsCorruptedSnapshot(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, 0)

	bad := filepath.Join(t.TempDir(), "bad.db")
	if err := os.WriteFile(bad, []byte("not a database at all, just some text padding"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.RestoreSnapshot(bad); err == nil {
		t.Error("expected corrupted snapshot to be rejected")
	}
	if count := countRows(t, dbPath); count != 2 {
		t.Errorf("expected database to be untouched, got %d rows", count)
	}
}

func TestSnapshotWithNoDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"), 0)
	if _, err := mgr.CreateSnapshot(); err == nil {
		t.Error("expected error for missing database")
	}
}
