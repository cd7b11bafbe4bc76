package backup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/tally/internal/archive"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

// Kind distinguishes payload exports from database snapshots
type Kind string

const (
	KindJSON     Kind = "json"
	KindCSV      Kind = "csv"
	KindSnapshot Kind = "db"
)

// IsExport reports whether the backup is a payload export rather than a snapshot
func (k Kind) IsExport() bool {
	return k == KindJSON || k == KindCSV
}

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path      string
	Kind      Kind
	Timestamp time.Time
	Size      int64
	seq       int
}

// Manager handles backup operations
type Manager struct {
	dbPath     string
	backupDir  string
	maxBackups int
	now        func() time.Time
}

// NewManager creates a backup manager keeping backups next to the database.
// maxBackups <= 0 uses the default retention.
func NewManager(dbPath string, maxBackups int) *Manager {
	if maxBackups <= 0 {
		maxBackups = constants.MaxBackups
	}
	return &Manager{
		dbPath:     dbPath,
		backupDir:  filepath.Join(filepath.Dir(dbPath), constants.BackupDirName),
		maxBackups: maxBackups,
		now:        time.Now,
	}
}

// SetClock replaces the time source used to name backups
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// GetBackupDir returns the backup directory path
func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

func (m *Manager) ensureBackupDir() error {
	return os.MkdirAll(m.backupDir, 0700)
}

// ExportName returns the file name for an export written on the given local date
func ExportName(date time.Time, format archive.Format, seq int) string {
	name := constants.BackupFilePrefix + date.Format(constants.DateFormat)
	if seq > 0 {
		name += "-" + strconv.Itoa(seq)
	}
	return name + "." + string(format)
}

// WriteExport stores an encoded payload as tally-backup-<YYYY-MM-DD>.<format>,
// adding a -N counter when that name is taken
func (m *Manager) WriteExport(text string, format archive.Format) (string, error) {
	if err := m.ensureBackupDir(); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	today := m.now().Local()
	var path string
	for seq := 0; ; seq++ {
		if seq > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = filepath.Join(m.backupDir, ExportName(today, format, seq))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
	}

	if err := WriteFileAtomic(path, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	logger.Info("Wrote export backup", "path", path)

	if err := m.rotateBackups(); err != nil {
		logger.Warn("Failed to rotate old backups", "error", err)
	}
	return path, nil
}

// WriteFileAtomic writes data to a temporary file and renames it into place
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// CreateSnapshot copies the database into the backup directory
func (m *Manager) CreateSnapshot() (string, error) {
	return m.createSnapshot(false)
}

// createSnapshot copies the database.
// skipRotation prevents a pre-restore snapshot from rotating away the one being restored
func (m *Manager) createSnapshot(skipRotation bool) (string, error) {
	if err := m.ensureBackupDir(); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return "", fmt.Errorf("database does not exist: %s", m.dbPath)
	}

	// Minute precision first, then seconds, then a counter
	now := m.now()
	timestamp := now.Format("20060102-1504")
	backupPath := filepath.Join(m.backupDir, constants.SnapshotFilePrefix+timestamp+constants.SnapshotFileSuffix)

	if _, err := os.Stat(backupPath); err == nil {
		timestamp = now.Format("20060102-150405")
		backupPath = filepath.Join(m.backupDir, constants.SnapshotFilePrefix+timestamp+constants.SnapshotFileSuffix)

		counter := 1
		for {
			if _, err := os.Stat(backupPath); os.IsNotExist(err) {
				break
			}
			backupPath = filepath.Join(m.backupDir, fmt.Sprintf("%s%s-%d%s", constants.SnapshotFilePrefix, timestamp, counter, constants.SnapshotFileSuffix))
			counter++
			if counter > 100 {
				return "", fmt.Errorf("failed to generate unique backup filename")
			}
		}
	}

	if err := m.backupDatabase(backupPath); err != nil {
		return "", fmt.Errorf("failed to backup database: %w", err)
	}
	logger.Info("Created database snapshot", "path", backupPath)

	if !skipRotation {
		if err := m.rotateBackups(); err != nil {
			logger.Warn("Failed to rotate old backups", "error", err)
		}
	}
	return backupPath, nil
}

// backupDatabase copies the database with VACUUM INTO, falling back to a file copy
func (m *Manager) backupDatabase(destPath string) error {
	srcDB, err := sql.Open("sqlite", m.dbPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer srcDB.Close()

	var count int
	if err := srcDB.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}

	if _, err := srcDB.Exec("VACUUM INTO ?", destPath); err != nil {
		logger.Warn("VACUUM INTO failed, copying file instead", "error", err)
		srcDB.Close()
		return copyFile(m.dbPath, destPath)
	}
	return nil
}

// ListBackups returns exports and snapshots, newest first
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	if _, err := os.Stat(m.backupDir); os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}

	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(m.backupDir, entry.Name())
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		info.Path = path
		info.Size = stat.Size()
		backups = append(backups, info)
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].seq > backups[j].seq
	})
	return backups, nil
}

// parseBackupName recognizes tally-backup-YYYY-MM-DD[-N].{json,csv} and
// tally-YYYYMMDD-HHMM[SS][-N].db
func parseBackupName(name string) (BackupInfo, bool) {
	if strings.HasPrefix(name, constants.BackupFilePrefix) {
		ext := filepath.Ext(name)
		kind := Kind(strings.TrimPrefix(ext, "."))
		if !kind.IsExport() {
			return BackupInfo{}, false
		}
		rest := strings.TrimSuffix(strings.TrimPrefix(name, constants.BackupFilePrefix), ext)
		if len(rest) < len(constants.DateFormat) {
			return BackupInfo{}, false
		}
		date, err := time.ParseInLocation(constants.DateFormat, rest[:len(constants.DateFormat)], time.Local)
		if err != nil {
			return BackupInfo{}, false
		}
		seq := 0
		if suffix := rest[len(constants.DateFormat):]; suffix != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(suffix, "-"))
			if err != nil || !strings.HasPrefix(suffix, "-") {
				return BackupInfo{}, false
			}
			seq = n
		}
		return BackupInfo{Kind: kind, Timestamp: date, seq: seq}, true
	}

	if !strings.HasPrefix(name, constants.SnapshotFilePrefix) || !strings.HasSuffix(name, constants.SnapshotFileSuffix) {
		return BackupInfo{}, false
	}
	timestampStr := strings.TrimSuffix(strings.TrimPrefix(name, constants.SnapshotFilePrefix), constants.SnapshotFileSuffix)

	// Counter suffix: YYYYMMDD-HHMM-N or YYYYMMDD-HHMMSS-N
	seq := 0
	parts := strings.Split(timestampStr, "-")
	if len(parts) > 2 {
		lastPart := parts[len(parts)-1]
		if n, err := strconv.Atoi(lastPart); err == nil && len(lastPart) != 4 && len(lastPart) != 6 {
			seq = n
			timestampStr = strings.Join(parts[:len(parts)-1], "-")
		}
	}

	timestamp, err := time.ParseInLocation("20060102-1504", timestampStr, time.Local)
	if err != nil {
		timestamp, err = time.ParseInLocation("20060102-150405", timestampStr, time.Local)
		if err != nil {
			return BackupInfo{}, false
		}
	}
	return BackupInfo{Kind: KindSnapshot, Timestamp: timestamp, seq: seq}, true
}

// rotateBackups keeps the newest maxBackups exports and the newest maxBackups snapshots
func (m *Manager) rotateBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}

	kept := map[bool]int{}
	for _, b := range backups {
		export := b.Kind.IsExport()
		if kept[export] < m.maxBackups {
			kept[export]++
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", b.Path, err)
		}
		logger.Debug("Removed old backup", "path", b.Path)
	}
	return nil
}

// RestoreSnapshot replaces the database with a snapshot. The store must be
// closed. The current database is snapshotted first.
func (m *Manager) RestoreSnapshot(backupPath string) (string, error) {
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return "", fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	if err := verifySnapshot(backupPath); err != nil {
		return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var previous string
	if _, err := os.Stat(m.dbPath); err == nil {
		previous, err = m.createSnapshot(true)
		if err != nil {
			return "", fmt.Errorf("failed to backup current database before restore: %w", err)
		}
	}

	tempPath := m.dbPath + ".restore.tmp"
	if err := copyFile(backupPath, tempPath); err != nil {
		return "", fmt.Errorf("failed to copy backup file: %w", err)
	}

	// Journal files belong to the database being replaced
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove journal file", "path", m.dbPath+suffix, "error", err)
		}
	}

	if err := os.Rename(tempPath, m.dbPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			logger.Warn("Failed to remove temporary file", "path", tempPath, "error", removeErr)
		}
		return "", fmt.Errorf("failed to restore database: %w", err)
	}
	logger.Info("Restored database snapshot", "path", backupPath)
	return previous, nil
}

// verifySnapshot checks that a snapshot is a readable SQLite database
func verifySnapshot(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	var count int
	return db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count)
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := destFile.ReadFrom(sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}
