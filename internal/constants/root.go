package constants

import "time"

const (
	AppName            = "tally"
	DefaultKeyringUser = "bearer-token"
	DefaultConfigPath  = "~/.config/tally/tally.db"
	Version            = "v0.1.0"

	// DateFormat is the calendar date format used for entries and backup names (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Backup constants
	MaxBackups         = 14
	BackupDirName      = "backups"
	BackupFilePrefix   = "tally-backup-"
	SnapshotFilePrefix = "tally-"
	SnapshotFileSuffix = ".db"

	// LockfileName is the single-writer lockfile kept next to the database
	LockfileName = "tally.lock"

	// Settings keys
	SettingAppMode            = "app_mode"
	SettingMigrationCompleted = "migration_completed"

	// Remote constants
	DefaultRemoteTimeout = 30 * time.Second
	DefaultExportSource  = "web"
	MigrationImportPath  = "/api/v1/migration/import"
	MigrationStatusPath  = "/api/v1/migration/status"

	// Field limits
	MaxChallengeNameLength = 100
	MaxEntryNoteLength     = 500
	MinChallengeYear       = 2020
	MaxChallengeYear       = 2100

	// Retired id collections
	RetiredCollectionChallenges = "challenges"
	RetiredCollectionEntries    = "entries"
)
