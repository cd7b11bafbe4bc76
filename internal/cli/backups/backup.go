package backups

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/cli"
)

type BackupDBCmd struct{}

func (c *BackupDBCmd) Run(ctx *cli.Context) error {
	backupPath, err := ctx.Backups().CreateSnapshot()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	ctx.Printf("%s Snapshot created: %s\n", cli.SuccessStyle.Render("✓"), filepath.Base(backupPath))
	return nil
}

type BackupListCmd struct {
	Kind string `help:"Only list one kind: json, csv or db." enum:"all,json,csv,db" default:"all"`
}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr := ctx.Backups()
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	var shown []backup.BackupInfo
	for _, b := range backups {
		if c.Kind == "all" || c.Kind == "" || string(b.Kind) == c.Kind {
			shown = append(shown, b)
		}
	}

	if len(shown) == 0 {
		ctx.Println("No backups found.")
		ctx.Printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d of each kind):\n\n", len(shown), ctx.Config.Backups.Max)
	for _, b := range shown {
		sizeKB := float64(b.Size) / 1024.0
		timestamp := b.Timestamp.Format("2006-01-02 15:04:05")
		if b.Kind.IsExport() {
			timestamp = b.Timestamp.Format("2006-01-02")
		}
		ctx.Printf("  %-19s  %-4s  %s  %s\n", timestamp, b.Kind, filepath.Base(b.Path),
			cli.MutedStyle.Render(fmt.Sprintf("(%.1f KB)", sizeKB)))
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.GetBackupDir())

	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the database snapshot to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation prompt."`
}

// resolve finds the snapshot as given, relative to the working directory, or in the backup directory
func (c *BackupRestoreCmd) resolve(mgr *backup.Manager) (string, error) {
	backupPath := c.BackupFile
	if filepath.IsAbs(backupPath) {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			return "", fmt.Errorf("backup file not found: %s", backupPath)
		}
		return backupPath, nil
	}
	if _, err := os.Stat(backupPath); err == nil {
		return filepath.Abs(backupPath)
	}
	possiblePath := filepath.Join(mgr.GetBackupDir(), c.BackupFile)
	if _, err := os.Stat(possiblePath); err == nil {
		return possiblePath, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", mgr.GetBackupDir())
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr := ctx.Backups()
	backupPath, err := c.resolve(mgr)
	if err != nil {
		return err
	}

	return ctx.Mutate(func() error {
		ok, err := cli.Confirm(c.Yes, "Replace the current database with this snapshot?",
			fmt.Sprintf("Restore from %s. The current database is snapshotted first.", filepath.Base(backupPath)))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Restore cancelled.")
			return nil
		}

		if err := ctx.Store.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		previous, err := mgr.RestoreSnapshot(backupPath)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		if err := ctx.Store.Load(); err != nil {
			return fmt.Errorf("restored database failed to load: %w", err)
		}

		ctx.Printf("%s Database restored from %s\n", cli.SuccessStyle.Render("✓"), filepath.Base(backupPath))
		if previous != "" {
			ctx.Printf("  Previous database saved as %s\n", filepath.Base(previous))
		}
		return nil
	})
}
