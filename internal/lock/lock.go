// Package lock keeps a single writer per local database. The lockfile holds
// "<pid>|<executable>|<acquired at>"; a lock whose process is gone is stale
// and gets taken over.
package lock

import (
	goerrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
	executableFunc  = os.Executable
)

// ErrLocked is returned when another live tally process holds the lock
var ErrLocked = goerrors.New("database is locked by another tally process")

// HeldError describes the process holding the lock
type HeldError struct {
	PID        int
	Executable string
	Since      time.Time
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("database is locked by %s (pid %d) since %s", e.Executable, e.PID, e.Since.Format(time.RFC3339))
}

func (e *HeldError) Is(target error) bool { return target == ErrLocked }

// Lock is a held lockfile
type Lock struct {
	path string
	pid  int
}

// PathFor returns the lockfile path kept next to the database
func PathFor(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), constants.LockfileName)
}

// Acquire takes the lockfile at path, replacing a stale one
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	pid := getpidFunc()
	exe, err := executableFunc()
	if err != nil {
		exe = constants.AppName
	}
	content := fmt.Sprintf("%d|%s|%s", pid, filepath.Base(exe), time.Now().UTC().Format(time.RFC3339))

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			_, werr := f.WriteString(content)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lockfile: %w", goerrors.Join(werr, cerr))
			}
			logger.Debug("Acquired lock", "path", path, "pid", pid)
			return &Lock{path: path, pid: pid}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lockfile: %w", err)
		}

		holder, err := Inspect(path)
		if err == nil && holder != nil {
			return nil, holder
		}
		logger.Warn("Removing stale lockfile", "path", path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to acquire lock at %s", path)
}

// Inspect returns the live holder of the lockfile at path, or nil when the
// file is missing or stale. A malformed lockfile is reported as an error.
func Inspect(path string) (*HeldError, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return nil, goerrors.New("lockfile is malformed")
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid < 1 {
		return nil, goerrors.New("invalid process ID in lockfile")
	}
	since, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return nil, goerrors.New("invalid timestamp in lockfile")
	}

	if pid == getpidFunc() {
		// Left behind by this process; reclaimable
		return nil, nil
	}
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return nil, nil
	}
	if !strings.HasPrefix(process.Executable(), constants.AppName) {
		// The pid was recycled by an unrelated program
		return nil, nil
	}
	return &HeldError{PID: pid, Executable: process.Executable(), Since: since}, nil
}

// Release removes the lockfile if this process still owns it
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !strings.HasPrefix(string(content), strconv.Itoa(l.pid)+"|") {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	logger.Debug("Released lock", "path", l.path)
	return nil
}
