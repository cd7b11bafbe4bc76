// Package mode tracks whether the device keeps its own records or defers to
// the sync server, and whether the one-time migration has been done.
package mode

import (
	goerrors "errors"
	"fmt"
	"strconv"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/storage"
)

type Mode string

const (
	Unset     Mode = "unset"
	LocalOnly Mode = "local-only"
	Synced    Mode = "synced"
)

// ErrInvalidTransition is returned for mode changes the device does not allow,
// such as leaving Synced
var ErrInvalidTransition = goerrors.New("invalid mode transition")

// Parse reads a mode name
func Parse(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Unset, LocalOnly, Synced:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// CanTransition reports whether from may move to to. Synced is terminal.
func CanTransition(from, to Mode) bool {
	if from == to {
		return true
	}
	switch from {
	case Unset:
		return to == LocalOnly || to == Synced
	case LocalOnly:
		return to == Synced
	}
	return false
}

// Machine persists the mode and migration flag in a settings store
type Machine struct {
	store storage.SettingsStore
}

func New(store storage.SettingsStore) *Machine {
	return &Machine{store: store}
}

// Mode returns the current mode; a device that never chose is Unset
func (m *Machine) Mode() (Mode, error) {
	value, ok, err := m.store.GetSetting(constants.SettingAppMode)
	if err != nil {
		return "", err
	}
	if !ok || value == "" {
		return Unset, nil
	}
	mode, err := Parse(value)
	if err != nil {
		return "", errors.NewStorage("read mode", err)
	}
	return mode, nil
}

// SetMode persists a new mode. Setting the current mode again is a no-op.
func (m *Machine) SetMode(to Mode) error {
	if _, err := Parse(string(to)); err != nil {
		return err
	}
	from, err := m.Mode()
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	if err := m.store.SetSetting(constants.SettingAppMode, string(to)); err != nil {
		return err
	}
	logger.Info("Mode changed", "from", from, "to", to)
	return nil
}

// SetModeIfUnset records a first choice and leaves an existing one alone
func (m *Machine) SetModeIfUnset(to Mode) error {
	current, err := m.Mode()
	if err != nil {
		return err
	}
	if current != Unset {
		return nil
	}
	return m.SetMode(to)
}

func (m *Machine) IsMigrationCompleted() (bool, error) {
	value, ok, err := m.store.GetSetting(constants.SettingMigrationCompleted)
	if err != nil || !ok {
		return false, err
	}
	done, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.NewStorage("read migration flag", err)
	}
	return done, nil
}

func (m *Machine) SetMigrationCompleted(done bool) error {
	return m.store.SetSetting(constants.SettingMigrationCompleted, strconv.FormatBool(done))
}

// Reset forgets both flags, returning the device to Unset
func (m *Machine) Reset() error {
	if err := m.store.DeleteSettings(constants.SettingAppMode, constants.SettingMigrationCompleted); err != nil {
		return err
	}
	logger.Warn("Mode reset to unset")
	return nil
}
