package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/archive"
)

// clearEnv unsets the given variables for the test and restores them afterwards
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

var tallyEnv = []string{
	"TALLY_REMOTE_DRIVER", "TALLY_REMOTE_URL", "TALLY_REMOTE_DSN", "TALLY_REMOTE_TIMEOUT",
	"TALLY_REMOTE_GZIP", "TALLY_REMOTE_USER_ID", "TALLY_SOURCE", "TALLY_MAX_BACKUPS", "TALLY_TOKEN",
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, tallyEnv...)

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DriverHTTP, cfg.Remote.Driver)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 14, cfg.Backups.Max)
	assert.Equal(t, archive.SourceWeb, cfg.Source())
	assert.Empty(t, cfg.File)
}

func TestLoadFileFromDir(t *testing.T) {
	clearEnv(t, tallyEnv...)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `
remote:
  url: https://sync.example.com
  timeout: 10s
  gzip: true
export:
  source: ios
backups:
  max: 5
`)

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.Remote.URL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.Remote.Gzip)
	assert.Equal(t, archive.SourceIOS, cfg.Source())
	assert.Equal(t, 5, cfg.Backups.Max)
	assert.Equal(t, filepath.Join(dir, FileName), cfg.File)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t, tallyEnv...)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), "remote:\n  url: https://file.example.com\n")

	t.Setenv("TALLY_REMOTE_URL", "https://env.example.com")
	t.Setenv("TALLY_REMOTE_TIMEOUT", "2m")
	t.Setenv("TALLY_SOURCE", "android")
	t.Setenv("TALLY_MAX_BACKUPS", "3")
	t.Setenv("TALLY_TOKEN", "tok_env")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Remote.URL)
	assert.Equal(t, 2*time.Minute, cfg.Remote.Timeout)
	assert.Equal(t, archive.SourceAndroid, cfg.Source())
	assert.Equal(t, 3, cfg.Backups.Max)
	assert.Equal(t, "tok_env", cfg.Token)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t, tallyEnv...)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, EnvFile), "TALLY_REMOTE_DRIVER=postgres\nTALLY_REMOTE_USER_ID=u42\n")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Remote.Driver)
	assert.Equal(t, "u42", cfg.Remote.UserID)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	clearEnv(t, tallyEnv...)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Remote.Driver = "grpc"
	cfg.Remote.Timeout = 0
	cfg.Remote.URL = "sync.example.com"
	cfg.Export.Source = "desktop"
	cfg.Backups.Max = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"remote.driver", "remote.timeout", "remote.url", "export.source", "backups.max"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.NoError(t, Default().Validate())
}
