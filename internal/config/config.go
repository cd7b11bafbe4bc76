// Package config loads tally's settings from config.yaml, an optional .env
// file and TALLY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/julianstephens/tally/internal/archive"
	"github.com/julianstephens/tally/internal/constants"
)

const (
	DriverHTTP     = "http"
	DriverPostgres = "postgres"

	// FileName is looked up in the config directory when no --config is given
	FileName = "config.yaml"
	EnvFile  = ".env"
)

type RemoteConfig struct {
	Driver  string        `mapstructure:"driver"`
	URL     string        `mapstructure:"url"`
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
	Gzip    bool          `mapstructure:"gzip"`
	UserID  string        `mapstructure:"user_id"`
}

type ExportConfig struct {
	Source string `mapstructure:"source"`
}

type BackupConfig struct {
	Max int `mapstructure:"max"`
}

type Config struct {
	Remote  RemoteConfig `mapstructure:"remote"`
	Export  ExportConfig `mapstructure:"export"`
	Backups BackupConfig `mapstructure:"backups"`
	// Token overrides the keyring; it only comes from TALLY_TOKEN
	Token string `mapstructure:"token"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-"`
}

// explicit environment names that don't follow the key path
var envAliases = map[string]string{
	"export.source": "TALLY_SOURCE",
	"backups.max":   "TALLY_MAX_BACKUPS",
	"token":         "TALLY_TOKEN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.driver", DriverHTTP)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.timeout", constants.DefaultRemoteTimeout)
	v.SetDefault("remote.gzip", false)
	v.SetDefault("remote.user_id", "")
	v.SetDefault("export.source", constants.DefaultExportSource)
	v.SetDefault("backups.max", constants.MaxBackups)
	v.SetDefault("token", "")
}

// Load reads configuration. file is an explicit config path and must exist
// when set; otherwise dir/config.yaml is used if present. A .env file in dir
// is loaded into the environment without overriding variables already set.
func Load(file, dir string) (*Config, error) {
	if dir != "" {
		envPath := filepath.Join(dir, EnvFile)
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	used := ""
	switch {
	case file != "":
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
		used = file
	case dir != "":
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			v.SetConfigFile(candidate)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", candidate, err)
			}
			used = candidate
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	cfg.Remote.Driver = strings.ToLower(strings.TrimSpace(cfg.Remote.Driver))
	cfg.Export.Source = strings.ToLower(strings.TrimSpace(cfg.Export.Source))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Remote:  RemoteConfig{Driver: DriverHTTP, Timeout: constants.DefaultRemoteTimeout},
		Export:  ExportConfig{Source: constants.DefaultExportSource},
		Backups: BackupConfig{Max: constants.MaxBackups},
	}
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var problems []string

	switch c.Remote.Driver {
	case DriverHTTP, DriverPostgres:
	default:
		problems = append(problems, fmt.Sprintf("remote.driver %q must be http or postgres", c.Remote.Driver))
	}
	if c.Remote.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("remote.timeout must be positive, got %s", c.Remote.Timeout))
	}
	if c.Remote.URL != "" {
		u, err := url.Parse(c.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("remote.url %q must be an http(s) URL", c.Remote.URL))
		}
	}
	if _, err := archive.ParseSource(c.Export.Source); err != nil {
		problems = append(problems, fmt.Sprintf("export.source: %v", err))
	}
	if c.Backups.Max <= 0 {
		problems = append(problems, fmt.Sprintf("backups.max must be positive, got %d", c.Backups.Max))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Source returns the validated export source
func (c *Config) Source() archive.Source {
	s, _ := archive.ParseSource(c.Export.Source)
	return s
}
