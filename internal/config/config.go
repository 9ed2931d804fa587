// Package config loads hhsync settings from defaults, an optional config
// file, HHSYNC_* environment variables and command-line flags, in that
// order of precedence (flags win).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full hhsync configuration.
type Config struct {
	DBPath       string          `mapstructure:"db_path"`
	PushOnInsert bool            `mapstructure:"push_on_insert"`
	Remote       RemoteConfig    `mapstructure:"remote"`
	Probe        ProbeConfig     `mapstructure:"probe"`
	Dashboard    DashboardConfig `mapstructure:"dashboard"`
	Log          LogConfig       `mapstructure:"log"`
}

// RemoteConfig points at the cloud store. An empty URL means local only.
type RemoteConfig struct {
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ProbeConfig controls connectivity probing. An empty Address probes the
// remote URL's host.
type ProbeConfig struct {
	Address  string        `mapstructure:"address"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DashboardConfig controls the events server. Port 0 disables it.
type DashboardConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig controls the rotating log file. An empty File logs to stderr only.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// EnvPrefix prefixes every environment override, e.g. HHSYNC_REMOTE_URL.
const EnvPrefix = "HHSYNC"

// DefaultDir is where the database and config live by default.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hhsync"
	}
	return filepath.Join(home, ".hhsync")
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("db_path", filepath.Join(DefaultDir(), "survey.db"))
	v.SetDefault("push_on_insert", true)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.auth_token", "")
	v.SetDefault("probe.address", "")
	v.SetDefault("probe.interval", 15*time.Second)
	v.SetDefault("probe.timeout", 5*time.Second)
	v.SetDefault("dashboard.port", 0)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file and decodes the merged settings. With file
// empty, hhsync.{toml,yaml,json} is looked up in DefaultDir and the working
// directory, and a missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("hhsync")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the current settings of v.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("probe.interval must be positive, got %s", c.Probe.Interval)
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	return nil
}

// Watch re-decodes the config whenever its file changes and hands the result
// to onChange. Changes that fail to decode are reported through onError and
// otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config, fsnotify.Event), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		c, err := Decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(c, e)
	})
	v.WatchConfig()
}
