// Package config loads the playercore configuration with layered sources:
// struct defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"playercore.yaml",
	"playercore.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "PLAYERCORE_CONFIG"

// Config is the playercore configuration.
type Config struct {
	API      APIConfig      `koanf:"api"`
	Tracking TrackingConfig `koanf:"tracking"`
	Playback PlaybackConfig `koanf:"playback"`
	Storage  StorageConfig  `koanf:"storage"`
	MPD      MPDConfig      `koanf:"mpd"`
}

// APIConfig locates the backend collaborators.
type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// TrackingConfig sets the journal and sync thresholds.
type TrackingConfig struct {
	MaxEvents      int           `koanf:"max_events"`
	MaxWaitTime    time.Duration `koanf:"max_wait_time"`
	DebounceWindow time.Duration `koanf:"debounce_window"`
	CheckInterval  time.Duration `koanf:"check_interval"`
	StartupDelay   time.Duration `koanf:"startup_delay"`
	RetentionDays  int           `koanf:"retention_days"`
}

// PlaybackConfig sets the playback engine timeouts.
type PlaybackConfig struct {
	ReadyTimeout time.Duration `koanf:"ready_timeout"`
}

// StorageConfig locates the local tracking store.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// MPDConfig configures the optional MPD audio sink.
type MPDConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
}

// defaultConfig returns the built-in defaults, applied before file and env
// layers.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Tracking: TrackingConfig{
			MaxEvents:      10,
			MaxWaitTime:    5 * time.Minute,
			DebounceWindow: time.Second,
			CheckInterval:  5 * time.Minute,
			StartupDelay:   3 * time.Second,
			RetentionDays:  30,
		},
		Playback: PlaybackConfig{
			ReadyTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Path: "data/tracking.db",
		},
		MPD: MPDConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    6600,
		},
	}
}

// Load builds the configuration from defaults, the first config file found
// and environment variables, in that precedence order (env wins).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.Tracking.MaxEvents <= 0 {
		return fmt.Errorf("tracking.max_events must be positive, got %d", c.Tracking.MaxEvents)
	}
	if c.Tracking.MaxWaitTime <= 0 {
		return fmt.Errorf("tracking.max_wait_time must be positive")
	}
	if c.Tracking.RetentionDays <= 0 {
		return fmt.Errorf("tracking.retention_days must be positive, got %d", c.Tracking.RetentionDays)
	}
	if c.Playback.ReadyTimeout <= 0 {
		return fmt.Errorf("playback.ready_timeout must be positive")
	}
	if c.MPD.Enabled && c.MPD.Port <= 0 {
		return fmt.Errorf("mpd.port must be positive, got %d", c.MPD.Port)
	}
	return nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped variables are skipped so unrelated environment noise cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"playercore_api_base_url": "api.base_url",
		"playercore_api_timeout":  "api.timeout",

		"playercore_tracking_max_events":      "tracking.max_events",
		"playercore_tracking_max_wait_time":   "tracking.max_wait_time",
		"playercore_tracking_debounce":        "tracking.debounce_window",
		"playercore_tracking_check_interval":  "tracking.check_interval",
		"playercore_tracking_startup_delay":   "tracking.startup_delay",
		"playercore_tracking_retention_days":  "tracking.retention_days",

		"playercore_playback_ready_timeout": "playback.ready_timeout",

		"playercore_storage_path": "storage.path",

		"playercore_mpd_enabled":  "mpd.enabled",
		"playercore_mpd_host":     "mpd.host",
		"playercore_mpd_port":     "mpd.port",
		"playercore_mpd_password": "mpd.password",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
