// Package config resolves settings from an optional YAML file and
// environment variables, env taking precedence, and builds the shared
// logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Backend endpoints
	BackendWSURL string `yaml:"backend_ws_url"`
	AuthURL      string `yaml:"auth_url"`

	// Session behavior
	AuthTimeout       time.Duration `yaml:"auth_timeout"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	ReconnectRetries  int           `yaml:"reconnect_retries"`
	ReconnectBackoff  time.Duration `yaml:"reconnect_backoff"`

	// Image proxy
	ProxyCacheTTL time.Duration `yaml:"proxy_cache_ttl"`

	// Storage
	DataDir string `yaml:"data_dir"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// LogLevelName is the YAML-facing spelling of LogLevel.
	LogLevelName string `yaml:"log_level"`
}

// Load resolves configuration: defaults, then the YAML file at
// INKSTONE_CONFIG (or $XDG_CONFIG_HOME/inkstone/config.yaml), then
// environment variables.
func Load() (Config, error) {
	cfg := defaults()

	path := os.Getenv("INKSTONE_CONFIG")
	if path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "inkstone", "config.yaml")
		}
	}
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	mergeEnv(&cfg)
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	return cfg, nil
}

func defaults() Config {
	dataDir := "inkstone"
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "inkstone", "novels")
	}
	return Config{
		BackendWSURL:      "ws://localhost:8080/ws",
		AuthURL:           "http://localhost:8080",
		AuthTimeout:       10 * time.Second,
		GenerationTimeout: 30 * time.Minute,
		ReconnectRetries:  3,
		ReconnectBackoff:  2 * time.Second,
		ProxyCacheTTL:     30 * time.Minute,
		DataDir:           dataDir,
		LogFile:           filepath.Join(os.TempDir(), "inkstone.log"),
		LogLevelName:      "INFO",
	}
}

// mergeFile overlays values from a YAML file. A missing file is fine;
// a malformed one is not.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	setString(&cfg.BackendWSURL, "INKSTONE_BACKEND_WS_URL")
	setString(&cfg.AuthURL, "INKSTONE_AUTH_URL")
	setDuration(&cfg.AuthTimeout, "INKSTONE_AUTH_TIMEOUT")
	setDuration(&cfg.GenerationTimeout, "INKSTONE_GENERATION_TIMEOUT")
	setInt(&cfg.ReconnectRetries, "INKSTONE_RECONNECT_RETRIES")
	setDuration(&cfg.ReconnectBackoff, "INKSTONE_RECONNECT_BACKOFF")
	setDuration(&cfg.ProxyCacheTTL, "INKSTONE_PROXY_CACHE_TTL")
	setString(&cfg.DataDir, "INKSTONE_DATA_DIR")
	setString(&cfg.LogFile, "INKSTONE_LOG_FILE")
	setString(&cfg.LogLevelName, "INKSTONE_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			*dst = n
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
