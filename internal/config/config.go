// Package config loads transformar settings from defaults, a YAML file, .env
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Backend
	APIBase     string        `yaml:"api_base"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	ListLimit   int           `yaml:"list_limit"`

	// Local storage
	DBPath    string `yaml:"db"`
	ExportDir string `yaml:"export_dir"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
	Level    string     `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBase:   "http://localhost:8000",
		ListLimit: 10,
		ExportDir: ".",
		LogFile:   filepath.Join(os.TempDir(), "transformar.log"),
		Level:     "INFO",
		LogLevel:  slog.LevelInfo,
	}
}

// DefaultPath returns ~/.config/transformar/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "transformar", "config.yaml")
}

// Load builds the configuration. An explicit path must exist; the default
// path and .env are optional.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return cfg, err
			}
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	cfg.APIBase = getEnv("TRANSFORMAR_API_BASE", cfg.APIBase)
	cfg.DBPath = getEnv("TRANSFORMAR_DB", cfg.DBPath)
	cfg.ExportDir = getEnv("TRANSFORMAR_EXPORT_DIR", cfg.ExportDir)
	cfg.LogFile = getEnv("TRANSFORMAR_LOG_FILE", cfg.LogFile)
	cfg.Level = getEnv("TRANSFORMAR_LOG_LEVEL", cfg.Level)

	if v := os.Getenv("TRANSFORMAR_LIST_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("TRANSFORMAR_LIST_LIMIT: invalid value %q", v)
		}
		cfg.ListLimit = n
	}
	if v := os.Getenv("TRANSFORMAR_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("TRANSFORMAR_HTTP_TIMEOUT: invalid duration %q", v)
		}
		cfg.HTTPTimeout = d
	}

	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.LogLevel = parseLogLevel(cfg.Level)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.ListLimit <= 0 {
		c.ListLimit = Default().ListLimit
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
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
