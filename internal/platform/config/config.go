// Package config resolves grove's on-disk layout and runtime settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apperrors "grove/internal/platform/errors"
)

const (
	defaultDurationMinutes = 25
	defaultTickInterval    = time.Second
	defaultPersistElapsed  = 30 * time.Second
)

// Config holds resolved paths and tunables for a grove data directory.
type Config struct {
	DataDir         string `validate:"required"`
	DBPath          string `validate:"required"`
	PreferencesPath string `validate:"required"`
	ActiveTimerPath string `validate:"required"`
	LogPath         string `validate:"required"`

	DefaultDurationMinutes int           `validate:"min=5,max=120"`
	TickInterval           time.Duration `validate:"gt=0"`
	PersistMaxElapsed      time.Duration `validate:"gt=0"`
	LogLevel               string        `validate:"oneof=debug info warn error"`
	LogFormat              string        `validate:"oneof=auto text json"`
	MetricsAddr            string
}

// New derives a Config with default tunables for dataDir.
func New(dataDir string) (Config, error) {
	if strings.TrimSpace(dataDir) == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:                dataDir,
		DBPath:                 filepath.Join(dataDir, "grove.db"),
		PreferencesPath:        filepath.Join(dataDir, "preferences.yaml"),
		ActiveTimerPath:        filepath.Join(dataDir, "active-timer.json"),
		LogPath:                filepath.Join(dataDir, "grove.log"),
		DefaultDurationMinutes: defaultDurationMinutes,
		TickInterval:           defaultTickInterval,
		PersistMaxElapsed:      defaultPersistElapsed,
		LogLevel:               "info",
		LogFormat:              "auto",
	}, nil
}

// Load builds a Config for dataDir and applies overrides from .env files and
// GROVE_* environment variables. Variables already set in the environment win
// over .env entries.
func Load(dataDir string) (Config, error) {
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}
	for _, file := range []string{filepath.Join(dataDir, ".env"), ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	if cfg.DefaultDurationMinutes, err = getEnvInt("GROVE_DEFAULT_DURATION_MINUTES", cfg.DefaultDurationMinutes); err != nil {
		return Config{}, err
	}
	if cfg.TickInterval, err = getEnvDuration("GROVE_TICK_INTERVAL", cfg.TickInterval); err != nil {
		return Config{}, err
	}
	if cfg.PersistMaxElapsed, err = getEnvDuration("GROVE_PERSIST_MAX_ELAPSED", cfg.PersistMaxElapsed); err != nil {
		return Config{}, err
	}
	cfg.LogLevel = strings.ToLower(getEnv("GROVE_LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("GROVE_LOG_FORMAT", cfg.LogFormat))
	cfg.MetricsAddr = getEnv("GROVE_METRICS_ADDR", cfg.MetricsAddr)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and required paths.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultDataDir returns $GROVE_DATA_DIR, falling back to ~/.grove.
func DefaultDataDir() string {
	if dir := strings.TrimSpace(os.Getenv("GROVE_DATA_DIR")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".grove"
	}
	return filepath.Join(home, ".grove")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w: want an integer", key, value, apperrors.ErrInvalidInput)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w: want a duration such as 1s or 250ms", key, value, apperrors.ErrInvalidInput)
	}
	return d, nil
}
