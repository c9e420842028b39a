package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/abelbrown/questwatch/internal/fetch"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config is the persistent application configuration
type Config struct {
	// Update cycle
	Interval     Duration `json:"interval" env:"INTERVAL"`
	FetchTimeout Duration `json:"fetch_timeout" env:"FETCH_TIMEOUT"`
	MinFetchGap  Duration `json:"min_fetch_gap" env:"MIN_FETCH_GAP"`

	// Snapshots kept per item
	MaxHistory int `json:"max_history" env:"MAX_HISTORY"`

	Storage StorageConfig `json:"storage" envPrefix:"STORAGE_"`

	// Sources are only configurable in the file
	Sources []fetch.Source `json:"sources"`

	Log LogConfig `json:"log" envPrefix:"LOG_"`

	// JSONL cycle journal; empty disables it
	EventsFile string `json:"events_file" env:"EVENTS_FILE"`

	// Empty disables the metrics endpoint
	MetricsAddr string `json:"metrics_addr" env:"METRICS_ADDR"`
}

// StorageConfig selects and locates the persisted artifacts.
type StorageConfig struct {
	Backend     string `json:"backend" env:"BACKEND"` // "json" or "sqlite"
	ItemsFile   string `json:"items_file" env:"ITEMS_FILE"`
	WatchedFile string `json:"watched_file" env:"WATCHED_FILE"`
	DBPath      string `json:"db_path" env:"DB_PATH"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	File  string `json:"file" env:"FILE"` // empty = dated file under ~/.questwatch/logs
	Level string `json:"level" env:"LEVEL"`
}

// Duration is a time.Duration written as "10m" in JSON and env.
type Duration time.Duration

// Std converts to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DataDir returns ~/.questwatch.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".questwatch")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		Interval:     Duration(10 * time.Minute),
		FetchTimeout: Duration(30 * time.Second),
		MaxHistory:   3,
		Storage: StorageConfig{
			Backend:     BackendJSON,
			ItemsFile:   filepath.Join(dir, "questions.json"),
			WatchedFile: filepath.Join(dir, "watched_questions.json"),
			DBPath:      filepath.Join(dir, "questwatch.db"),
		},
		Sources: []fetch.Source{
			{Name: "potential", Kind: fetch.KindFile, Location: filepath.Join(dir, "potential_data.json")},
		},
		Log: LogConfig{
			Level: "info",
		},
		EventsFile: filepath.Join(dir, "questwatch.events.jsonl"),
	}
}

// Load reads the config file at path (ConfigPath if empty), falling back to
// defaults when it does not exist, then applies QUESTWATCH_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from QUESTWATCH_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: "QUESTWATCH_"}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.MaxHistory < 1 {
		return fmt.Errorf("%w: max_history must be >= 1, got %d", ErrInvalid, c.MaxHistory)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalid)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch_timeout must be positive", ErrInvalid)
	}
	if c.MinFetchGap < 0 {
		return fmt.Errorf("%w: min_fetch_gap must not be negative", ErrInvalid)
	}
	switch c.Storage.Backend {
	case BackendJSON:
		if c.Storage.ItemsFile == "" || c.Storage.WatchedFile == "" {
			return fmt.Errorf("%w: json backend needs items_file and watched_file", ErrInvalid)
		}
	case BackendSQLite:
		if c.Storage.DBPath == "" {
			return fmt.Errorf("%w: sqlite backend needs db_path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}
	for _, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

// Save writes config to disk
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
