// Package config loads matcher configuration from a TOML file with
// environment variable overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Thresholds are the tunable cascade parameters. Defaults come from the
// benchmark harness, not from hard-coded stage logic.
type Thresholds struct {
	Fuzzy    float64 `toml:"fuzzy" json:"fuzzy"`
	Ensemble float64 `toml:"ensemble" json:"ensemble"`
	Epsilon  float64 `toml:"epsilon" json:"epsilon"`
	Review   float64 `toml:"review" json:"review"`
}

// Snapshot selects the registry snapshot source.
type Snapshot struct {
	Source string `toml:"source"` // json | sqlite | postgres
	Path   string `toml:"path"`   // file path for json/sqlite
}

// Log configures structured logging output.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console | json
}

// Config is the full application configuration.
type Config struct {
	Snapshot     Snapshot   `toml:"snapshot"`
	Dictionaries string     `toml:"dictionaries"` // TOML correction tables; empty = embedded defaults
	LedgerDir    string     `toml:"ledger_dir"`
	Workers      int        `toml:"workers"`
	Thresholds   Thresholds `toml:"thresholds"`
	Log          Log        `toml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Snapshot:  Snapshot{Source: "json", Path: "data/registry_snapshot.json"},
		LedgerDir: "data/ledger",
		Workers:   8,
		Thresholds: Thresholds{
			Fuzzy:    0.70,
			Ensemble: 0.60,
			Epsilon:  0.05,
			Review:   0.50,
		},
		Log: Log{Level: "info", Format: "console"},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Snapshot.Source {
	case "json", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown snapshot source %q", c.Snapshot.Source)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	for name, v := range map[string]float64{
		"fuzzy":    c.Thresholds.Fuzzy,
		"ensemble": c.Thresholds.Ensemble,
		"review":   c.Thresholds.Review,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("config: threshold %s out of range (0,1]: %v", name, v)
		}
	}
	if c.Thresholds.Epsilon < 0 || c.Thresholds.Epsilon > 0.5 {
		return fmt.Errorf("config: epsilon out of range [0,0.5]: %v", c.Thresholds.Epsilon)
	}
	return nil
}

// WriteSample writes the annotated sample configuration to path.
func WriteSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// applyEnv overlays COLLEGEMATCH_* environment variables.
func (c *Config) applyEnv() {
	c.Snapshot.Source = GetEnv("COLLEGEMATCH_SNAPSHOT_SOURCE", c.Snapshot.Source)
	c.Snapshot.Path = GetEnv("COLLEGEMATCH_SNAPSHOT_PATH", c.Snapshot.Path)
	c.Dictionaries = GetEnv("COLLEGEMATCH_DICTIONARIES", c.Dictionaries)
	c.LedgerDir = GetEnv("COLLEGEMATCH_LEDGER_DIR", c.LedgerDir)
	c.Workers = GetEnvInt("COLLEGEMATCH_WORKERS", c.Workers)
	c.Thresholds.Fuzzy = GetEnvFloat("COLLEGEMATCH_FUZZY_THRESHOLD", c.Thresholds.Fuzzy)
	c.Thresholds.Ensemble = GetEnvFloat("COLLEGEMATCH_ENSEMBLE_THRESHOLD", c.Thresholds.Ensemble)
	c.Log.Level = GetEnv("COLLEGEMATCH_LOG_LEVEL", c.Log.Level)
	c.Log.Format = GetEnv("COLLEGEMATCH_LOG_FORMAT", c.Log.Format)
}

// GetEnv gets an environment variable with a default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvFloat gets a float environment variable with a default.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
