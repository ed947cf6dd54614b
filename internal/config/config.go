// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig selects where and how journals are kept.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	Backend    string `yaml:"backend"` // jsonl or sqlite
	SyncWrites bool   `yaml:"sync_writes"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GreptimeConfig enables the telemetry mirror when Endpoint is set.
type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	// Timeout bounds each mirror write.
	Timeout time.Duration `yaml:"timeout"`
}

// StateConfig shapes the keyed state.
type StateConfig struct {
	DefaultCounters []string `yaml:"default_counters"`
}

// SimulationConfig drives the simulate command.
type SimulationConfig struct {
	Helmets   int           `yaml:"helmets"`
	Rovers    int           `yaml:"rovers"`
	CenterLat float64       `yaml:"center_lat"`
	CenterLon float64       `yaml:"center_lon"`
	Tick      time.Duration `yaml:"tick"`
	Seed      int64         `yaml:"seed"`
}

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Greptime   GreptimeConfig   `yaml:"greptime"`
	State      StateConfig      `yaml:"state"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8001",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:    "data",
			Backend:    "jsonl",
			SyncWrites: true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Greptime: GreptimeConfig{
			Database: "public",
			Timeout:  2 * time.Second,
		},
		State: StateConfig{
			DefaultCounters: []string{"button_1", "button_2", "button_3"},
		},
		Simulation: SimulationConfig{
			Helmets:   3,
			Rovers:    1,
			CenterLat: 11.495050,
			CenterLon: 77.276972,
			Tick:      time.Second,
			Seed:      1,
		},
	}
}

// Load reads the YAML file at path over the defaults after validating it
// against the CUE schema, then applies environment overrides. An empty path
// skips the file.
func Load(path, schemaPath string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := ValidateWithCue(path, data, schemaPath); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("FIELDOPS_ADDR", &c.Server.Addr)
	str("FIELDOPS_DATA_DIR", &c.Storage.DataDir)
	str("FIELDOPS_STORAGE_BACKEND", &c.Storage.Backend)
	str("FIELDOPS_LOG_LEVEL", &c.Log.Level)
	str("GREPTIMEDB_ENDPOINT", &c.Greptime.Endpoint)
	str("GREPTIMEDB_DATABASE", &c.Greptime.Database)
	str("GREPTIMEDB_TABLE", &c.Greptime.Table)
	if v := getenv("FIELDOPS_SYNC_WRITES"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.Storage.SyncWrites = true
		case "0", "false", "no":
			c.Storage.SyncWrites = false
		default:
			return fmt.Errorf("config: FIELDOPS_SYNC_WRITES: invalid boolean %q", v)
		}
	}
	return nil
}

// Validate checks values the schema cannot see, such as those set from the
// environment.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("config: server.addr is required"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("config: storage.data_dir is required"))
	}
	switch c.Storage.Backend {
	case "jsonl", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("config: storage.backend must be jsonl or sqlite, got %q", c.Storage.Backend))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, errors.New("config: server timeouts must not be negative"))
	}
	if c.Greptime.Timeout < 0 {
		errs = append(errs, errors.New("config: greptime.timeout must not be negative"))
	}
	return errors.Join(errs...)
}
