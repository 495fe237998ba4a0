package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/serialport"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/simulated"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
	"gopkg.in/yaml.v3"
)

// Source selection modes. Auto tries the serial port first and falls
// back to the simulator when no device can be opened.
const (
	SourceAuto   = "auto"
	SourceSerial = "serial"
	SourceSim    = "sim"
)

// Storage modes. Final keeps samples in memory and writes one CSV at
// shutdown; stream appends to the sinks row by row during the run.
const (
	ModeFinal  = "final"
	ModeStream = "stream"
)

type Config struct {
	Source    string            `yaml:"source"`
	Policy    ports.Policy      `yaml:"policy"`
	Serial    serialport.Config `yaml:"serial"`
	Simulator simulated.Config  `yaml:"simulator"`
	Storage   StorageConfig     `yaml:"storage"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Logging   LoggingConfig     `yaml:"logging"`
}

type StorageConfig struct {
	Mode       string         `yaml:"mode"`
	Dir        string         `yaml:"dir"`
	Prefix     string         `yaml:"prefix"`
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

// MetricsConfig controls the Prometheus endpoint. An empty addr
// leaves the endpoint off.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a ready-to-run configuration without reading a file.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Source == "" {
		c.Source = SourceAuto
	}
	if c.Policy.WindowPoints == 0 {
		c.Policy.WindowPoints = 100
	}
	if c.Policy.HistoryCap == 0 {
		c.Policy.HistoryCap = 10_000
	}
	if c.Policy.FlushEvery == 0 {
		c.Policy.FlushEvery = 10
	}
	if c.Policy.EmptyPause == 0 {
		c.Policy.EmptyPause = 10 * time.Millisecond
	}
	if c.Policy.ErrorPause == 0 {
		c.Policy.ErrorPause = 100 * time.Millisecond
	}
	if c.Policy.MaxErrors == 0 {
		c.Policy.MaxErrors = 10
	}
	if c.Policy.JoinTimeout == 0 {
		c.Policy.JoinTimeout = 2 * time.Second
	}
	if c.Policy.CollectEvery == 0 {
		c.Policy.CollectEvery = 100 * time.Millisecond
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = ModeFinal
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data"
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = "orifice_log"
	}
	if c.Storage.Postgres.Table == "" {
		c.Storage.Postgres.Table = "samples"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	c.Serial.ApplyDefaults()
	c.Simulator.ApplyDefaults()
}

func (c *Config) Validate() error {
	switch c.Source {
	case SourceAuto, SourceSerial, SourceSim:
	default:
		return fmt.Errorf("source must be %q, %q or %q, got %q", SourceAuto, SourceSerial, SourceSim, c.Source)
	}
	switch c.Storage.Mode {
	case ModeFinal, ModeStream:
	default:
		return fmt.Errorf("storage.mode must be %q or %q, got %q", ModeFinal, ModeStream, c.Storage.Mode)
	}
	if c.Policy.WindowPoints <= 0 {
		return fmt.Errorf("policy.window_points must be positive")
	}
	if c.Policy.HistoryCap < 0 {
		return fmt.Errorf("policy.history_cap must not be negative")
	}
	if c.Policy.FlushEvery <= 0 {
		return fmt.Errorf("policy.flush_every must be positive")
	}
	if c.Policy.MaxErrors <= 0 {
		return fmt.Errorf("policy.max_errors must be positive")
	}
	if c.Storage.Postgres.ConnString != "" && c.Storage.Postgres.Table == "" {
		return fmt.Errorf("storage.postgres.table is required when conn_string is set")
	}
	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("serial config: %w", err)
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator config: %w", err)
	}
	return nil
}

// CSVPath builds the timestamped path of the final CSV for a run that
// started at ts.
func (s StorageConfig) CSVPath(ts time.Time) string {
	name := fmt.Sprintf("%s_%s.csv", s.Prefix, ts.Format("20060102_150405"))
	return filepath.Join(s.Dir, name)
}

// Streaming reports whether samples should be persisted as they arrive
// rather than in one file at shutdown.
func (s StorageConfig) Streaming() bool {
	return s.Mode == ModeStream
}

// SlogLevel maps the configured level name onto a slog level,
// defaulting to info for anything unrecognized.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
