package orificeflow

import (
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/serialport"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/simulated"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/app/config"
)

// Config re-exports the root configuration struct so downstream
// projects can construct or modify it programmatically.
type Config = config.Config

type (
	// SerialConfig holds port, baud, and handshake details.
	SerialConfig = serialport.Config
	// SimulatorConfig holds the physics of the simulated instrument.
	SimulatorConfig = simulated.Config
	// StorageConfig selects the persistence mode and destinations.
	StorageConfig = config.StorageConfig
	// PostgresConfig configures the optional live database sink.
	PostgresConfig = config.PostgresConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LoggingConfig sets the log level.
	LoggingConfig = config.LoggingConfig
)

// Source selection and storage mode values.
const (
	SourceAuto   = config.SourceAuto
	SourceSerial = config.SourceSerial
	SourceSim    = config.SourceSim

	ModeFinal  = config.ModeFinal
	ModeStream = config.ModeStream
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a ready-to-run configuration without reading
// a file.
func DefaultConfig() *Config {
	return config.Default()
}
