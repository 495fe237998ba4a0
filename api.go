package orificeflow

import (
	base "github.com/muhammedalf909/Smart-Orifice-Flow-System/pkg/orificeflow"
)

// Re-exported errors for convenience.
var (
	ErrSourceFatal       = base.ErrSourceFatal
	ErrLineFormat        = base.ErrLineFormat
	ErrReaderJoinTimeout = base.ErrReaderJoinTimeout
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrLineFeedClosed    = base.ErrLineFeedClosed
)

// Type aliases so consumers can import the module root directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	DrainPolicy     = base.DrainPolicy
	SerialConfig    = base.SerialConfig
	SimulatorConfig = base.SimulatorConfig
	StorageConfig   = base.StorageConfig
	PostgresConfig  = base.PostgresConfig
	MetricsConfig   = base.MetricsConfig
	LoggingConfig   = base.LoggingConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	AcquireOption   = base.AcquireOption
	PersistOption   = base.PersistOption
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Sample          = base.Sample
	RawRecord       = base.RawRecord
	SampleFunc      = base.SampleFunc
	LineSource      = base.LineSource
	RecordQueue     = base.RecordQueue
	HistorySink     = base.HistorySink
	Observability   = base.Observability
	Field           = base.Field
	Snapshot        = base.Snapshot
	SourceState     = base.SourceState
	LineFeed        = base.LineFeed
)

// Source selection, storage modes, and rig states.
const (
	SourceAuto   = base.SourceAuto
	SourceSerial = base.SourceSerial
	SourceSim    = base.SourceSim

	ModeFinal  = base.ModeFinal
	ModeStream = base.ModeStream

	StateNormal   = base.StateNormal
	StateMaxHold  = base.StateMaxHold
	StateDraining = base.StateDraining
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func AcquireSource(src LineSource) AcquireOption {
	return base.AcquireSource(src)
}

func AcquireQueue(q RecordQueue) AcquireOption {
	return base.AcquireQueue(q)
}

func AcquireObservability(obs Observability) AcquireOption {
	return base.AcquireObservability(obs)
}

func PersistSink(s HistorySink) PersistOption {
	return base.PersistSink(s)
}

func PersistObservability(obs Observability) PersistOption {
	return base.PersistObservability(obs)
}

func PersistCallback(name string, fn SampleFunc) PersistOption {
	return base.PersistCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithLineSource(src LineSource) RuntimeOption {
	return base.WithLineSource(src)
}

func WithRecordQueue(q RecordQueue) RuntimeOption {
	return base.WithRecordQueue(q)
}

func WithHistorySink(s HistorySink) RuntimeOption {
	return base.WithHistorySink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn SampleFunc) HistorySink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (HistorySink, <-chan Sample, func()) {
	return base.NewChannelSink(name, buffer)
}

// Line feed for external producers.
func NewLineFeed(buffer int) *LineFeed {
	return base.NewLineFeed(buffer)
}

// Wire format helpers.
func FormatLine(flowLs, headM float64) string {
	return base.FormatLine(flowLs, headM)
}

func ParseLine(text string) (flowLs, headCM float64, err error) {
	return base.ParseLine(text)
}
