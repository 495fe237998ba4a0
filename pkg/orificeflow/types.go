package orificeflow

import (
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/app/pipeline"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/store"
)

// Sample is one parsed measurement: elapsed seconds, flow rate in L/s,
// differential head in cm, and the raw instrument line it came from.
type Sample = domain.Sample

// RawRecord is an undecoded instrument line plus its capture time.
type RawRecord = domain.RawRecord

// LineSource produces instrument lines. Implement it to feed the
// pipeline from anything that is not a serial port.
type LineSource = ports.LineSource

// RecordQueue is the unbounded-by-default transfer queue between the
// reader and the collector.
type RecordQueue = ports.RecordQueue

// HistorySink consumes samples one row at a time and persists them to
// any downstream system.
type HistorySink = ports.HistorySink

// Observability emits logs and metrics about the acquisition run.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Policy carries the operational knobs of a run.
type Policy = ports.Policy

// DrainPolicy configures the synthesized drain-down watchdog.
type DrainPolicy = ports.DrainPolicy

// Snapshot is a point-in-time copy of the live plot window.
type Snapshot = store.Snapshot

// SourceState reports what the reader believes the rig is doing.
type SourceState = pipeline.SourceState

const (
	StateNormal   = pipeline.StateNormal
	StateMaxHold  = pipeline.StateMaxHold
	StateDraining = pipeline.StateDraining
)

// Re-exported errors for convenience.
var (
	ErrSourceFatal       = ports.ErrSourceFatal
	ErrLineFormat        = domain.ErrLineFormat
	ErrReaderJoinTimeout = pipeline.ErrReaderJoinTimeout
)

// FormatLine renders a flow and head pair in the instrument's wire
// format, for custom sources and replay tooling.
func FormatLine(flowLs, headM float64) string {
	return domain.FormatLine(flowLs, headM)
}

// ParseLine extracts the flow rate (L/s) and head (cm) from one
// instrument line.
func ParseLine(text string) (flowLs, headCM float64, err error) {
	return domain.ParseLine(text)
}
