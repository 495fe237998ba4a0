package ports

import "github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"

// HistorySink receives every accepted sample. Implementations may
// buffer; Flush forces buffered rows out. Close flushes and releases
// the underlying resource.
type HistorySink interface {
	WriteSample(s domain.Sample) error
	Flush() error
	Close() error
	Name() string
}
