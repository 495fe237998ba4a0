package ports

import "github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"

// RecordQueue hands captured lines from the reader to the collector.
// Enqueue never blocks; it reports false when a bounded queue had to
// displace its oldest record to make room.
type RecordQueue interface {
	Enqueue(rec domain.RawRecord) bool
	DequeueBatch(max int) []domain.RawRecord
	Len() int
}
