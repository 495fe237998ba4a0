package queue

import (
	"sync"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// MemQueue is an in-memory queue that preserves FIFO ordering. With a
// capacity of zero or less it grows without bound, which is the normal
// acquisition mode; a positive capacity turns it into a ring that
// displaces the oldest record when full.
type MemQueue struct {
	mu      sync.Mutex
	data    []domain.RawRecord
	cap     int
	dropped uint64
}

func NewMemQueue(capacity int) *MemQueue {
	q := &MemQueue{cap: capacity}
	if capacity > 0 {
		q.data = make([]domain.RawRecord, 0, capacity)
	}
	return q
}

func (q *MemQueue) Enqueue(rec domain.RawRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap > 0 && len(q.data) >= q.cap {
		q.data = append(q.data[:0], q.data[1:]...)
		q.data = append(q.data, rec)
		q.dropped++
		return false
	}
	q.data = append(q.data, rec)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.RawRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.RawRecord, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Dropped reports how many records a bounded queue has displaced.
func (q *MemQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

var _ ports.RecordQueue = (*MemQueue)(nil)
