package pipeline

import (
	"context"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/store"
)

const drainBatchSize = 64

// Collector is the consuming half of the pipeline: on a fixed cadence
// it empties the transfer queue, parses each line, and appends the
// accepted samples to the store. Unparseable lines are counted and
// discarded without slowing anything down.
type Collector struct {
	q     ports.RecordQueue
	st    *store.SampleStore
	obs   ports.Observability
	every time.Duration
}

func NewCollector(q ports.RecordQueue, st *store.SampleStore, obs ports.Observability, every time.Duration) *Collector {
	if every <= 0 {
		every = 100 * time.Millisecond
	}
	return &Collector{q: q, st: st, obs: obs, every: every}
}

// Run loops until the context ends, then drains whatever the reader
// managed to enqueue before it stopped.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.DrainOnce()
			return
		case <-ticker.C:
			c.DrainOnce()
		}
	}
}

// DrainOnce empties the queue without blocking and reports how many
// samples were appended. Render loops embed this directly when they
// want queue draining on their own tick instead of Run's.
func (c *Collector) DrainOnce() int {
	appended := 0
	for {
		batch := c.q.DequeueBatch(drainBatchSize)
		if len(batch) == 0 {
			return appended
		}
		for _, rec := range batch {
			s, err := domain.ParseRecord(rec)
			if err != nil {
				c.obs.IncCounter("orifice_parse_failures_total", 1)
				c.obs.LogDebug("discard_unparseable_line",
					ports.Field{Key: "line", Value: truncate(rec.Text, 80)})
				continue
			}
			start := time.Now()
			if c.st.Append(s) {
				c.obs.ObserveLatency("orifice_append_latency_seconds", time.Since(start).Seconds())
				c.obs.IncCounter("orifice_samples_appended_total", 1)
				appended++
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
