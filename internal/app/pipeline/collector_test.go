package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/queue"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/store"
)

var collectStart = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

func enqueueLine(q *queue.MemQueue, flow, headM float64, offset time.Duration) {
	q.Enqueue(domain.RawRecord{
		Text:       domain.FormatLine(flow, headM),
		CapturedAt: collectStart.Add(offset),
	})
}

func TestCollectorParsesAndDiscards(t *testing.T) {
	q := queue.NewMemQueue(0)
	st := store.New(store.Config{WindowPoints: 10}, nil, nil)
	obs := &mockObs{}
	c := NewCollector(q, st, obs, time.Second)

	enqueueLine(q, 0.10, 0.050, 0)
	q.Enqueue(domain.RawRecord{Text: "bootloader noise", CapturedAt: collectStart})
	enqueueLine(q, 0.11, 0.055, 200*time.Millisecond)

	if got := c.DrainOnce(); got != 2 {
		t.Fatalf("DrainOnce = %d, want 2", got)
	}
	if st.WindowLen() != 2 {
		t.Fatalf("window = %d, want 2", st.WindowLen())
	}
	if got := obs.count("orifice_parse_failures_total"); got != 1 {
		t.Errorf("parse_failures = %v, want 1", got)
	}
	if got := obs.count("orifice_samples_appended_total"); got != 2 {
		t.Errorf("samples_appended = %v, want 2", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue not emptied: %d", q.Len())
	}
}

func TestCollectorPreservesAcquisitionOrder(t *testing.T) {
	q := queue.NewMemQueue(0)
	st := store.New(store.Config{WindowPoints: 200}, nil, nil)
	c := NewCollector(q, st, &mockObs{}, time.Second)

	for i := 1; i <= 150; i++ {
		enqueueLine(q, float64(i)*0.001, 0.05, time.Duration(i)*200*time.Millisecond)
	}
	if got := c.DrainOnce(); got != 150 {
		t.Fatalf("DrainOnce = %d, want 150", got)
	}

	snap := st.Window()
	if len(snap.Flow) != 150 {
		t.Fatalf("window = %d, want 150", len(snap.Flow))
	}
	for i := 1; i < len(snap.Flow); i++ {
		if snap.Flow[i] <= snap.Flow[i-1] {
			t.Fatalf("order lost at %d: %v then %v", i, snap.Flow[i-1], snap.Flow[i])
		}
	}
	// Elapsed pinned to the first accepted sample.
	if snap.Elapsed[0] != 0 {
		t.Fatalf("first elapsed = %v, want 0", snap.Elapsed[0])
	}
}

func TestCollectorRunDrainsTailOnShutdown(t *testing.T) {
	q := queue.NewMemQueue(0)
	st := store.New(store.Config{WindowPoints: 100}, nil, nil)
	obs := &mockObs{}
	c := NewCollector(q, st, obs, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	for i := 0; i < 5; i++ {
		enqueueLine(q, 0.1, 0.05, time.Duration(i)*200*time.Millisecond)
	}
	waitFor(t, 2*time.Second, "five samples", func() bool { return st.Appended() == 5 })

	// Records enqueued right before cancellation still land.
	enqueueLine(q, 0.2, 0.06, time.Second)
	enqueueLine(q, 0.3, 0.07, time.Second+200*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not exit")
	}
	if st.Appended() != 7 {
		t.Fatalf("appended = %d, want 7 including the tail", st.Appended())
	}
}
