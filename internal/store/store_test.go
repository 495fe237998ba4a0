package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
)

var runStart = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

func at(elapsed float64) domain.Sample {
	return domain.Sample{
		Time:     runStart.Add(time.Duration(elapsed * float64(time.Second))),
		FlowRate: 0.1 + elapsed,
		HeadCM:   5 + elapsed,
		Raw:      "raw",
	}
}

type stubSink struct {
	mu      sync.Mutex
	rows    []domain.Sample
	flushes int
	closed  bool
	failAll bool
}

func (s *stubSink) WriteSample(smp domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("disk full")
	}
	s.rows = append(s.rows, smp)
	return nil
}

func (s *stubSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *stubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Name() string { return "stub" }

func (s *stubSink) stats() (rows, flushes int, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), s.flushes, s.closed
}

func TestFirstAppendPinsTimeOrigin(t *testing.T) {
	st := New(Config{WindowPoints: 10}, nil, nil)

	st.Append(at(0))
	st.Append(at(0.2))
	st.Append(at(0.4))

	snap := st.Window()
	want := []float64{0, 0.2, 0.4}
	for i, w := range want {
		if diff := snap.Elapsed[i] - w; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("elapsed[%d] = %v, want %v", i, snap.Elapsed[i], w)
		}
	}
}

func TestWindowEvictsOldestTogether(t *testing.T) {
	st := New(Config{WindowPoints: 3}, nil, nil)
	for i := 0; i < 5; i++ {
		st.Append(at(float64(i)))
	}

	snap := st.Window()
	if len(snap.Elapsed) != 3 || len(snap.Flow) != 3 || len(snap.Head) != 3 {
		t.Fatalf("window lengths = %d/%d/%d, want 3/3/3",
			len(snap.Elapsed), len(snap.Flow), len(snap.Head))
	}
	if snap.Elapsed[0] != 2 || snap.Elapsed[2] != 4 {
		t.Fatalf("window kept wrong points: %v", snap.Elapsed)
	}
	// Flow and head stayed aligned with elapsed through eviction.
	if snap.Flow[0] != 0.1+2 || snap.Head[0] != 5+2 {
		t.Fatalf("series misaligned: flow=%v head=%v", snap.Flow[0], snap.Head[0])
	}
}

func TestHistoryCapKeepsMostRecent(t *testing.T) {
	st := New(Config{WindowPoints: 100, HistoryCap: 4}, nil, nil)
	for i := 0; i < 6; i++ {
		st.Append(at(float64(i)))
	}

	hist := st.History()
	if len(hist) != 4 {
		t.Fatalf("history = %d samples, want 4", len(hist))
	}
	if hist[0].Elapsed != 2 || hist[3].Elapsed != 5 {
		t.Fatalf("history kept wrong span: %v..%v", hist[0].Elapsed, hist[3].Elapsed)
	}
	if st.Appended() != 6 {
		t.Fatalf("Appended = %d, want 6", st.Appended())
	}
}

func TestStreamingSkipsHistoryAndFlushesOnCadence(t *testing.T) {
	snk := &stubSink{}
	st := New(Config{WindowPoints: 100, FlushEvery: 10}, snk, nil)

	for i := 0; i < 25; i++ {
		st.Append(at(float64(i) * 0.2))
	}

	rows, flushes, _ := snk.stats()
	if rows != 25 {
		t.Fatalf("sink rows = %d, want 25", rows)
	}
	if flushes != 2 {
		t.Fatalf("flushes = %d, want 2 (rows 10 and 20)", flushes)
	}
	if len(st.History()) != 0 {
		t.Fatal("streaming store should keep no history")
	}
	if !st.Streaming() {
		t.Fatal("Streaming() should report true with a sink attached")
	}
}

func TestSinkFailureDoesNotRejectSamples(t *testing.T) {
	snk := &stubSink{failAll: true}
	st := New(Config{WindowPoints: 10, FlushEvery: 10}, snk, nil)

	if !st.Append(at(0)) {
		t.Fatal("append rejected on sink failure")
	}
	if st.WindowLen() != 1 {
		t.Fatalf("window = %d, want 1", st.WindowLen())
	}
	if st.Appended() != 1 {
		t.Fatalf("Appended = %d, want 1", st.Appended())
	}
}

func TestCloseSealsStore(t *testing.T) {
	snk := &stubSink{}
	st := New(Config{WindowPoints: 10, FlushEvery: 10}, snk, nil)
	st.Append(at(0))

	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	rows, flushes, closed := snk.stats()
	if rows != 1 || flushes == 0 || !closed {
		t.Fatalf("sink state after close: rows=%d flushes=%d closed=%v", rows, flushes, closed)
	}

	if st.Append(at(0.2)) {
		t.Fatal("append accepted after close")
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestConcurrentAppendAndSnapshot(t *testing.T) {
	st := New(Config{WindowPoints: 50}, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			st.Append(at(float64(i) * 0.001))
		}
	}()

	for {
		select {
		case <-done:
			snap := st.Window()
			if len(snap.Elapsed) != 50 {
				t.Fatalf("final window = %d, want 50", len(snap.Elapsed))
			}
			return
		default:
			snap := st.Window()
			if len(snap.Elapsed) != len(snap.Flow) || len(snap.Flow) != len(snap.Head) {
				t.Fatalf("series diverged: %d/%d/%d",
					len(snap.Elapsed), len(snap.Flow), len(snap.Head))
			}
		}
	}
}
