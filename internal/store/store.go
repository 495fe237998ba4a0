package store

import (
	"errors"
	"sync"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// Config sizes the store.
type Config struct {
	WindowPoints int // live window capacity per series
	HistoryCap   int // full history ceiling; <= 0 means unbounded
	FlushEvery   int // sink flush cadence in appended rows
}

// Snapshot is a point-in-time copy of the live plot window. The three
// series are always the same length.
type Snapshot struct {
	Elapsed []float64
	Flow    []float64
	Head    []float64
}

// SampleStore is the single shared state between the acquisition side
// and whoever renders or exports the data. One mutex guards
// everything: the three window series can never disagree in length.
//
// With a sink attached the store streams rows out and keeps no full
// history in memory; without one it accumulates history for the
// shutdown export.
type SampleStore struct {
	mu  sync.Mutex
	cfg Config

	sink ports.HistorySink
	obs  ports.Observability

	elapsed []float64
	flow    []float64
	head    []float64

	started bool
	start   time.Time

	history []domain.Sample
	rows    uint64
	closed  bool
}

func New(cfg Config, snk ports.HistorySink, obs ports.Observability) *SampleStore {
	if cfg.WindowPoints <= 0 {
		cfg.WindowPoints = 100
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 10
	}
	return &SampleStore{
		cfg:     cfg,
		sink:    snk,
		obs:     obs,
		elapsed: make([]float64, 0, cfg.WindowPoints),
		flow:    make([]float64, 0, cfg.WindowPoints),
		head:    make([]float64, 0, cfg.WindowPoints),
	}
}

// Append accepts one parsed sample. The first accepted sample pins the
// run's time origin; every sample's Elapsed is measured from it.
// Returns false once the store is closed. Sink failures are logged and
// do not reject the sample.
func (st *SampleStore) Append(s domain.Sample) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return false
	}

	if !st.started {
		st.started = true
		st.start = s.Time
	}
	s.Elapsed = s.Time.Sub(st.start).Seconds()

	if len(st.elapsed) >= st.cfg.WindowPoints {
		st.elapsed = append(st.elapsed[:0], st.elapsed[1:]...)
		st.flow = append(st.flow[:0], st.flow[1:]...)
		st.head = append(st.head[:0], st.head[1:]...)
	}
	st.elapsed = append(st.elapsed, s.Elapsed)
	st.flow = append(st.flow, s.FlowRate)
	st.head = append(st.head, s.HeadCM)

	st.rows++
	if st.sink != nil {
		if err := st.sink.WriteSample(s); err != nil {
			st.logError("history sink write failed", err)
		} else if st.obs != nil {
			st.obs.IncCounter("orifice_sink_rows_total", 1)
		}
		if st.rows%uint64(st.cfg.FlushEvery) == 0 {
			if err := st.sink.Flush(); err != nil {
				st.logError("history sink flush failed", err)
			}
		}
	} else {
		st.history = append(st.history, s)
		if st.cfg.HistoryCap > 0 && len(st.history) > st.cfg.HistoryCap {
			st.history = append(st.history[:0], st.history[1:]...)
		}
	}
	return true
}

// Window copies the live plot series.
func (st *SampleStore) Window() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := Snapshot{
		Elapsed: make([]float64, len(st.elapsed)),
		Flow:    make([]float64, len(st.flow)),
		Head:    make([]float64, len(st.head)),
	}
	copy(snap.Elapsed, st.elapsed)
	copy(snap.Flow, st.flow)
	copy(snap.Head, st.head)
	return snap
}

// History copies the accumulated samples. Streaming stores keep none,
// so the result is empty there.
func (st *SampleStore) History() []domain.Sample {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]domain.Sample, len(st.history))
	copy(out, st.history)
	return out
}

// WindowLen reports the current window fill.
func (st *SampleStore) WindowLen() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.elapsed)
}

// Appended reports how many samples the store has accepted.
func (st *SampleStore) Appended() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rows
}

// Streaming reports whether rows go to a durable sink as they arrive.
func (st *SampleStore) Streaming() bool {
	return st.sink != nil
}

// Close seals the store. Further appends are refused; an attached sink
// is flushed and closed.
func (st *SampleStore) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil
	}
	st.closed = true
	if st.sink == nil {
		return nil
	}
	var err error
	if e := st.sink.Flush(); e != nil {
		err = errors.Join(err, e)
	}
	if e := st.sink.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

func (st *SampleStore) logError(msg string, err error) {
	if st.obs != nil {
		st.obs.LogError(msg, err, ports.Field{Key: "sink", Value: st.sink.Name()})
	}
}
