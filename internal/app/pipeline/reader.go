package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// SourceState tracks what the reader believes the rig is doing.
type SourceState int32

const (
	// StateNormal reads and forwards lines from the physical source.
	StateNormal SourceState = iota
	// StateMaxHold has seen a sustained near-maximum flow and is one
	// high reading away from engaging the drain.
	StateMaxHold
	// StateDraining synthesizes a drain-down curve and never consults
	// the physical source again.
	StateDraining
)

func (s SourceState) String() string {
	switch s {
	case StateMaxHold:
		return "max_hold"
	case StateDraining:
		return "draining"
	default:
		return "normal"
	}
}

// ErrReaderJoinTimeout is returned by Stop when the reader goroutine
// does not exit within the policy's join timeout.
var ErrReaderJoinTimeout = errors.New("reader did not stop within join timeout")

// readErrorLogCeiling caps how many consecutive read errors get their
// own log line; past it they only count toward the error ceiling.
const readErrorLogCeiling = 3

// Reader runs the acquisition loop: pull one line from the source,
// decode it, hand it to the transfer queue. It owns the drain
// watchdog, so a rig left running at maximum flow switches to a
// synthesized drain-down instead of logging a flat line forever.
type Reader struct {
	src ports.LineSource
	q   ports.RecordQueue
	pol ports.Policy
	obs ports.Observability

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	state     atomic.Int32
	sustained int
	drainStep int
}

func NewReader(src ports.LineSource, q ports.RecordQueue, pol ports.Policy, obs ports.Observability) *Reader {
	if pol.EmptyPause <= 0 {
		pol.EmptyPause = 10 * time.Millisecond
	}
	if pol.ErrorPause <= 0 {
		pol.ErrorPause = 100 * time.Millisecond
	}
	if pol.MaxErrors <= 0 {
		pol.MaxErrors = 10
	}
	if pol.JoinTimeout <= 0 {
		pol.JoinTimeout = 2 * time.Second
	}
	if pol.Drain.Enabled {
		applyDrainDefaults(&pol.Drain)
	}
	return &Reader{src: src, q: q, pol: pol, obs: obs}
}

func applyDrainDefaults(d *ports.DrainPolicy) {
	if d.Threshold <= 0 {
		d.Threshold = 0.150
	}
	if d.Sustain <= 0 {
		d.Sustain = 15
	}
	if d.K <= 0 {
		d.K = 0.3656
	}
	if d.HMax <= 0 {
		d.HMax = 0.175
	}
	if d.Rate <= 0 {
		d.Rate = 0.8
	}
	if d.Midpoint <= 0 {
		d.Midpoint = 6.0
	}
	if d.StepSeconds <= 0 {
		d.StepSeconds = 0.25
	}
	if d.Floor <= 0 {
		d.Floor = 0.001
	}
	if d.Interval <= 0 {
		d.Interval = 200 * time.Millisecond
	}
}

// Start launches the read loop. A reader runs once; Start after Stop
// returns an error.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("reader already started")
	}
	r.started = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx)
	return nil
}

// Stop cancels the loop and waits for it, bounded by the join
// timeout. A reader that is stuck past the bound is abandoned and
// reported, not waited on forever.
func (r *Reader) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(r.pol.JoinTimeout):
		return ErrReaderJoinTimeout
	}
}

// Done is closed when the read loop has exited, whatever the reason.
func (r *Reader) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// State reports the drain watchdog's view of the rig.
func (r *Reader) State() SourceState {
	return SourceState(r.state.Load())
}

func (r *Reader) setState(s SourceState) {
	r.state.Store(int32(s))
}

func (r *Reader) run(ctx context.Context) {
	defer close(r.done)
	r.obs.LogInfo("reader_started", ports.Field{Key: "source", Value: r.src.Name()})

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			r.obs.LogInfo("reader_stopped", ports.Field{Key: "state", Value: r.State().String()})
			return
		default:
		}

		if r.State() == StateDraining {
			r.synthesizeDrain(ctx)
			continue
		}

		if !r.src.IsOpen() {
			r.obs.LogWarn("source_closed_midrun", ports.Field{Key: "source", Value: r.src.Name()})
			return
		}

		raw, err := r.src.ReadLine()
		if err != nil {
			if errors.Is(err, ports.ErrSourceFatal) {
				r.obs.LogError("source_fatal", err)
				return
			}
			consecutive++
			if consecutive <= readErrorLogCeiling {
				r.obs.LogWarn("read_error",
					ports.Field{Key: "err", Value: err.Error()},
					ports.Field{Key: "attempt", Value: consecutive})
			}
			if consecutive >= r.pol.MaxErrors {
				r.obs.LogError("read_error_ceiling_reached", err,
					ports.Field{Key: "attempts", Value: consecutive})
				return
			}
			r.sleep(ctx, r.pol.ErrorPause)
			continue
		}

		if len(raw) == 0 {
			r.sleep(ctx, r.pol.EmptyPause)
			continue
		}
		consecutive = 0

		text := decodeLine(raw)
		if text == "" {
			continue
		}
		r.publish(text)
	}
}

func (r *Reader) publish(text string) {
	rec := domain.RawRecord{Text: text, CapturedAt: time.Now()}
	if !r.q.Enqueue(rec) {
		r.obs.IncCounter("orifice_records_dropped_total", 1)
	}
	r.obs.IncCounter("orifice_lines_read_total", 1)

	if r.pol.Drain.Enabled && r.State() != StateDraining {
		r.watchFlow(text)
	}
}

// watchFlow is the drain watchdog. A sustained run of near-maximum
// flows moves the state from normal to max-hold; the next high reading
// engages the drain. Any non-high reading resets the run.
func (r *Reader) watchFlow(text string) {
	f, ok := domain.ExtractFlow(text)
	if !ok {
		return
	}
	if f <= r.pol.Drain.Threshold {
		r.sustained = 0
		if r.State() == StateMaxHold {
			r.setState(StateNormal)
		}
		return
	}

	r.sustained++
	switch r.State() {
	case StateNormal:
		if r.sustained > r.pol.Drain.Sustain {
			r.setState(StateMaxHold)
			r.obs.LogInfo("flow_held_at_max",
				ports.Field{Key: "flow", Value: f},
				ports.Field{Key: "sustained", Value: r.sustained})
		}
	case StateMaxHold:
		r.setState(StateDraining)
		r.drainStep = 0
		r.obs.LogInfo("drain_engaged", ports.Field{Key: "flow", Value: f})
	}
}

// synthesizeDrain emits one record of the drain-down curve. Once the
// head falls through the floor the curve reads a dry tank and keeps
// reporting zeros until the run stops.
func (r *Reader) synthesizeDrain(ctx context.Context) {
	d := r.pol.Drain
	r.drainStep++
	t := float64(r.drainStep) * d.StepSeconds

	h := domain.LogisticDrain(d.HMax, d.Rate, d.Midpoint, t)
	if h < d.Floor {
		h = 0
	}
	r.publish(domain.FormatLine(domain.FlowFromHead(d.K, h), h))
	r.sleep(ctx, d.Interval)
}

func (r *Reader) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// decodeLine turns raw bytes into trimmed text. Valid UTF-8 passes
// through; anything else is read as Latin-1, which maps every byte to
// a rune, so no line is ever unrepresentable.
func decodeLine(raw []byte) string {
	if utf8.Valid(raw) {
		return strings.TrimSpace(string(raw))
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return strings.TrimSpace(string(runes))
}
