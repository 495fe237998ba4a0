package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/queue"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitDone(t *testing.T, r *Reader, d time.Duration) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(d):
		t.Fatal("reader did not exit in time")
	}
}

type readStep struct {
	line []byte
	err  error
}

type mockSource struct {
	mu        sync.Mutex
	steps     []readStep
	idx       int
	repeat    []byte // returned forever once the script is exhausted
	repeatErr error  // likewise, takes precedence over repeat
	open      bool
	reads     int
}

func newMockSource(steps ...readStep) *mockSource {
	return &mockSource{steps: steps, open: true}
}

func (m *mockSource) ReadLine() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.idx < len(m.steps) {
		st := m.steps[m.idx]
		m.idx++
		return st.line, st.err
	}
	if m.repeatErr != nil {
		return nil, m.repeatErr
	}
	if m.repeat != nil {
		return m.repeat, nil
	}
	return nil, nil
}

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *mockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

type mockObs struct {
	mu     sync.Mutex
	counts map[string]float64
	warns  []string
	errs   []string
	infos  []string
	debugs []string
}

func (m *mockObs) LogDebug(msg string, _ ...ports.Field) { m.append(&m.debugs, msg) }
func (m *mockObs) LogInfo(msg string, _ ...ports.Field)  { m.append(&m.infos, msg) }
func (m *mockObs) LogWarn(msg string, _ ...ports.Field)  { m.append(&m.warns, msg) }
func (m *mockObs) LogError(msg string, _ error, _ ...ports.Field) {
	m.append(&m.errs, msg)
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}

func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]float64)
	}
	m.counts[name] += v
}

func (m *mockObs) append(dst *[]string, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*dst = append(*dst, msg)
}

func (m *mockObs) count(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func (m *mockObs) logged(dst *[]string, msg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range *dst {
		if s == msg {
			n++
		}
	}
	return n
}

func fastPolicy() ports.Policy {
	return ports.Policy{
		EmptyPause:  time.Millisecond,
		ErrorPause:  time.Millisecond,
		MaxErrors:   10,
		JoinTimeout: 2 * time.Second,
	}
}

func TestReaderForwardsLinesInOrder(t *testing.T) {
	src := newMockSource(
		readStep{line: []byte("Q(L/s): 0.1000 h_Snap(m): 0.050000\n")},
		readStep{line: []byte("Q(L/s): 0.1100 h_Snap(m): 0.055000\r\n")},
		readStep{line: []byte("Q(L/s): 0.1200 h_Snap(m): 0.060000 \xb5\n")},
	)
	q := queue.NewMemQueue(0)
	obs := &mockObs{}
	r := NewReader(src, q, fastPolicy(), obs)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, "three records", func() bool { return q.Len() == 3 })
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	recs := q.DequeueBatch(0)
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	if !strings.HasPrefix(recs[0].Text, "Q(L/s): 0.1000") ||
		!strings.HasPrefix(recs[1].Text, "Q(L/s): 0.1100") ||
		!strings.HasPrefix(recs[2].Text, "Q(L/s): 0.1200") {
		t.Fatalf("order lost: %q %q %q", recs[0].Text, recs[1].Text, recs[2].Text)
	}
	// The third line carried a non-UTF-8 byte; it must still parse.
	if !strings.HasSuffix(recs[2].Text, "µ") {
		t.Errorf("latin-1 byte not decoded: %q", recs[2].Text)
	}
	if _, err := domain.ParseRecord(recs[2]); err != nil {
		t.Errorf("decoded line unparseable: %v", err)
	}
	for i, rec := range recs {
		if rec.CapturedAt.IsZero() {
			t.Errorf("record %d missing capture time", i)
		}
	}
	if got := obs.count("orifice_lines_read_total"); got != 3 {
		t.Errorf("lines_read = %v, want 3", got)
	}
}

func TestReaderFatalErrorStopsImmediately(t *testing.T) {
	src := newMockSource(readStep{err: fmt.Errorf("open port gone: %w", ports.ErrSourceFatal)})
	q := queue.NewMemQueue(0)
	obs := &mockObs{}
	r := NewReader(src, q, fastPolicy(), obs)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r, 2*time.Second)

	if q.Len() != 0 {
		t.Fatalf("queue = %d records after fatal first read, want 0", q.Len())
	}
	if obs.logged(&obs.errs, "source_fatal") != 1 {
		t.Fatalf("expected one source_fatal log, got %v", obs.errs)
	}
}

func TestReaderTransientErrorCeiling(t *testing.T) {
	src := newMockSource()
	src.repeatErr = errors.New("device hiccup")
	q := queue.NewMemQueue(0)
	obs := &mockObs{}
	pol := fastPolicy()
	pol.MaxErrors = 5
	r := NewReader(src, q, pol, obs)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r, 2*time.Second)

	if got := src.readCount(); got != 5 {
		t.Fatalf("reads before giving up = %d, want 5", got)
	}
	// Only the first three errors get logged individually.
	if got := obs.logged(&obs.warns, "read_error"); got != 3 {
		t.Fatalf("read_error warnings = %d, want 3", got)
	}
	if obs.logged(&obs.errs, "read_error_ceiling_reached") != 1 {
		t.Fatalf("expected ceiling log, got %v", obs.errs)
	}
	if q.Len() != 0 {
		t.Fatalf("queue = %d, want 0", q.Len())
	}
}

func TestReaderErrorCountResetsOnGoodLine(t *testing.T) {
	line := []byte("Q(L/s): 0.1000 h_Snap(m): 0.050000\n")
	hiccup := errors.New("device hiccup")
	src := newMockSource(
		readStep{err: hiccup},
		readStep{err: hiccup},
		readStep{line: line},
		readStep{err: hiccup},
		readStep{err: hiccup},
		readStep{line: line},
	)
	q := queue.NewMemQueue(0)
	obs := &mockObs{}
	pol := fastPolicy()
	pol.MaxErrors = 3
	r := NewReader(src, q, pol, obs)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, "two records", func() bool { return q.Len() == 2 })
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if obs.logged(&obs.errs, "read_error_ceiling_reached") != 0 {
		t.Fatal("ceiling reached despite resets")
	}
}

func TestReaderExitsWhenSourceCloses(t *testing.T) {
	src := newMockSource()
	_ = src.Close()
	q := queue.NewMemQueue(0)
	obs := &mockObs{}
	r := NewReader(src, q, fastPolicy(), obs)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r, 2*time.Second)
	if obs.logged(&obs.warns, "source_closed_midrun") != 1 {
		t.Fatalf("expected closed-source warning, got %v", obs.warns)
	}
}

func TestReaderDrainEngagesAndRunsDry(t *testing.T) {
	src := newMockSource()
	src.repeat = []byte("Q(L/s): 0.1612 h_Snap(m): 0.172000\n")
	q := queue.NewMemQueue(0)
	obs := &mockObs{}
	pol := fastPolicy()
	pol.Drain = ports.DrainPolicy{
		Enabled:     true,
		Threshold:   0.150,
		Sustain:     3,
		StepSeconds: 0.5,
		Interval:    time.Millisecond,
	}
	r := NewReader(src, q, pol, obs)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, "drain engagement", func() bool { return r.State() == StateDraining })

	// The physical source is never consulted again.
	reads := src.readCount()
	time.Sleep(30 * time.Millisecond)
	if got := src.readCount(); got != reads {
		t.Fatalf("source read %d more times after drain engaged", got-reads)
	}

	var heads []float64
	waitFor(t, 5*time.Second, "drain to run dry", func() bool {
		for _, rec := range q.DequeueBatch(0) {
			_, head, err := domain.ParseLine(rec.Text)
			if err != nil {
				t.Errorf("synthesized line unparseable: %q", rec.Text)
				continue
			}
			heads = append(heads, head)
		}
		return len(heads) > 0 && heads[len(heads)-1] == 0
	})
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Ignore the leading real readings; the synthesized tail must
	// fall monotonically and finish dry.
	start := 0
	for start < len(heads) && heads[start] >= 17.19 {
		start++
	}
	tail := heads[start:]
	if len(tail) < 10 {
		t.Fatalf("synthesized tail too short: %d points", len(tail))
	}
	for i := 1; i < len(tail); i++ {
		if tail[i] > tail[i-1]+1e-9 {
			t.Fatalf("drain head rose at %d: %v -> %v", i, tail[i-1], tail[i])
		}
	}
	if tail[len(tail)-1] != 0 {
		t.Fatalf("drain never reached dry: %v", tail[len(tail)-1])
	}
	if obs.logged(&obs.infos, "drain_engaged") != 1 {
		t.Fatalf("expected one drain_engaged log, got %v", obs.infos)
	}
	if r.State() != StateDraining {
		t.Fatalf("state = %v after dry, want draining", r.State())
	}
}

func TestReaderStopIsBoundedAndIdempotent(t *testing.T) {
	src := newMockSource()
	q := queue.NewMemQueue(0)
	r := NewReader(src, q, fastPolicy(), &mockObs{})

	if err := r.Stop(); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("second start should fail")
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
