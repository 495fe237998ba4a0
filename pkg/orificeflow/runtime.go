package orificeflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/observability"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/queue"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/serialport"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/simulated"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/adapters/sink"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/app/config"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/app/pipeline"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/store"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        LineSource
	queue         RecordQueue
	sink          HistorySink
	observability Observability
}

// WithLineSource injects a custom instrument source (a replay file, a
// network feed, a test script) in place of the serial port or the
// built-in simulator.
func WithLineSource(src LineSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithRecordQueue swaps the in-memory transfer queue for a
// caller-provided implementation.
func WithRecordQueue(q RecordQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithHistorySink injects a custom sink. The store then streams every
// sample to it as it arrives, regardless of the configured storage
// mode.
func WithHistorySink(s HistorySink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// Runtime wires up the source → queue → store pipeline and exposes
// simple lifecycle hooks for embedding an acquisition run inside any
// Go program.
type Runtime struct {
	cfg *Config
	obs ports.Observability

	src    ports.LineSource
	queue  ports.RecordQueue
	store  *store.SampleStore
	reader *pipeline.Reader
	coll   *pipeline.Collector

	runID     string
	startedAt time.Time

	db      *sql.DB
	archive *sink.Archive

	metricsSrv  *http.Server
	gaugeStopCh chan struct{}

	collectCancel context.CancelFunc
	collectDone   chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRuntime bootstraps the default adapters: a serial or simulated
// source per the config, the in-memory queue, the sample store, and
// Prometheus observability. RuntimeOption values override any of
// them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.Logging.SlogLevel(),
		}))
		obs = observability.NewPromObs(logger)
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueued)
	}

	src := overrides.source
	if src == nil {
		var err error
		src, err = openSource(cfg, obs)
		if err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		cfg:       cfg,
		obs:       obs,
		src:       src,
		queue:     q,
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}

	snk := overrides.sink
	if snk == nil && cfg.Storage.Streaming() {
		var err error
		snk, err = rt.openStreamSinks()
		if err != nil {
			// A run is worth more than its live persistence: fall back
			// to buffering in memory and saving at shutdown.
			obs.LogError("stream_sink_open_failed", err)
			snk = nil
		}
	}

	rt.store = store.New(store.Config{
		WindowPoints: cfg.Policy.WindowPoints,
		HistoryCap:   cfg.Policy.HistoryCap,
		FlushEvery:   cfg.Policy.FlushEvery,
	}, snk, obs)
	rt.reader = pipeline.NewReader(src, q, cfg.Policy, obs)
	rt.coll = pipeline.NewCollector(q, rt.store, obs, cfg.Policy.CollectEvery)

	return rt, nil
}

func openSource(cfg *Config, obs ports.Observability) (ports.LineSource, error) {
	switch cfg.Source {
	case config.SourceSim:
		return simulated.New(cfg.Simulator)
	case config.SourceSerial:
		return serialport.Open(cfg.Serial)
	default:
		src, err := serialport.Open(cfg.Serial)
		if err == nil {
			return src, nil
		}
		obs.LogWarn("serial_unavailable",
			ports.Field{Key: "err", Value: err.Error()},
			ports.Field{Key: "fallback", Value: "simulator"})
		return simulated.New(cfg.Simulator)
	}
}

// openStreamSinks builds the configured persistence stack for a
// streaming run: always the CSV file, plus Postgres and the SQLite
// archive when configured.
func (r *Runtime) openStreamSinks() (ports.HistorySink, error) {
	if err := os.MkdirAll(r.cfg.Storage.Dir, 0o755); err != nil {
		return nil, err
	}
	csv, err := sink.NewCSVSink(r.cfg.Storage.CSVPath(r.startedAt))
	if err != nil {
		return nil, err
	}
	sinks := []ports.HistorySink{csv}

	if cs := r.cfg.Storage.Postgres.ConnString; cs != "" {
		db, err := sql.Open("postgres", cs)
		if err != nil {
			_ = csv.Close()
			return nil, err
		}
		r.db = db
		sinks = append(sinks, sink.NewPostgresSink(db, r.cfg.Storage.Postgres.Table, r.runID))
	}

	if path := r.cfg.Storage.SQLitePath; path != "" {
		arch, err := sink.OpenArchive(path)
		if err == nil {
			var run *sink.RunSink
			run, err = arch.StartRun(context.Background(), sink.RunMeta{
				ID:        r.runID,
				StartedAt: r.startedAt,
				Source:    r.src.Name(),
			})
			if err != nil {
				_ = arch.Close()
			} else {
				r.archive = arch
				sinks = append(sinks, run)
			}
		}
		if err != nil {
			_ = csv.Close()
			if r.db != nil {
				_ = r.db.Close()
				r.db = nil
			}
			return nil, err
		}
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sink.NewTee(sinks...), nil
}

// Start launches the reader and collector goroutines and, when
// configured, the metrics endpoint. It returns immediately; call Run
// to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	if err := r.reader.Start(context.Background()); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.collectCancel = cancel
	r.collectDone = make(chan struct{})
	go func() {
		r.coll.Run(ctx)
		close(r.collectDone)
	}()

	if r.cfg.Metrics.Addr != "" {
		r.startMetrics()
	}
	r.gaugeStopCh = make(chan struct{})
	go r.recordRuntimeGauges(r.gaugeStopCh, time.Second)

	r.obs.LogInfo("run_started",
		ports.Field{Key: "run_id", Value: r.runID},
		ports.Field{Key: "source", Value: r.src.Name()},
		ports.Field{Key: "streaming", Value: r.store.Streaming()})
	return nil
}

// Run starts the runtime and blocks until the context is cancelled or
// the reader exits on its own, then shuts down gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-r.reader.Done():
		r.obs.LogWarn("reader_exited_early",
			ports.Field{Key: "state", Value: r.reader.State().String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops acquisition, drains the queue into the store, and
// persists whatever the run produced. It is safe to call more than
// once; later calls return the first result.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.shutdownErr = r.shutdown(ctx)
	})
	return r.shutdownErr
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var errs []error

	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if err := r.reader.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := r.src.Close(); err != nil {
		errs = append(errs, err)
	}

	// Cancelling the collector triggers its final drain, so everything
	// the reader enqueued makes it into the store before it closes.
	if r.collectCancel != nil {
		r.collectCancel()
		select {
		case <-r.collectDone:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	if err := r.store.Close(); err != nil {
		errs = append(errs, err)
	}

	// A failed best-effort save must not turn an orderly shutdown into
	// a failure; whatever was collected stays in memory until exit.
	if !r.store.Streaming() {
		if err := r.persistFinal(); err != nil {
			r.obs.LogError("final_save_failed", err,
				ports.Field{Key: "run_id", Value: r.runID})
		}
	}

	if r.archive != nil {
		if err := r.archive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	r.obs.LogInfo("run_finished",
		ports.Field{Key: "run_id", Value: r.runID},
		ports.Field{Key: "samples", Value: r.store.Appended()})
	return errors.Join(errs...)
}

// persistFinal writes the buffered history out at the end of a
// non-streaming run: one CSV file, plus Postgres and the SQLite
// archive when configured.
func (r *Runtime) persistFinal() error {
	history := r.store.History()
	if len(history) == 0 {
		r.obs.LogInfo("no_samples_to_save", ports.Field{Key: "run_id", Value: r.runID})
		return nil
	}

	var errs []error

	if err := os.MkdirAll(r.cfg.Storage.Dir, 0o755); err != nil {
		errs = append(errs, err)
	} else {
		path := r.cfg.Storage.CSVPath(r.startedAt)
		if err := sink.WriteCSVFile(path, history); err != nil {
			errs = append(errs, err)
		} else {
			r.obs.LogInfo("csv_saved",
				ports.Field{Key: "path", Value: path},
				ports.Field{Key: "rows", Value: len(history)})
		}
	}

	if cs := r.cfg.Storage.Postgres.ConnString; cs != "" {
		db, err := sql.Open("postgres", cs)
		if err != nil {
			errs = append(errs, err)
		} else {
			pg := sink.NewPostgresSink(db, r.cfg.Storage.Postgres.Table, r.runID)
			errs = append(errs, writeAll(pg, history), db.Close())
		}
	}

	if path := r.cfg.Storage.SQLitePath; path != "" {
		arch, err := sink.OpenArchive(path)
		if err != nil {
			errs = append(errs, err)
		} else {
			run, err := arch.StartRun(context.Background(), sink.RunMeta{
				ID:        r.runID,
				StartedAt: r.startedAt,
				Source:    r.src.Name(),
			})
			if err != nil {
				errs = append(errs, err)
			} else {
				errs = append(errs, writeAll(run, history))
			}
			errs = append(errs, arch.Close())
		}
	}

	return errors.Join(errs...)
}

func writeAll(s ports.HistorySink, rows []domain.Sample) error {
	var errs []error
	for _, row := range rows {
		if err := s.WriteSample(row); err != nil {
			errs = append(errs, err)
			break
		}
	}
	errs = append(errs, s.Flush(), s.Close())
	return errors.Join(errs...)
}

// RunID identifies this acquisition run in every durable sink.
func (r *Runtime) RunID() string {
	return r.runID
}

// Window returns a copy of the live plot series.
func (r *Runtime) Window() Snapshot {
	return r.store.Window()
}

// History returns the buffered samples of a non-streaming run.
func (r *Runtime) History() []Sample {
	return r.store.History()
}

// Samples reports how many samples the store has accepted so far.
func (r *Runtime) Samples() uint64 {
	return r.store.Appended()
}

// SourceState reports the drain watchdog's view of the rig.
func (r *Runtime) SourceState() SourceState {
	return r.reader.State()
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()
}

func (r *Runtime) recordRuntimeGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.obs.SetGauge("orifice_queue_depth", float64(r.queue.Len()))
			r.obs.SetGauge("orifice_window_size", float64(r.store.WindowLen()))
			r.obs.SetGauge("orifice_source_state", float64(r.reader.State()))
		}
	}
}
