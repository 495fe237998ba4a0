package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// PromObs backs the Observability port with Prometheus metrics and
// structured slog logging. Metric names are fixed at construction;
// unknown names are ignored rather than registered on the fly.
type PromObs struct {
	log      *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs(logger *slog.Logger) *PromObs {
	if logger == nil {
		logger = slog.Default()
	}

	linesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orifice_lines_read_total",
		Help: "Raw lines captured from the source, synthesized drain lines included.",
	})
	parseFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orifice_parse_failures_total",
		Help: "Lines that did not match the instrument format.",
	})
	appended := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orifice_samples_appended_total",
		Help: "Samples accepted into the store.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orifice_records_dropped_total",
		Help: "Records displaced from a bounded transfer queue.",
	})
	sinkRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orifice_sink_rows_total",
		Help: "Rows handed to the durable history sink.",
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orifice_queue_depth",
		Help: "Records currently buffered between reader and collector.",
	})
	windowSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orifice_window_size",
		Help: "Points currently held in the live plot window.",
	})
	sourceState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orifice_source_state",
		Help: "Reader state: 0 normal, 1 holding at maximum, 2 draining.",
	})
	appendLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orifice_append_latency_seconds",
		Help:    "Time to accept one sample into the store, sink write included.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
	})

	prometheus.MustRegister(linesRead, parseFailures, appended, dropped, sinkRows,
		queueDepth, windowSize, sourceState, appendLatency)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			"orifice_lines_read_total":       linesRead,
			"orifice_parse_failures_total":   parseFailures,
			"orifice_samples_appended_total": appended,
			"orifice_records_dropped_total":  dropped,
			"orifice_sink_rows_total":        sinkRows,
		},
		gauges: map[string]prometheus.Gauge{
			"orifice_queue_depth":  queueDepth,
			"orifice_window_size":  windowSize,
			"orifice_source_state": sourceState,
		},
		histos: map[string]prometheus.Observer{
			"orifice_append_latency_seconds": appendLatency,
		},
	}
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	p.log.Debug(msg, attrs(fields)...)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.log.Warn(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	args := attrs(fields)
	if err != nil {
		args = append(args, "err", err)
	}
	p.log.Error(msg, args...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(fields []ports.Field) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return args
}

var _ ports.Observability = (*PromObs)(nil)
