package orificeflow

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → Acquire →
// Persist without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// AcquireOption configures the instrument side of the pipeline.
type AcquireOption func(*Flow)

// PersistOption configures the storage side of the pipeline.
type PersistOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a
// Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it
// before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced
// scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// Acquire records instrument-side overrides (source, queue,
// observability).
func (f *Flow) Acquire(opts ...AcquireOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Persist records storage-side overrides and builds a Runtime ready to
// run.
func (f *Flow) Persist(opts ...PersistOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for Persist + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...PersistOption) error {
	rt, err := f.Persist(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// AcquireSource injects a custom instrument source (replay files,
// network feeds, test scripts).
func AcquireSource(src LineSource) AcquireOption {
	return func(f *Flow) {
		if f != nil && src != nil {
			f.appendOptions(WithLineSource(src))
		}
	}
}

// AcquireQueue swaps the in-memory queue for a caller-provided
// implementation.
func AcquireQueue(q RecordQueue) AcquireOption {
	return func(f *Flow) {
		if f != nil && q != nil {
			f.appendOptions(WithRecordQueue(q))
		}
	}
}

// AcquireObservability overrides the default Prometheus-based
// observability stack.
func AcquireObservability(obs Observability) AcquireOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// PersistSink injects a custom HistorySink implementation.
func PersistSink(s HistorySink) PersistOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithHistorySink(s))
		}
	}
}

// PersistObservability replaces the default observability backend.
func PersistObservability(obs Observability) PersistOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// PersistCallback installs a sink built from a simple per-sample
// function.
func PersistCallback(name string, fn SampleFunc) PersistOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithHistorySink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
