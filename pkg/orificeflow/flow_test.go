package orificeflow

import (
	"context"
	"testing"
	"time"
)

func TestConfFromConfigAndBuilder(t *testing.T) {
	cfg := &Config{
		Source: SourceSim,
		Storage: StorageConfig{
			Mode: ModeStream,
			Dir:  t.TempDir(),
		},
	}

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	src := &stubSource{}
	snk := &stubHistorySink{}

	rt, err := flow.
		Acquire(
			AcquireSource(src),
			AcquireObservability(&stubObservability{}),
		).
		Persist(
			PersistSink(snk),
			PersistObservability(&stubObservability{}),
		)
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}
	if rt.src != src {
		t.Fatalf("expected custom source to be wired")
	}
	if !rt.store.Streaming() {
		t.Fatalf("expected custom sink to be wired")
	}
}

func TestFlowRunUsesPersistOptions(t *testing.T) {
	cfg := &Config{
		Source: SourceSim,
		Policy: Policy{
			CollectEvery: time.Millisecond,
		},
	}

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop immediately so the run only exercises startup and shutdown.
	cancel()
	if err := flow.Acquire(
		AcquireSource(NewLineFeed(1)),
		AcquireObservability(&stubObservability{}),
	).Run(ctx,
		PersistSink(&stubHistorySink{}),
		PersistObservability(&stubObservability{}),
	); err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}

func TestPersistCallbackInstallsSink(t *testing.T) {
	cfg := &Config{Source: SourceSim}

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	rt, err := flow.
		Acquire(AcquireSource(&stubSource{}), AcquireObservability(&stubObservability{})).
		Persist(PersistCallback("collect", func(Sample) error { return nil }))
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}
	if !rt.store.Streaming() {
		t.Fatalf("expected the callback sink to stream samples")
	}
}
