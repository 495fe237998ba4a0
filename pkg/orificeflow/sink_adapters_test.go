package orificeflow

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []Sample
	snk := NewCallbackSink("cb", func(s Sample) error {
		received = append(received, s)
		return nil
	})

	input := Sample{
		Time:     time.Unix(1, 0),
		Elapsed:  0.2,
		FlowRate: 0.1349,
		HeadCM:   13.62,
		Raw:      "Q(L/s): 0.1349 h_Snap(m): 0.136200",
	}

	if err := snk.WriteSample(input); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(received))
	}
	if received[0].FlowRate != input.FlowRate || received[0].Raw != input.Raw {
		t.Fatalf("mismatched sample payload: %+v vs %+v", received[0], input)
	}
	if snk.Name() != "cb" {
		t.Fatalf("unexpected sink name %q", snk.Name())
	}
	if err := snk.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if err := snk.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	snk := NewCallbackSink("", nil)
	if err := snk.WriteSample(Sample{}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if snk.Name() != "callback" {
		t.Fatalf("expected fallback name, got %q", snk.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	snk, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := Sample{FlowRate: 0.0421, HeadCM: 1.33}
	errCh := make(chan error, 1)

	go func() {
		errCh <- snk.WriteSample(input)
	}()

	var got Sample
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel sample")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if got.FlowRate != input.FlowRate {
		t.Fatalf("unexpected sample data: %+v", got)
	}

	closeFn()
	if err := snk.WriteSample(input); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}

func TestChannelSinkCloseClosesChannel(t *testing.T) {
	snk, ch, _ := NewChannelSink("", 0)

	if err := snk.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, open := <-ch; open {
		t.Fatalf("expected the channel to be closed")
	}
	if err := snk.WriteSample(Sample{}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed after Close, got %v", err)
	}
}
