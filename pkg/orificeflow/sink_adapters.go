package orificeflow

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to
// after being closed.
var ErrChannelSinkClosed = errors.New("orificeflow: channel sink closed")

// SampleFunc is invoked once per sample as the store accepts it.
type SampleFunc func(Sample) error

// NewCallbackSink adapts a SampleFunc into a full HistorySink so
// callers can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn SampleFunc) HistorySink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes samples via a channel; it returns the sink,
// the read-only channel, and a close function the caller should invoke
// during shutdown. Closing the sink itself closes the channel too.
func NewChannelSink(name string, buffer int) (HistorySink, <-chan Sample, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Sample, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   SampleFunc
}

func (s *callbackSink) WriteSample(sample Sample) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(sample)
}

func (s *callbackSink) Flush() error { return nil }
func (s *callbackSink) Close() error { return nil }
func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan Sample
	closed chan struct{}
	once   sync.Once
}

func (s *channelSink) WriteSample(sample Sample) error {
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- sample:
		return nil
	}
}

func (s *channelSink) Flush() error { return nil }

func (s *channelSink) Close() error {
	s.close()
	return nil
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}
