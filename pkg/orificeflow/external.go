package orificeflow

import (
	"errors"
	"sync"
	"time"
)

// ErrLineFeedClosed is returned by Push once the feed is closed.
var ErrLineFeedClosed = errors.New("orificeflow: line feed closed")

// feedPollTimeout bounds how long ReadLine blocks waiting for a push,
// so the reader loop keeps servicing cancellation.
const feedPollTimeout = 100 * time.Millisecond

// LineFeed is a LineSource that external producers push into. It lets
// a program that already has flow readings reuse the whole pipeline:
// parsing, the drain watchdog, windowing, and every configured sink.
type LineFeed struct {
	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewLineFeed returns a feed with the given push buffer. Push blocks
// once the buffer is full, which backpressures the producer to the
// reader's pace.
func NewLineFeed(buffer int) *LineFeed {
	if buffer < 0 {
		buffer = 0
	}
	return &LineFeed{
		ch:     make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

// Push formats a flow and head pair in the instrument's wire format
// and feeds it to the pipeline.
func (f *LineFeed) Push(flowLs, headM float64) error {
	return f.PushLine(FormatLine(flowLs, headM))
}

// PushLine feeds one raw line to the pipeline.
func (f *LineFeed) PushLine(line string) error {
	select {
	case <-f.closed:
		return ErrLineFeedClosed
	default:
	}

	select {
	case <-f.closed:
		return ErrLineFeedClosed
	case f.ch <- []byte(line):
		return nil
	}
}

// ReadLine returns the next pushed line, or a timeout read when no
// producer pushed within the poll window.
func (f *LineFeed) ReadLine() ([]byte, error) {
	timer := time.NewTimer(feedPollTimeout)
	defer timer.Stop()

	select {
	case line := <-f.ch:
		return line, nil
	case <-timer.C:
		return nil, nil
	}
}

func (f *LineFeed) Close() error {
	f.once.Do(func() {
		close(f.closed)
	})
	return nil
}

func (f *LineFeed) IsOpen() bool {
	select {
	case <-f.closed:
		return false
	default:
		return true
	}
}

func (f *LineFeed) Name() string { return "feed" }
