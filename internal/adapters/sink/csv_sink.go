package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// ErrClosed is returned by sinks that receive writes after Close.
var ErrClosed = errors.New("sink closed")

var csvHeader = []string{"timestamp_iso", "elapsed_seconds", "flow_rate_L_s", "delta_h_cm", "raw_line"}

// CSVSink streams accepted samples to a CSV file as they arrive. Rows
// sit in the writer's buffer until Flush, so a crash loses at most one
// flush interval of data. The header is written and pushed to disk at
// open time.
type CSVSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *csv.Writer
	rows   int
	closed bool
}

func NewCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv header: %w", err)
	}
	return &CSVSink{path: path, file: f, w: w}, nil
}

func (c *CSVSink) WriteSample(s domain.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("csv %s: %w", c.path, ErrClosed)
	}
	if err := c.w.Write(csvRecord(s)); err != nil {
		return err
	}
	c.rows++
	return c.w.Error()
}

func (c *CSVSink) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.w.Flush()
	err := c.w.Error()
	if e := c.file.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

func (c *CSVSink) Name() string { return "csv" }

// Path reports where the stream is being written.
func (c *CSVSink) Path() string { return c.path }

// Rows reports how many samples have been written, header excluded.
func (c *CSVSink) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// WriteCSVFile writes a complete sample table in one shot, the
// shutdown path of runs that keep history in memory instead of
// streaming.
func WriteCSVFile(path string, samples []domain.Sample) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return err
	}
	for _, s := range samples {
		if err := w.Write(csvRecord(s)); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	err = w.Error()
	if e := f.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

func csvRecord(s domain.Sample) []string {
	return []string{
		s.Time.Format(time.RFC3339Nano),
		strconv.FormatFloat(s.Elapsed, 'g', -1, 64),
		strconv.FormatFloat(s.FlowRate, 'g', -1, 64),
		strconv.FormatFloat(s.HeadCM, 'g', -1, 64),
		s.Raw,
	}
}

var _ ports.HistorySink = (*CSVSink)(nil)
