package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// Config captures the runtime details required to open the instrument
// port. An empty Port triggers autodetection over the usual USB serial
// device names.
type Config struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	Settle      time.Duration `yaml:"settle"`
	Handshake   string        `yaml:"handshake"`
}

func (c *Config) ApplyDefaults() {
	if c.Baud <= 0 {
		c.Baud = 9600
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
}

func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return errors.New("baud must be positive")
	}
	return nil
}

// Source reads newline-terminated measurement lines from a serial
// port. ReadLine assembles partial reads across calls, so a line split
// by the driver still comes out whole.
type Source struct {
	cfg  Config
	port *serial.Port

	mu   sync.Mutex
	open bool

	// pending is only touched by the reading goroutine.
	pending []byte
	buf     [256]byte
}

// Open connects to the instrument. The firmware resets when the port
// opens, so Open waits the configured settle time before sending the
// handshake that starts the measurement stream.
func Open(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Port == "" {
		detected, err := Detect()
		if err != nil {
			return nil, err
		}
		cfg.Port = detected
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}

	if cfg.Settle > 0 {
		time.Sleep(cfg.Settle)
	}
	if err := port.Flush(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("flush %s: %w", cfg.Port, err)
	}
	if cfg.Handshake != "" {
		if _, err := port.Write([]byte(cfg.Handshake)); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("handshake %s: %w", cfg.Port, err)
		}
	}

	return &Source{cfg: cfg, port: port, open: true}, nil
}

func (s *Source) ReadLine() ([]byte, error) {
	if !s.IsOpen() {
		return nil, fmt.Errorf("serial %s closed: %w", s.cfg.Port, ports.ErrSourceFatal)
	}

	deadline := time.Now().Add(s.cfg.ReadTimeout)
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := make([]byte, i+1)
			copy(line, s.pending[:i+1])
			s.pending = s.pending[:copy(s.pending, s.pending[i+1:])]
			return line, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		n, err := s.port.Read(s.buf[:])
		if n > 0 {
			s.pending = append(s.pending, s.buf[:n]...)
			continue
		}
		if err == nil || errors.Is(err, io.EOF) {
			// Driver timeout with no data; report an empty read.
			return nil, nil
		}
		if !s.IsOpen() {
			return nil, fmt.Errorf("serial %s closed: %w", s.cfg.Port, ports.ErrSourceFatal)
		}
		return nil, fmt.Errorf("serial %s read: %w", s.cfg.Port, err)
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	s.mu.Unlock()
	return s.port.Close()
}

func (s *Source) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Source) Name() string {
	return "serial:" + s.cfg.Port
}

var _ ports.LineSource = (*Source)(nil)
