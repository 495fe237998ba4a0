package simulated

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

const (
	// ProfileSCurve fills the tank along a logistic curve and holds
	// near the maximum head, the shape of a normal acquisition run.
	ProfileSCurve = "scurve"
	// ProfileRamp steps the head through a repeating staircase with a
	// little noise, the shape used for calibration sessions.
	ProfileRamp = "ramp"
)

// Config captures the physics of the simulated instrument.
type Config struct {
	Profile     string        `yaml:"profile"`
	K           float64       `yaml:"k"`
	HMax        float64       `yaml:"h_max"`
	Rate        float64       `yaml:"rate"`
	Midpoint    float64       `yaml:"midpoint"`
	StepSeconds float64       `yaml:"step_seconds"`
	MaxSteps    int           `yaml:"max_steps"`
	DryBelow    float64       `yaml:"dry_below"`
	Interval    time.Duration `yaml:"interval"`
	Seed        int64         `yaml:"seed"`
}

func (c *Config) ApplyDefaults() {
	if c.Profile == "" {
		c.Profile = ProfileSCurve
	}
	if c.K <= 0 {
		if c.Profile == ProfileRamp {
			c.K = 0.3
		} else {
			c.K = 0.3656
		}
	}
	if c.HMax <= 0 {
		c.HMax = 0.175
	}
	if c.Rate <= 0 {
		c.Rate = 0.8
	}
	if c.Midpoint <= 0 {
		c.Midpoint = 6.0
	}
	if c.StepSeconds <= 0 {
		c.StepSeconds = 0.25
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 50
	}
	if c.DryBelow <= 0 {
		c.DryBelow = 0.5
	}
	if c.Interval <= 0 {
		if c.Profile == ProfileRamp {
			c.Interval = 20 * time.Millisecond
		} else {
			c.Interval = 200 * time.Millisecond
		}
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileSCurve, ProfileRamp:
		return nil
	default:
		return fmt.Errorf("unknown simulator profile %q", c.Profile)
	}
}

// Source generates instrument lines from a deterministic physics
// model. It satisfies the same contract as the serial adapter so the
// pipeline cannot tell the two apart.
type Source struct {
	cfg  Config
	mu   sync.Mutex
	step int
	open bool
	rng  *rand.Rand
}

func New(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{
		cfg:  cfg,
		open: true,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (s *Source) ReadLine() ([]byte, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, fmt.Errorf("simulated source closed: %w", ports.ErrSourceFatal)
	}
	s.step++
	var line string
	switch s.cfg.Profile {
	case ProfileRamp:
		line = s.rampLine()
	default:
		line = s.scurveLine()
	}
	interval := s.cfg.Interval
	s.mu.Unlock()

	time.Sleep(interval)
	return []byte(line + "\n"), nil
}

// scurveLine advances the logistic fill curve one step. The step
// counter saturates so the head parks just under HMax, which is what
// lets the drain watchdog see a sustained near-maximum flow.
func (s *Source) scurveLine() string {
	n := s.step
	if n > s.cfg.MaxSteps {
		n = s.cfg.MaxSteps
	}
	t := float64(n) * s.cfg.StepSeconds

	h := 0.0
	if t >= s.cfg.DryBelow {
		h = domain.LogisticRise(s.cfg.HMax, s.cfg.Rate, s.cfg.Midpoint, t)
	}
	if h > s.cfg.HMax {
		h = s.cfg.HMax
	}
	if h < 0 {
		h = 0
	}
	return domain.FormatLine(domain.FlowFromHead(s.cfg.K, h), h)
}

// rampLine walks a 20-step staircase of heads with measurement noise
// on both channels, repeating forever.
func (s *Source) rampLine() string {
	h := 0.005 + float64(s.step%20)*0.0015
	h += s.rng.Float64()*2e-4 - 1e-4
	if h < 0 {
		h = 0
	}
	q := domain.FlowFromHead(s.cfg.K, h)
	q += s.rng.Float64()*0.01 - 0.005
	return domain.FormatLine(q, h)
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *Source) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Source) Name() string {
	return "sim:" + s.cfg.Profile
}

var _ ports.LineSource = (*Source)(nil)
