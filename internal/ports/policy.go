package ports

import "time"

// Policy carries the operational knobs of an acquisition run.
// Durations left at zero fall back to built-in defaults.
type Policy struct {
	WindowPoints int `yaml:"window_points"` // live plot window capacity per series
	HistoryCap   int `yaml:"history_cap"`   // in-memory history ceiling when not streaming
	FlushEvery   int `yaml:"flush_every"`   // durable flush cadence, in appended rows
	MaxQueued    int `yaml:"max_queued"`    // transfer queue cap; <= 0 means unbounded

	EmptyPause   time.Duration `yaml:"empty_pause"`   // reader pause after a timeout read
	ErrorPause   time.Duration `yaml:"error_pause"`   // reader pause after a transient error
	MaxErrors    int           `yaml:"max_errors"`    // consecutive transient errors before giving up
	JoinTimeout  time.Duration `yaml:"join_timeout"`  // bounded wait for the reader on shutdown
	CollectEvery time.Duration `yaml:"collect_every"` // collector drain cadence

	Drain DrainPolicy `yaml:"drain"`
}

// DrainPolicy configures the watchdog that detects a sustained
// near-maximum flow and switches the run to a synthesized drain-down
// curve instead of reading the physical source.
type DrainPolicy struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // L/s considered near maximum
	Sustain   int     `yaml:"sustain"`   // consecutive high readings before switching

	K           float64       `yaml:"k"`            // orifice coefficient of the synthesized curve
	HMax        float64       `yaml:"h_max"`        // head (m) the drain starts from
	Rate        float64       `yaml:"rate"`         // logistic steepness
	Midpoint    float64       `yaml:"midpoint"`     // logistic midpoint (s)
	StepSeconds float64       `yaml:"step_seconds"` // curve time advanced per synthesized record
	Floor       float64       `yaml:"floor"`        // head (m) below which the tank reads empty
	Interval    time.Duration `yaml:"interval"`     // cadence of synthesized records
}
