package sink

import (
	"errors"
	"strings"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// Tee fans every sample out to several sinks. Errors from individual
// sinks are joined, not short-circuited, so one failing destination
// does not starve the others.
type Tee struct {
	sinks []ports.HistorySink
}

func NewTee(sinks ...ports.HistorySink) *Tee {
	return &Tee{sinks: sinks}
}

func (t *Tee) WriteSample(s domain.Sample) error {
	var err error
	for _, sk := range t.sinks {
		if e := sk.WriteSample(s); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (t *Tee) Flush() error {
	var err error
	for _, sk := range t.sinks {
		if e := sk.Flush(); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (t *Tee) Close() error {
	var err error
	for _, sk := range t.sinks {
		if e := sk.Close(); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (t *Tee) Name() string {
	names := make([]string, len(t.sinks))
	for i, sk := range t.sinks {
		names[i] = sk.Name()
	}
	return "tee(" + strings.Join(names, "+") + ")"
}

var _ ports.HistorySink = (*Tee)(nil)
