package domain

import "time"

// RawRecord is one line captured from a LineSource, held verbatim until
// the collector parses it.
type RawRecord struct {
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
}

// Sample is the canonical unit of acquired telemetry in the pipeline.
// Elapsed is assigned by the sample store when the sample is accepted;
// it is seconds since the first sample of the run.
type Sample struct {
	Time     time.Time `json:"ts"`
	Elapsed  float64   `json:"elapsed_s"`
	FlowRate float64   `json:"flow_l_s"`
	HeadCM   float64   `json:"head_cm"`
	Raw      string    `json:"raw"`
}
