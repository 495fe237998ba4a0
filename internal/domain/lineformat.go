package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Wire format emitted by the instrument firmware, one measurement per line:
//
//	Q(L/s): 0.1234 h_Snap(m): 0.123456
//
// Flow is litres per second, head is the differential height in metres.
// Parsed samples carry head in centimetres.

const lineTemplate = "Q(L/s): %.4f h_Snap(m): %.6f"

var (
	flowPattern = regexp.MustCompile(`Q\(L/s\):\s*([+-]?[0-9]*\.?[0-9]+(?:[eE][+-]?[0-9]+)?)`)
	headPattern = regexp.MustCompile(`h_Snap\(m\):\s*([+-]?[0-9]*\.?[0-9]+(?:[eE][+-]?[0-9]+)?)`)
)

// ErrLineFormat is returned when a line does not carry both measurement
// fields in parseable form.
var ErrLineFormat = errors.New("line does not match instrument format")

// FormatLine renders a flow/head pair in the instrument wire format.
// Head is in metres, matching what the firmware sends.
func FormatLine(flowLs, headM float64) string {
	return fmt.Sprintf(lineTemplate, flowLs, headM)
}

// ParseLine extracts the flow rate (L/s) and head (cm) from one raw
// line. Surrounding text is ignored; only the two labelled fields
// matter. Values that are not finite numbers fail the parse.
func ParseLine(text string) (flowLs, headCM float64, err error) {
	fm := flowPattern.FindStringSubmatch(text)
	hm := headPattern.FindStringSubmatch(text)
	if fm == nil || hm == nil {
		return 0, 0, ErrLineFormat
	}
	flowLs, err = strconv.ParseFloat(fm[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: flow %q", ErrLineFormat, fm[1])
	}
	headM, err := strconv.ParseFloat(hm[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: head %q", ErrLineFormat, hm[1])
	}
	if math.IsNaN(flowLs) || math.IsInf(flowLs, 0) || math.IsNaN(headM) || math.IsInf(headM, 0) {
		return 0, 0, fmt.Errorf("%w: non-finite value", ErrLineFormat)
	}
	return flowLs, headM * 100, nil
}

// ParseRecord turns a captured line into a Sample. Elapsed is left
// zero; the store fills it in at append time.
func ParseRecord(rec RawRecord) (Sample, error) {
	flow, head, err := ParseLine(rec.Text)
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Time:     rec.CapturedAt,
		FlowRate: flow,
		HeadCM:   head,
		Raw:      rec.Text,
	}, nil
}

// ExtractFlow pulls only the flow field out of a line. Used by the
// reader's drain watchdog, which needs the flow value before the line
// reaches the parser.
func ExtractFlow(text string) (float64, bool) {
	m := flowPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
