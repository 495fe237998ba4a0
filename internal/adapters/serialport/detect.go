package serialport

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoDevice is returned when autodetection finds no plausible
// instrument port.
var ErrNoDevice = errors.New("no serial device found")

// usbChipKeywords identify the USB-to-serial bridges the instrument
// ships with. They appear in /dev/serial/by-id names on Linux.
var usbChipKeywords = []string{"arduino", "ch340", "usb-serial", "usb_serial", "cp210", "ftdi"}

var deviceGlobs = []string{
	"/dev/serial/by-id/*",
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/cu.usbserial*",
	"/dev/cu.usbmodem*",
	"/dev/cu.wchusbserial*",
	"/dev/cu.SLAB_USBtoUART",
}

// Candidates lists every device path that could plausibly be the
// instrument, stable-ordered, by-id entries first.
func Candidates() []string {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range deviceGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Detect picks the most likely instrument port: the first candidate
// whose name mentions a known USB serial chip, else the first
// candidate at all.
func Detect() (string, error) {
	return pick(Candidates())
}

func pick(cands []string) (string, error) {
	if len(cands) == 0 {
		return "", ErrNoDevice
	}
	for _, c := range cands {
		lower := strings.ToLower(filepath.Base(c))
		for _, kw := range usbChipKeywords {
			if strings.Contains(lower, kw) {
				return c, nil
			}
		}
	}
	return cands[0], nil
}
