package ports

import "errors"

// ErrSourceFatal marks transport failures that will not recover.
// Readers must stop consuming the source instead of retrying.
var ErrSourceFatal = errors.New("line source: fatal transport error")

// LineSource produces raw measurement lines. ReadLine blocks up to the
// source's configured timeout; a nil slice with a nil error means the
// timeout elapsed with no complete line.
type LineSource interface {
	ReadLine() ([]byte, error)
	Close() error
	IsOpen() bool
	Name() string
}
