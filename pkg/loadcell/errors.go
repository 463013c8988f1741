package loadcell

import (
	"errors"
	"fmt"
)

// ErrConnection reports that the link to the microcontroller is gone.
// It is fatal for whatever operation owns the link.
var ErrConnection = errors.New("serial connection lost")

var (
	errEmptyLine = errors.New("empty line")
	errNotFinite = errors.New("value is not finite")
)

// ParseError describes a line that could not be turned into a reading.
// The reader logs and skips these.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed reading %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
