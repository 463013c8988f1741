package loadcell

import (
	"context"
	"fmt"
	"io"
)

// Reader turns a Device's sample channel into a blocking Source.
type Reader struct {
	dev Device
}

// NewReader wraps dev. The device must already be connected.
func NewReader(dev Device) *Reader {
	return &Reader{dev: dev}
}

// Next blocks until the next reading arrives.
func (r *Reader) Next(ctx context.Context) (RawSample, error) {
	select {
	case s, ok := <-r.dev.Samples():
		if !ok {
			cause := r.dev.Err()
			if cause == nil {
				cause = io.EOF
			}
			return RawSample{}, fmt.Errorf("%w: %w", ErrConnection, cause)
		}
		return s, nil
	case <-ctx.Done():
		return RawSample{}, ctx.Err()
	}
}

// Reset drops readings that piled up while nobody was listening and returns
// how many were discarded.
func (r *Reader) Reset() int {
	n := 0
	for {
		select {
		case _, ok := <-r.dev.Samples():
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
