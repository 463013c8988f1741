package sample

import (
	"context"
	"time"

	"github.com/itohio/gotensile/pkg/loadcell"
)

// Sample represents a processed reading with physical values.
type Sample struct {
	Timestamp time.Time
	Raw       float64 // Value as received from the MCU
	Force     float64 // Smoothed force (N)
}

// Calibration maps a raw reading to force in newtons.
type Calibration interface {
	Apply(raw float64) float64
}

// Identity is used when the firmware already reports newtons.
type Identity struct{}

// Apply returns raw unchanged.
func (Identity) Apply(raw float64) float64 { return raw }

// Source is a blocking supply of calibrated samples.
type Source interface {
	Next(ctx context.Context) (Sample, error)
}

// Converter turns raw readings into smoothed force samples.
type Converter struct {
	cal Calibration
	avg *MovingAverage
}

// NewConverter creates a converter applying cal and a moving average over
// window readings (window <= 1 disables smoothing).
func NewConverter(cal Calibration, window int) *Converter {
	if cal == nil {
		cal = Identity{}
	}
	return &Converter{
		cal: cal,
		avg: NewMovingAverage(window),
	}
}

// Convert converts a single raw reading.
func (c *Converter) Convert(raw loadcell.RawSample) Sample {
	return Sample{
		Timestamp: raw.Timestamp,
		Raw:       raw.Value,
		Force:     c.avg.Add(c.cal.Apply(raw.Value)),
	}
}

// Reset forgets smoothing history.
func (c *Converter) Reset() {
	c.avg.Reset()
}

// Stream is a Source reading from a loadcell.Source through a Converter.
type Stream struct {
	src  loadcell.Source
	conv *Converter
}

// NewStream creates a calibrated stream.
func NewStream(src loadcell.Source, conv *Converter) *Stream {
	return &Stream{src: src, conv: conv}
}

// Next returns the next converted sample. Errors from the underlying source
// are returned unchanged.
func (s *Stream) Next(ctx context.Context) (Sample, error) {
	raw, err := s.src.Next(ctx)
	if err != nil {
		return Sample{}, err
	}
	return s.conv.Convert(raw), nil
}

// Reset drops buffered readings and smoothing history.
func (s *Stream) Reset() int {
	s.conv.Reset()
	if r, ok := s.src.(loadcell.Resetter); ok {
		return r.Reset()
	}
	return 0
}
