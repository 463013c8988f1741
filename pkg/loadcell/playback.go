package loadcell

import (
	"context"
	"fmt"
	"time"
)

// Playback replays a fixed series of readings spaced by a fixed period and
// then fails. It stands in for a device in tests and offline replays.
type Playback struct {
	values []float64
	period time.Duration
	start  time.Time
	end    error
	pos    int
}

// NewPlayback returns a source that yields values one period apart starting
// at a fixed epoch, then reports a lost connection.
func NewPlayback(values []float64, period time.Duration) *Playback {
	return &Playback{
		values: values,
		period: period,
		start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		end:    fmt.Errorf("%w: playback exhausted", ErrConnection),
	}
}

// WithError replaces the error returned once the series is exhausted.
func (p *Playback) WithError(err error) *Playback {
	p.end = err
	return p
}

// Next returns the next value in the series.
func (p *Playback) Next(ctx context.Context) (RawSample, error) {
	if err := ctx.Err(); err != nil {
		return RawSample{}, err
	}
	if p.pos >= len(p.values) {
		return RawSample{}, p.end
	}

	s := RawSample{
		Timestamp: p.start.Add(time.Duration(p.pos) * p.period),
		Value:     p.values[p.pos],
	}
	p.pos++
	return s, nil
}

// Consumed returns how many values have been handed out.
func (p *Playback) Consumed() int {
	return p.pos
}
