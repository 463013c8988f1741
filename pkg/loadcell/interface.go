package loadcell

import "context"

// Device defines the interface for load cell devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan RawSample
	Err() error
	IsConnected() bool
}

// Source is a blocking supply of readings. Next returns an error wrapping
// ErrConnection once the link is gone, or ctx.Err() when ctx is done.
// Malformed input never reaches the caller.
type Source interface {
	Next(ctx context.Context) (RawSample, error)
}

// Stats counts readings lost on the link.
type Stats struct {
	ParseErrors int // Malformed lines skipped
	Dropped     int // Readings discarded because the consumer fell behind
}

// StatsReporter is implemented by devices that count lost readings.
type StatsReporter interface {
	Stats() Stats
}

// Resetter is implemented by sources that can discard buffered readings.
type Resetter interface {
	Reset() int
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)

	_ StatsReporter = (*Serial)(nil)
	_ StatsReporter = (*Mock)(nil)

	_ Source   = (*Reader)(nil)
	_ Source   = (*Playback)(nil)
	_ Resetter = (*Reader)(nil)
)
