// Package meter watches a stream of force samples during a pull and decides
// when the specimen has failed.
package meter

import (
	"sync"
	"time"

	"github.com/itohio/gotensile/pkg/config"
	"github.com/itohio/gotensile/pkg/sample"
)

var _ Detector = (*Meter)(nil)

// Reason tells why a pull ended.
type Reason string

const (
	ReasonNone  Reason = ""
	ReasonBreak Reason = "break" // Force collapsed below a recent peak
	ReasonDrop  Reason = "drop"  // Force stayed below the start threshold too long
)

// State is a snapshot of the pull so far.
type State struct {
	Last     sample.Sample
	Peak     float64   // N
	PeakTime time.Time // Timestamp of the peak sample
	Rate     float64   // N/s between the last two samples
	Reason   Reason
}

// Done reports whether a stop condition has fired.
func (s State) Done() bool {
	return s.Reason != ReasonNone
}

// Detector processes samples and tracks the peak and stop conditions.
type Detector interface {
	Process(s sample.Sample) State
	State() State
	Reset()
}

// Meter implements Detector.
//
// A break is a fall below BreakFraction of the local peak, the highest force
// within BreakWindow of the newest sample, once that peak is at least
// MinPeak. With no window the overall peak is used. A drop is force below
// StartThreshold for DropDuration after the peak has crossed it.
type Meter struct {
	mu sync.RWMutex

	// Samples within BreakWindow of the newest one, oldest first. Removal is
	// by timestamp, not count.
	samples []sample.Sample
	state   State

	belowSince time.Time

	window         time.Duration
	minPeak        float64
	fraction       float64
	startThreshold float64
	dropDuration   time.Duration
}

// New creates a detector from the test configuration.
func New(cfg config.TestConfig) *Meter {
	return &Meter{
		samples:        make([]sample.Sample, 0),
		window:         cfg.BreakWindow,
		minPeak:        cfg.MinPeak,
		fraction:       cfg.BreakFraction,
		startThreshold: cfg.StartThreshold,
		dropDuration:   cfg.DropDuration,
	}
}

// Process adds a sample and returns the updated state. Once a stop
// condition has fired the state stops changing until Reset.
func (m *Meter) Process(s sample.Sample) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Done() {
		return m.state
	}

	if n := len(m.samples); n > 0 {
		prev := m.samples[n-1]
		if dt := s.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			m.state.Rate = (s.Force - prev.Force) / dt
		}
	}

	m.samples = append(m.samples, s)
	m.trim(s.Timestamp)
	m.state.Last = s

	if m.state.PeakTime.IsZero() || s.Force > m.state.Peak {
		m.state.Peak = s.Force
		m.state.PeakTime = s.Timestamp
	}

	switch {
	case m.broken(s):
		m.state.Reason = ReasonBreak
	case m.dropped(s):
		m.state.Reason = ReasonDrop
	}
	return m.state
}

func (m *Meter) trim(now time.Time) {
	if m.window <= 0 {
		m.samples = m.samples[len(m.samples)-1:]
		return
	}

	cutoff := now.Add(-m.window)
	cutoffIndex := 0
	for i, s := range m.samples {
		if !s.Timestamp.Before(cutoff) {
			cutoffIndex = i
			break
		}
	}
	if cutoffIndex > 0 {
		m.samples = m.samples[cutoffIndex:]
	}
}

func (m *Meter) broken(s sample.Sample) bool {
	if m.fraction <= 0 {
		return false
	}
	peak := m.localPeak()
	if peak <= 0 || peak < m.minPeak {
		return false
	}
	return s.Force < m.fraction*peak
}

// localPeak returns the highest force within the window. Must be called with
// mu held.
func (m *Meter) localPeak() float64 {
	if m.window <= 0 {
		return m.state.Peak
	}
	peak := m.samples[0].Force
	for _, s := range m.samples[1:] {
		peak = max(peak, s.Force)
	}
	return peak
}

func (m *Meter) dropped(s sample.Sample) bool {
	if m.startThreshold <= 0 || m.dropDuration <= 0 || m.state.Peak < m.startThreshold {
		return false
	}
	if s.Force >= m.startThreshold {
		m.belowSince = time.Time{}
		return false
	}
	if m.belowSince.IsZero() {
		m.belowSince = s.Timestamp
	}
	return s.Timestamp.Sub(m.belowSince) >= m.dropDuration
}

// State returns the current state.
func (m *Meter) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Reset clears the state for the next trial.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = m.samples[:0]
	m.state = State{}
	m.belowSince = time.Time{}
}
