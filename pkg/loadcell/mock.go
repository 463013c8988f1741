package loadcell

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/gotensile/pkg/config"
	"github.com/itohio/gotensile/pkg/hx711"
)

// Mock simulates an uncalibrated HX711 load cell for development without hardware.
type Mock struct {
	cfg *config.MockConfig

	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	err       error
	dropped   int

	// Simulation state
	startTime time.Time
	load      float64 // Static load (N)
	pulling   bool
	pullStart time.Time
	broken    bool
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:     cfg,
		samples: make(chan RawSample, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	if m.ctx.Err() != nil {
		return fmt.Errorf("device closed")
	}

	m.connected = true
	m.startTime = time.Now()

	go m.generateSamples()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false

	return nil
}

// Fail simulates an unplugged cable: the samples channel closes and Err
// reports err.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
	m.connected = false
	m.cancel()
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan RawSample {
	return m.samples
}

// Err returns the error passed to Fail, if any.
func (m *Mock) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Stats reports readings skipped because the consumer fell behind.
func (m *Mock) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Dropped: m.dropped}
}

// SetLoad sets the static force on the cell, e.g. a calibration weight.
func (m *Mock) SetLoad(newtons float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.load = newtons
}

// StartPull starts a simulated pull that ramps at PullRate until the sample
// snaps at BreakForce.
func (m *Mock) StartPull() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pulling = true
	m.broken = false
	m.pullStart = time.Now()
}

// Broken reports whether the simulated sample has snapped.
func (m *Mock) Broken() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.broken
}

// generateSamples owns the samples channel.
func (m *Mock) generateSamples() {
	defer close(m.samples)

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			sample := RawSample{Timestamp: now, Value: m.generateValue(now)}
			select {
			case m.samples <- sample:
			case <-m.ctx.Done():
				return
			default:
				m.mu.Lock()
				m.dropped++
				m.mu.Unlock()
			}
		}
	}
}

// generateValue returns the raw count the cell would report at now.
func (m *Mock) generateValue(now time.Time) float64 {
	m.mu.Lock()
	force := m.force(now)
	elapsed := now.Sub(m.startTime)
	m.mu.Unlock()

	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseLevel * 0.5

	return rawCounts(force, m.cfg.Offset, m.cfg.CountsPerNewton, noise)
}

// force returns the simulated force at now. Must be called with mu held.
func (m *Mock) force(now time.Time) float64 {
	f := m.load
	if !m.pulling {
		return f
	}

	pulled := m.cfg.PullRate * now.Sub(m.pullStart).Seconds()
	if pulled >= m.cfg.BreakForce {
		m.pulling = false
		m.broken = true
		return f
	}
	return f + pulled
}

// rawCounts converts force to whole HX711 counts within the converter range.
func rawCounts(force, offset, countsPerNewton, noise float64) float64 {
	return hx711.Clamp(math.Round(offset + force*countsPerNewton + noise))
}
