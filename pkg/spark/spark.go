// Package spark draws one-line block charts of recent readings for the
// terminal.
package spark

import (
	"strings"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/gotensile/pkg/sample"
)

// Blocks are the glyphs from lowest to highest level.
const Blocks = "▁▂▃▄▅▆▇█"

var levels = []rune(Blocks)

// Line renders values scaled between their minimum and maximum. A flat
// series renders at the lowest level.
func Line(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	lo, hi := float32(values[0]), float32(values[0])
	for _, v := range values[1:] {
		lo = math32.Min(lo, float32(v))
		hi = math32.Max(hi, float32(v))
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	top := float32(len(levels) - 1)
	var b strings.Builder
	b.Grow(len(values) * 3)
	for _, v := range values {
		lvl := math32.Floor((float32(v) - lo) / rng * top)
		if math32.IsNaN(lvl) {
			lvl = 0
		}
		lvl = math32.Max(0, math32.Min(top, lvl))
		b.WriteRune(levels[int(lvl)])
	}
	return b.String()
}

// Field picks the value to plot from a sample.
type Field func(sample.Sample) float64

// Force plots calibrated force.
func Force(s sample.Sample) float64 { return s.Force }

// Raw plots the reading as received.
func Raw(s sample.Sample) float64 { return s.Raw }

// Window keeps the samples of the last span and renders them at a fixed
// width.
type Window struct {
	mu      sync.Mutex
	span    time.Duration
	width   int
	field   Field
	samples []sample.Sample

	// Render scratch buffers
	shown  []sample.Sample
	values []float64
}

// NewWindow creates a window of span rendered at most width glyphs wide.
// A nil field plots force.
func NewWindow(span time.Duration, width int, field Field) *Window {
	if field == nil {
		field = Force
	}
	return &Window{span: span, width: width, field: field}
}

// Add appends a sample and forgets samples older than span.
func (w *Window) Add(s sample.Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, s)
	cutoff := s.Timestamp.Add(-w.span)
	i := 0
	for i < len(w.samples)-1 && w.samples[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

// Render draws the window.
func (w *Window) Render() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.shown = sample.DownsamplePeaks(w.shown, w.samples, w.width, w.field)
	w.values = w.values[:0]
	for _, s := range w.shown {
		w.values = append(w.values, w.field(s))
	}
	return Line(w.values)
}

// Reset forgets all samples.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = w.samples[:0]
}
