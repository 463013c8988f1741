package sample

// MovingAverage averages the last N values pushed into it.
type MovingAverage struct {
	buf  []float64
	next int
	n    int
	sum  float64
}

// NewMovingAverage creates an averager over windowSize values.
func NewMovingAverage(windowSize int) *MovingAverage {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	return &MovingAverage{buf: make([]float64, windowSize)}
}

// Add pushes v and returns the average of the values currently held.
// Until the window fills this is the average of what has been seen so far.
func (m *MovingAverage) Add(v float64) float64 {
	if m.n == len(m.buf) {
		m.sum -= m.buf[m.next]
	} else {
		m.n++
	}
	m.buf[m.next] = v
	m.sum += v
	m.next = (m.next + 1) % len(m.buf)

	// Recompute from scratch once per lap so rounding error can't accumulate.
	if m.next == 0 {
		m.sum = 0
		for _, x := range m.buf[:m.n] {
			m.sum += x
		}
	}

	return m.sum / float64(m.n)
}

// Len returns how many values are currently held.
func (m *MovingAverage) Len() int {
	return m.n
}

// Reset empties the window.
func (m *MovingAverage) Reset() {
	m.next = 0
	m.n = 0
	m.sum = 0
}
