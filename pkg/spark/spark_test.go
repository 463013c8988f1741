package spark

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/itohio/gotensile/pkg/sample"
	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"empty", nil, ""},
		{"single", []float64{42}, "▁"},
		{"flat", []float64{5, 5, 5}, "▁▁▁"},
		{"extremes", []float64{0, 7}, "▁█"},
		{"middle", []float64{0, 3.5, 7}, "▁▄█"},
		{"negative", []float64{-10, 10, -10}, "▁█▁"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Line(tt.values))
		})
	}
}

func TestLine_Monotonic(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = float64(i) * 13.7
	}

	runes := []rune(Line(values))
	assert.Len(t, runes, len(values))
	for i := 1; i < len(runes); i++ {
		assert.GreaterOrEqual(t, runes[i], runes[i-1])
	}
	assert.Equal(t, '▁', runes[0])
	assert.Equal(t, '█', runes[len(runes)-1])
}

func TestWindow(t *testing.T) {
	w := NewWindow(time.Second, 10, nil)
	now := time.Now()

	for i := 0; i < 30; i++ {
		w.Add(sample.Sample{Timestamp: now.Add(time.Duration(i) * 100 * time.Millisecond), Force: float64(i)})
	}

	// 1.9 s .. 2.9 s are within one second of the newest sample
	assert.Equal(t, 11, w.Len())
	assert.Equal(t, 10, utf8.RuneCountInString(w.Render()))

	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, "", w.Render())
}

func TestWindow_Raw(t *testing.T) {
	w := NewWindow(time.Minute, 0, Raw)
	now := time.Now()

	w.Add(sample.Sample{Timestamp: now, Raw: 8000, Force: 10})
	w.Add(sample.Sample{Timestamp: now.Add(time.Second), Raw: 9000, Force: 10})

	// width 0 renders nothing
	assert.Equal(t, "", w.Render())

	w = NewWindow(time.Minute, 5, Raw)
	w.Add(sample.Sample{Timestamp: now, Raw: 8000, Force: 10})
	w.Add(sample.Sample{Timestamp: now.Add(time.Second), Raw: 9000, Force: 10})
	assert.Equal(t, "▁█", w.Render())
}

func TestWindow_KeepsPeak(t *testing.T) {
	w := NewWindow(time.Minute, 10, Force)
	now := time.Now()

	for i := 0; i < 100; i++ {
		f := 20.0
		if i == 43 {
			f = 300
		}
		w.Add(sample.Sample{Timestamp: now.Add(time.Duration(i) * 10 * time.Millisecond), Force: f})
	}

	assert.Equal(t, "▁▁▁▁█▁▁▁▁▁", w.Render())
}
