package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMovingAverage(t *testing.T) {
	tests := []struct {
		name   string
		window int
		values []float64
		want   []float64
	}{
		{
			name:   "window of one passes through",
			window: 1,
			values: []float64{5, 7, 9},
			want:   []float64{5, 7, 9},
		},
		{
			name:   "invalid window treated as one",
			window: 0,
			values: []float64{5, 7},
			want:   []float64{5, 7},
		},
		{
			name:   "partial window averages what it has",
			window: 3,
			values: []float64{3, 6, 9},
			want:   []float64{3, 4.5, 6},
		},
		{
			name:   "oldest value drops out",
			window: 3,
			values: []float64{3, 6, 9, 12, 15},
			want:   []float64{3, 4.5, 6, 9, 12},
		},
		{
			name:   "negative counts",
			window: 2,
			values: []float64{-100, -200, -300},
			want:   []float64{-100, -150, -250},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMovingAverage(tt.window)
			for i, v := range tt.values {
				assert.InDelta(t, tt.want[i], m.Add(v), 1e-9, "value %d", i)
			}
		})
	}
}

func TestMovingAverage_LenAndReset(t *testing.T) {
	m := NewMovingAverage(4)
	assert.Equal(t, 0, m.Len())

	for i := 0; i < 6; i++ {
		m.Add(float64(i))
	}
	assert.Equal(t, 4, m.Len())

	m.Reset()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, float64(42), m.Add(42))
}

func TestMovingAverage_LongRunStaysExact(t *testing.T) {
	m := NewMovingAverage(3)
	var got float64
	for i := 0; i < 100000; i++ {
		got = m.Add(1e7 + 0.1*float64(i%3))
	}
	assert.InDelta(t, 1e7+0.1, got, 1e-6)
}
