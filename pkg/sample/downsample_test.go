package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []Sample {
	now := time.Now()
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			Timestamp: now.Add(time.Duration(i) * 10 * time.Millisecond),
			Raw:       float64(8000 + i),
			Force:     float64(i),
		}
	}
	return samples
}

func TestDownsamplePeaks_NoDownsampling(t *testing.T) {
	samples := ramp(3)

	result := DownsamplePeaks(nil, samples, 10, nil)
	assert.Equal(t, samples, result)

	dst := make([]Sample, 0, 10)
	result = DownsamplePeaks(dst, samples, 10, nil)
	assert.Equal(t, samples, result)
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsamplePeaks_BucketMax(t *testing.T) {
	samples := ramp(100)

	dst := make([]Sample, 0, 20)
	result := DownsamplePeaks(dst, samples, 10, nil)
	require.Len(t, result, 10)
	assert.Equal(t, cap(dst), cap(result))

	// Rising force: each bucket of ten keeps its last sample.
	for i, s := range result {
		assert.Equal(t, float64(i*10+9), s.Force)
	}
}

func TestDownsamplePeaks_KeepsSpike(t *testing.T) {
	samples := make([]Sample, 60)
	for i := range samples {
		samples[i].Force = 10
	}
	samples[37].Force = 250 // break peak between decimation points

	result := DownsamplePeaks(nil, samples, 6, nil)
	require.Len(t, result, 6)

	peak := 0.0
	for _, s := range result {
		peak = max(peak, s.Force)
	}
	assert.Equal(t, float64(250), peak)
	assert.Equal(t, float64(250), result[3].Force)
}

func TestDownsamplePeaks_Value(t *testing.T) {
	samples := []Sample{
		{Raw: 5, Force: 1},
		{Raw: 1, Force: 9},
		{Raw: 7, Force: 2},
		{Raw: 2, Force: 8},
	}

	raw := DownsamplePeaks(nil, samples, 2, func(s Sample) float64 { return s.Raw })
	assert.Equal(t, []Sample{samples[0], samples[2]}, raw)

	force := DownsamplePeaks(nil, samples, 2, nil)
	assert.Equal(t, []Sample{samples[1], samples[3]}, force)
}

func TestDownsamplePeaks_UnevenBuckets(t *testing.T) {
	samples := ramp(7)

	result := DownsamplePeaks(make([]Sample, 0, 1), samples, 3, nil)
	require.Len(t, result, 3)
	// Buckets [0,2) [2,4) [4,7)
	assert.Equal(t, []float64{1, 3, 6}, []float64{result[0].Force, result[1].Force, result[2].Force})
}

func TestDownsamplePeaks_ZeroMax(t *testing.T) {
	assert.Empty(t, DownsamplePeaks(nil, ramp(1), 0, nil))
}
