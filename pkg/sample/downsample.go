package sample

// DownsamplePeaks reduces samples to at most maxPoints for display. The
// samples are split into maxPoints consecutive buckets and each bucket keeps
// its sample with the highest value, the earliest one on ties, so a short
// force peak is never decimated away. A nil value compares force.
//
// dst is reused when it has enough capacity.
func DownsamplePeaks(dst []Sample, samples []Sample, maxPoints int, value func(Sample) float64) []Sample {
	if maxPoints <= 0 {
		return dst[:0]
	}
	if value == nil {
		value = func(s Sample) float64 { return s.Force }
	}

	n := min(len(samples), maxPoints)
	if cap(dst) >= n {
		dst = dst[:0]
	} else {
		dst = make([]Sample, 0, n)
	}
	if len(samples) <= maxPoints {
		return append(dst, samples...)
	}

	start := 0
	for i := 1; i <= maxPoints; i++ {
		end := i * len(samples) / maxPoints
		best := start
		for j := start + 1; j < end; j++ {
			if value(samples[j]) > value(samples[best]) {
				best = j
			}
		}
		dst = append(dst, samples[best])
		start = end
	}
	return dst
}
