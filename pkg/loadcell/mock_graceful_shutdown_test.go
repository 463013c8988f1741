package loadcell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Closing the mock mid-stream ends the sample channel without an error and
// everything delivered before that reflects the applied load.
func TestMock_CloseDuringStream(t *testing.T) {
	dev := NewMock(testMockConfig())
	dev.SetLoad(3)
	require.NoError(t, dev.Connect())

	var counts []float64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range dev.Samples() {
			counts = append(counts, s.Value)
			if len(counts) == 4 {
				assert.NoError(t, dev.Close())
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sample channel still open after Close")
	}

	require.GreaterOrEqual(t, len(counts), 4)
	for _, c := range counts {
		assert.Equal(t, float64(1030), c)
	}
	assert.NoError(t, dev.Err())
	assert.False(t, dev.IsConnected())
}
