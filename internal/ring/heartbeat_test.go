package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeatIncrementsMonotonically(t *testing.T) {
	buf := make([]byte, HeartbeatSize)
	h := NewHeartbeat(buf)
	assert.Equal(t, uint64(0), h.Load())
	assert.Equal(t, uint64(1), h.Inc())
	assert.Equal(t, uint64(2), h.Inc())
	assert.Equal(t, uint64(2), h.Load())
	h.Reset()
	assert.Equal(t, uint64(0), h.Load())
}

func TestSignalSetTestAndClear(t *testing.T) {
	buf := make([]byte, SignalSize)
	s := NewSignal(buf)
	assert.False(t, s.Test())
	s.Set()
	assert.True(t, s.Test())
	assert.True(t, s.TestAndClear())
	assert.False(t, s.Test())
	assert.False(t, s.TestAndClear())
}
