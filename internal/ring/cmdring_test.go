package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T, s int) *Cmd {
	t.Helper()
	buf := make([]byte, CmdSize(s))
	return NewCmd(buf, s)
}

func packetOf(b byte) []byte {
	p := make([]byte, packetSize)
	p[0] = b
	return p
}

func TestCmdRoundTrip(t *testing.T) {
	c := newTestCmd(t, 4)
	c.Write(packetOf(7))
	dst := make([]byte, packetSize)
	require.True(t, c.ReadNext(dst))
	assert.Equal(t, byte(7), dst[0])
}

func TestCmdEmptyReadFails(t *testing.T) {
	c := newTestCmd(t, 4)
	dst := make([]byte, packetSize)
	assert.False(t, c.ReadNext(dst))
}

func TestCmdCoalescesOnFull(t *testing.T) {
	c := newTestCmd(t, 4) // holds 3 unread packets before coalescing
	c.Write(packetOf(1))
	c.Write(packetOf(2))
	c.Write(packetOf(3))
	c.Write(packetOf(4)) // ring full -> drop oldest (1), write 4

	assert.Equal(t, uint64(1), c.DropCount())

	dst := make([]byte, packetSize)
	require.True(t, c.ReadNext(dst))
	assert.Equal(t, byte(2), dst[0], "oldest packet (1) should have been coalesced away")
	require.True(t, c.ReadNext(dst))
	assert.Equal(t, byte(3), dst[0])
	require.True(t, c.ReadNext(dst))
	assert.Equal(t, byte(4), dst[0])
}

func TestCmdFinalAppliedValueIsLastWritten(t *testing.T) {
	// Flood writes; the final applied value must be the last one
	// written, regardless of how many were coalesced away.
	c := newTestCmd(t, 8)
	for i := 0; i < 10000; i++ {
		c.Write(packetOf(byte(i)))
	}
	var last []byte
	dst := make([]byte, packetSize)
	for c.ReadNext(dst) {
		cp := make([]byte, packetSize)
		copy(cp, dst)
		last = cp
	}
	require.NotNil(t, last)
	assert.Equal(t, byte(9999), last[0])
	assert.Greater(t, c.DropCount(), uint64(0))
}
