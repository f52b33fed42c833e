package ring

// SignalSize is the shared-memory footprint of one Signal cell.
const SignalSize = cacheLine

// Signal is a one-bit shared-memory flag backing the wakeup_event and
// shutdown_signal cells. It is strictly a hint: consumers drain the
// ring it accompanies on every iteration regardless of whether the
// Signal fired, so a coalesced or missed wake never loses data.
type Signal struct{ buf []byte }

// NewSignal binds a Signal on top of a shared-memory byte slice of at
// least SignalSize bytes.
func NewSignal(buf []byte) *Signal {
	if len(buf) < SignalSize {
		panic("ring: buffer too small for Signal")
	}
	return &Signal{buf: buf}
}

// Set raises the flag (producer side).
func (s *Signal) Set() { storeU32(s.buf, 0, 1) }

// Test reports the flag's current value without clearing it.
func (s *Signal) Test() bool { return loadU32(s.buf, 0) != 0 }

// TestAndClear atomically reads and clears the flag (consumer side).
func (s *Signal) TestAndClear() bool { return swapU32(s.buf, 0, 0) != 0 }

// Clear lowers the flag unconditionally.
func (s *Signal) Clear() { storeU32(s.buf, 0, 0) }
