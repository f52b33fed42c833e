package ring

import "sync"

const (
	cmdHeadOff  = 0 * cacheLine
	cmdTailOff  = 1 * cacheLine
	cmdStatsOff = 2 * cacheLine // dropCount(4)
	cmdDataOff  = 3 * cacheLine

	cmdDropOff = cmdStatsOff + 0
)

// CmdHeaderSize is the fixed header size before the packet slots.
const CmdHeaderSize = cmdDataOff

const packetSize = 64 // mirrors control.PacketSize; kept local to avoid an import cycle

// CmdSize returns the shared-memory footprint for a CmdRing of s slots.
func CmdSize(s int) int { return CmdHeaderSize + s*packetSize }

// Cmd is the SPSC Command Packet ring. Two producer threads in the
// audio process (the sequencer and the control-input listener) both
// write into it; since the ring itself is
// single-producer, Write serializes them through writeMu
// before the write touches shared memory. The reader (one Worker
// process) needs no such serialization.
type Cmd struct {
	s   int
	buf []byte

	writeMu sync.Mutex
}

// NewCmd binds a Cmd ring on top of a shared-memory byte slice of at
// least CmdSize(s) bytes.
func NewCmd(buf []byte, s int) *Cmd {
	if len(buf) < CmdSize(s) {
		panic("ring: buffer too small for Cmd(s)")
	}
	return &Cmd{s: s, buf: buf}
}

func (c *Cmd) slot(i int) []byte {
	off := cmdDataOff + i*packetSize
	return c.buf[off : off+packetSize]
}

// Write copies a 64-byte packet into the ring. If the ring is full, it
// coalesces: the oldest slot (at tail) is dropped — tail advances by
// one — and the new packet is written. Write never blocks and never
// fails.
func (c *Cmd) Write(packet []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	head := loadU32(c.buf, cmdHeadOff)
	tail := loadU32(c.buf, cmdTailOff)
	n := uint32(c.s)
	next := (head + 1) % n
	if next == tail {
		storeU32(c.buf, cmdTailOff, (tail+1)%n)
		addU32(c.buf, cmdDropOff, 1)
	}
	copy(c.slot(int(head)), packet[:packetSize])
	storeU32(c.buf, cmdHeadOff, next)
}

// ReadNext returns the oldest unread packet and advances tail by one.
// ok is false if the ring is empty.
func (c *Cmd) ReadNext(dst []byte) (ok bool) {
	head := loadU32(c.buf, cmdHeadOff)
	tail := loadU32(c.buf, cmdTailOff)
	if head == tail {
		return false
	}
	copy(dst[:packetSize], c.slot(int(tail)))
	storeU32(c.buf, cmdTailOff, (tail+1)%uint32(c.s))
	return true
}

// DropCount is the cold-path coalescing-drop counter.
func (c *Cmd) DropCount() uint64 { return uint64(loadU32(c.buf, cmdDropOff)) }

// Reset zeroes head, tail and the drop counter. Only valid when no peer
// process holds a live view.
func (c *Cmd) Reset() {
	storeU32(c.buf, cmdHeadOff, 0)
	storeU32(c.buf, cmdTailOff, 0)
	storeU32(c.buf, cmdDropOff, 0)
}
