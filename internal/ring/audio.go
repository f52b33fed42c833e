package ring

import (
	"unsafe"
)

const (
	audioHeadOff   = 0 * cacheLine
	audioTailOff   = 1 * cacheLine
	audioStatsOff  = 2 * cacheLine // overrunCount(4) underrunCount(4) seqCounter(8)
	audioDataOff   = 3 * cacheLine

	audioOverrunOff  = audioStatsOff + 0
	audioUnderrunOff = audioStatsOff + 4
	audioSeqCtrOff   = audioStatsOff + 8
)

// AudioHeaderSize returns the fixed header size in bytes, before the
// per-slot sequence array.
const AudioHeaderSize = audioDataOff

// AudioSize returns the total shared-memory footprint for an audio Ring
// holding n slots of b float32 samples each.
func AudioSize(n, b int) int {
	return AudioHeaderSize + n*8 /* sequence array */ + n*b*4 /* sample storage */
}

// AudioStats is the cold-path introspection result of the stats()
// operation.
type AudioStats struct {
	Occupancy      int
	LastSequence   uint64
	Overruns       uint64
	Underruns      uint64
}

// Audio is one SPSC ring of fixed-size audio buffers: Ring[B,N].
// Exactly one process writes (a Worker) and one process reads (the
// Supervisor's audio callback); Audio itself enforces no cross-process
// locking, relying entirely on the release/acquire ordering of the
// head/tail updates.
type Audio struct {
	b, n int
	buf  []byte // shared segment backing storage

	seq  []uint64 // view over the sequence array region
	data []float32
}

// NewAudio binds an Audio ring on top of a shared-memory byte slice of
// at least AudioSize(n, b) bytes. Called independently in the writer
// process and the reader process, each against their own Segment.Data
// for the same physical shared memory.
func NewAudio(buf []byte, n, b int) *Audio {
	if len(buf) < AudioSize(n, b) {
		panic("ring: buffer too small for Audio(n, b)")
	}
	a := &Audio{b: b, n: n, buf: buf}
	seqBytes := buf[audioDataOff : audioDataOff+n*8]
	a.seq = unsafe.Slice((*uint64)(unsafe.Pointer(&seqBytes[0])), n)
	dataBytes := buf[audioDataOff+n*8:]
	a.data = unsafe.Slice((*float32)(unsafe.Pointer(&dataBytes[0])), n*b)
	return a
}

func (a *Audio) slot(i int) []float32 { return a.data[i*a.b : (i+1)*a.b] }

// Write copies payload (length b) into the next free slot. Returns
// false, with the overrun counter bumped, if the ring is full — the
// writer-side contract is to drop, never block.
func (a *Audio) Write(payload []float32) bool {
	head := loadU32(a.buf, audioHeadOff)
	tail := loadU32(a.buf, audioTailOff)
	next := (head + 1) % uint32(a.n)
	if next == tail {
		addU32(a.buf, audioOverrunOff, 1)
		return false
	}
	copy(a.slot(int(head)), payload)
	newSeq := loadU64(a.buf, audioSeqCtrOff) + 1
	storeU64(a.buf, audioSeqCtrOff, newSeq)
	a.seq[head] = newSeq
	// Publish: sequence write must be visible before head advances.
	storeU32(a.buf, audioHeadOff, next)
	return true
}

// ReadNext returns a copy of the oldest unread slot and advances tail by
// one, strictly sequentially. ok is false (underrun counted) if the ring
// is empty.
func (a *Audio) ReadNext(dst []float32) (ok bool) {
	head := loadU32(a.buf, audioHeadOff)
	tail := loadU32(a.buf, audioTailOff)
	if head == tail {
		addU32(a.buf, audioUnderrunOff, 1)
		return false
	}
	copy(dst, a.slot(int(tail)))
	storeU32(a.buf, audioTailOff, (tail+1)%uint32(a.n))
	return true
}

// ReadLatestKeep implements read_latest_keep(keep): it skips forward to
// privilege recency while retaining a small cushion of `keep` unread
// buffers. Returns false (underrun counted) iff occupancy is zero.
func (a *Audio) ReadLatestKeep(dst []float32, keep int) (ok bool) {
	head := loadU32(a.buf, audioHeadOff)
	tail := loadU32(a.buf, audioTailOff)
	n := uint32(a.n)
	occ := (head - tail + n) % n
	if occ == 0 {
		addU32(a.buf, audioUnderrunOff, 1)
		return false
	}
	skip := uint32(keep) + 1
	if skip > occ {
		skip = occ
	}
	idx := (head - skip + n) % n
	copy(dst, a.slot(int(idx)))
	storeU32(a.buf, audioTailOff, (idx+1)%n)
	return true
}

// Stats is the cold-path introspection call.
func (a *Audio) Stats() AudioStats {
	head := loadU32(a.buf, audioHeadOff)
	tail := loadU32(a.buf, audioTailOff)
	n := uint32(a.n)
	occ := (head - tail + n) % n
	return AudioStats{
		Occupancy:    int(occ),
		LastSequence: loadU64(a.buf, audioSeqCtrOff),
		Overruns:     uint64(loadU32(a.buf, audioOverrunOff)),
		Underruns:    uint64(loadU32(a.buf, audioUnderrunOff)),
	}
}

// Reset zeroes head, tail and the sequence counter. Only valid when no
// peer process holds a live view — called once by the Supervisor right
// after creating the segment, before the Worker is spawned.
func (a *Audio) Reset() {
	storeU32(a.buf, audioHeadOff, 0)
	storeU32(a.buf, audioTailOff, 0)
	storeU32(a.buf, audioOverrunOff, 0)
	storeU32(a.buf, audioUnderrunOff, 0)
	storeU64(a.buf, audioSeqCtrOff, 0)
	for i := range a.seq {
		a.seq[i] = 0
	}
	for i := range a.data {
		a.data[i] = 0
	}
}

// BufferLen is B, the configured audio buffer length in samples.
func (a *Audio) BufferLen() int { return a.b }

// HasPublished reports whether the ring's head has advanced past tail
// at least once since the last Reset — the standby-readiness signal a
// Supervisor watches for.
func (a *Audio) HasPublished() bool {
	head := loadU32(a.buf, audioHeadOff)
	tail := loadU32(a.buf, audioTailOff)
	return head != tail || loadU64(a.buf, audioSeqCtrOff) > 0
}
