// Package ring implements the SPSC audio Ring and control CmdRing:
// fixed-capacity, lock-free FIFOs living in shared memory, safe for
// exactly one writer process and one reader process, with
// cache-line-separated head/tail indices so the writer and reader
// never bounce the same cache line.
package ring

import (
	"sync/atomic"
	"unsafe"
)

// cacheLine is the padding stride between independently-contended
// fields in the shared header, keeping writer- and reader-owned words
// on separate lines.
const cacheLine = 64

// u32At returns an atomic view of the uint32 at byte offset off within
// b. b must outlive the returned pointer and off must be 4-byte
// aligned; both hold because segments are mmap'd page-aligned and every
// offset used here is a multiple of cacheLine.
func u32At(b []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&b[off]))
}

func u64At(b []byte, off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&b[off]))
}

func loadU32(b []byte, off int) uint32  { return atomic.LoadUint32(u32At(b, off)) }
func storeU32(b []byte, off int, v uint32) { atomic.StoreUint32(u32At(b, off), v) }
func addU32(b []byte, off int, d uint32) uint32 { return atomic.AddUint32(u32At(b, off), d) }

func loadU64(b []byte, off int) uint64  { return atomic.LoadUint64(u64At(b, off)) }
func storeU64(b []byte, off int, v uint64) { atomic.StoreUint64(u64At(b, off), v) }
func addU64(b []byte, off int, d uint64) uint64 { return atomic.AddUint64(u64At(b, off), d) }

func swapU32(b []byte, off int, v uint32) uint32 { return atomic.SwapUint32(u32At(b, off), v) }
