// Package host implements ModuleHost, the chain-mode driver: an
// ordered module collection with pre-allocated intermediate buffers
// and a pending-command queue drained at each buffer boundary.
package host

import (
	"github.com/soundworks/modsynth/internal/control"
	"github.com/soundworks/modsynth/internal/module"
	"github.com/soundworks/modsynth/internal/statz"
	"github.com/soundworks/modsynth/internal/synerr"
)

const maxPendingCommands = 256

type slotModule struct {
	id [16]byte
	m  module.Module
}

// Host owns an ordered module chain plus the pre-allocated working
// buffers and command queue the worker loop drives once per buffer.
// Every working buffer is allocated in NewHost and ProcessChain never
// allocates afterward. ProcessCommands converts each set-parameter
// packet's parameter name to a string for Module.SetParameter, which
// allocates once per such command.
type Host struct {
	maxChain int
	chain    []slotModule
	bufs     [][]float32 // maxChain+1 pre-allocated working buffers, each length B
	bufLen   int

	pending    [maxPendingCommands]control.Packet
	pendingLen int

	stats statz.WorkerStats
}

// NewHost constructs a Host bounded to hold at most maxChain modules,
// each processing buffers of length bufLen.
func NewHost(maxChain, bufLen int) *Host {
	h := &Host{maxChain: maxChain, bufLen: bufLen}
	h.bufs = make([][]float32, maxChain+1)
	for i := range h.bufs {
		h.bufs[i] = make([]float32, bufLen)
	}
	return h
}

// AddModule appends m under id, in chain order. Fails once the host is
// at its construction-time capacity.
func (h *Host) AddModule(id string, m module.Module) error {
	if len(h.chain) >= h.maxChain {
		return synerr.ErrChainFull
	}
	var sm slotModule
	copyID(sm.id[:], id)
	sm.m = m
	h.chain = append(h.chain, sm)
	return nil
}

// RemoveModule drops the module named id from the chain, preserving
// the order of the rest.
func (h *Host) RemoveModule(id string) {
	var key [16]byte
	copyID(key[:], id)
	for i, sm := range h.chain {
		if sm.id == key {
			h.chain = append(h.chain[:i], h.chain[i+1:]...)
			return
		}
	}
}

func copyID(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := len(s)
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst, s[:n])
}

// QueueCommand decodes a raw 64-byte Command Packet and enqueues it for
// application at the next buffer boundary. Malformed packets are
// dropped silently. If the pending queue is already full the oldest
// queued command is dropped to make room — the queue is a last line of
// defense; in steady operation it drains every buffer.
func (h *Host) QueueCommand(raw []byte) {
	var p control.Packet
	if !control.Decode(raw, &p) {
		return
	}
	if h.pendingLen >= len(h.pending) {
		copy(h.pending[:], h.pending[1:])
		h.pendingLen--
	}
	h.pending[h.pendingLen] = p
	h.pendingLen++
}

// ProcessCommands drains the pending-command queue and applies each
// packet to its named module. Unknown targets are dropped silently.
func (h *Host) ProcessCommands() {
	for i := 0; i < h.pendingLen; i++ {
		p := &h.pending[i]
		sm := h.findByID(p.Target)
		if sm == nil {
			continue
		}
		switch p.Op {
		case control.OpSetParameter:
			sm.m.SetParameter(p.ParamString(), p.Float(), p.Immediate)
			h.stats.CommandsApplied.Inc()
		case control.OpGate:
			if g, ok := sm.m.(module.Gater); ok {
				g.SetGate(p.Bool())
				h.stats.CommandsApplied.Inc()
			}
		}
	}
	h.pendingLen = 0
}

func (h *Host) findByID(id [16]byte) *slotModule {
	for i := range h.chain {
		if h.chain[i].id == id {
			return &h.chain[i]
		}
	}
	return nil
}

// ProcessChain runs every module in insertion order, starting from
// silence or, if external is non-nil, from that input.
// It returns the final slot's buffer — valid until the next
// ProcessChain call, never copied, never allocated.
func (h *Host) ProcessChain(external []float32) []float32 {
	first := h.bufs[0]
	if external != nil {
		copy(first, external)
	} else {
		for i := range first {
			first[i] = 0
		}
	}
	for i := range h.chain {
		h.chain[i].m.Prepare()
		h.chain[i].m.ProcessBuffer(h.bufs[i], h.bufs[i+1])
	}
	return h.bufs[len(h.chain)]
}

// Reset clears the pending queue (used after a reconfiguration or at
// worker restart). Module internal state resets are the modules' own
// responsibility via a fresh Prepare(), not this call.
func (h *Host) Reset() { h.pendingLen = 0 }

// Stats is the cold-path worker/host counter snapshot.
func (h *Host) Stats() statz.WorkerStatsSnapshot { return h.stats.Snapshot() }

// Len reports the current chain length.
func (h *Host) Len() int { return len(h.chain) }
