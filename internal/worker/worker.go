// Package worker implements the isolated per-slot DSP loop: one
// process holding a ModuleHost, pulling Command Packets from its
// CmdRing, producing one audio buffer per buffer-period, and
// signaling liveness through a shared Heartbeat.
package worker

import (
	"runtime"
	"time"

	"github.com/soundworks/modsynth/internal/ring"
	"github.com/soundworks/modsynth/internal/statz"
)

// Processor is the per-buffer DSP graph driver a Worker drives: either
// a chain-mode *host.Host or a DAG-mode *router.Router. Both apply
// queued commands at a buffer boundary and produce one buffer per
// ProcessChain call without allocating.
type Processor interface {
	QueueCommand(raw []byte)
	ProcessCommands()
	ProcessChain(external []float32) []float32
	Stats() statz.WorkerStatsSnapshot
}

const (
	// coarseSleepMargin is how far ahead of the deadline the coarse
	// sleep phase stops sleeping, leaving the rest to the spin phase.
	coarseSleepMargin = 3 * time.Millisecond
	// spinMargin is how close to the deadline the spin phase settles
	// for before returning control to the caller.
	spinMargin = 1 * time.Millisecond

	maxCatchupBuffers = 2
	defaultLeadTarget = 3
	reanchorThreshold = 50 * time.Millisecond
)

// Config bundles a Worker's construction-time parameters.
type Config struct {
	SlotID     string
	SampleRate int
	BufferLen  int

	Audio     *ring.Audio
	Cmd       *ring.Cmd
	Heartbeat *ring.Heartbeat
	Wakeup    *ring.Signal
	Shutdown  *ring.Signal

	// LeadTarget caps ring occupancy during catch-up, typically 2-4
	// buffers; zero selects defaultLeadTarget.
	LeadTarget int
}

// Worker drives Config's rings against a Host once per scheduling
// cycle. Once constructed, rendering a buffer never allocates: the
// decode scratch buffer is a fixed array and the Host's own buffers are
// pre-sized. Applying a set-parameter command allocates the
// parameter-name string the Processor passes to the module.
type Worker struct {
	cfg        Config
	host       Processor
	leadTarget int
	period     time.Duration

	start time.Time
	k     int64

	raw   [64]byte
	stats statz.WorkerStats
}

// New constructs a Worker around p, which already owns whatever module
// chain or patch the deployment declared for this slot.
func New(cfg Config, p Processor) *Worker {
	lead := cfg.LeadTarget
	if lead <= 0 {
		lead = defaultLeadTarget
	}
	period := time.Duration(float64(cfg.BufferLen) / float64(cfg.SampleRate) * float64(time.Second))
	return &Worker{cfg: cfg, host: p, leadTarget: lead, period: period}
}

// Run executes the main loop until Config.Shutdown is raised, exiting
// after the buffer in flight completes. On entry it signals
// Config.Wakeup once so the Supervisor can observe this slot's first
// heartbeat.
func (w *Worker) Run() {
	w.start = time.Now()
	w.k = 0
	w.cfg.Wakeup.Set()

	for {
		if w.cfg.Shutdown.Test() {
			return
		}
		w.Step()
	}
}

// Step runs one scheduling cycle: drain and apply pending commands,
// produce the buffer due for the current schedule slot, produce any
// bounded catch-up buffers the clock demands, then pace until the next
// deadline (or re-anchor if badly behind). It returns the number of
// buffers produced this cycle (1, plus any catch-up). Exposed
// separately from Run so tests can drive the schedule deterministically.
func (w *Worker) Step() int {
	w.cfg.Wakeup.TestAndClear() // hint only — drainCommands runs regardless.
	w.produceBuffer()
	w.k++
	produced := 1

	deadline := w.start.Add(time.Duration(w.k) * w.period)
	catchup := 0
	for time.Now().After(deadline) &&
		catchup < maxCatchupBuffers &&
		w.cfg.Audio.Stats().Occupancy < w.leadTarget {
		w.produceBuffer()
		w.stats.CatchupBuffers.Inc()
		w.k++
		deadline = w.start.Add(time.Duration(w.k) * w.period)
		catchup++
		produced++
	}

	if behind := time.Since(deadline); behind > reanchorThreshold {
		w.start = time.Now()
		w.k = 0
		return produced
	}
	w.paceTo(deadline)
	return produced
}

func (w *Worker) produceBuffer() {
	w.drainCommands()
	w.host.ProcessCommands()
	out := w.host.ProcessChain(nil)
	if !w.cfg.Audio.Write(out) {
		w.stats.RingWriteDrops.Inc()
	}
	w.cfg.Heartbeat.Inc()
	w.stats.BuffersProduced.Inc()
}

func (w *Worker) drainCommands() {
	for w.cfg.Cmd.ReadNext(w.raw[:]) {
		w.host.QueueCommand(w.raw[:])
	}
}

// paceTo sleeps coarsely down to coarseSleepMargin before deadline,
// then spin-waits down to spinMargin.
func (w *Worker) paceTo(deadline time.Time) {
	for {
		remaining := time.Until(deadline)
		if remaining <= coarseSleepMargin {
			break
		}
		time.Sleep(remaining - coarseSleepMargin)
	}
	for time.Until(deadline) > spinMargin {
		runtime.Gosched()
	}
}

// Stats is the cold-path counter snapshot, merging the Worker's own
// scheduling counters with its Host's command-application counter.
func (w *Worker) Stats() statz.WorkerStatsSnapshot {
	s := w.stats.Snapshot()
	s.CommandsApplied = w.host.Stats().CommandsApplied
	return s
}
