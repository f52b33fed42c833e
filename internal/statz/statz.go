// Package statz holds the cold-path counters every hot-path component
// bumps instead of logging or returning an error. They are read through
// the Snapshot methods (Supervisor.Stats, Worker.Stats); nothing logs
// them periodically, and nothing on the audio or worker render path
// ever touches the logger directly.
package statz

import "sync/atomic"

// Counter is a monotonic, allocation-free counter safe for concurrent
// increment from exactly one writer and read from any number of readers.
type Counter struct {
	v atomic.Uint64
}

func (c *Counter) Inc()            { c.v.Add(1) }
func (c *Counter) Add(n uint64)     { c.v.Add(n) }
func (c *Counter) Load() uint64    { return c.v.Load() }

// RingStats mirrors the Ring.Stats() cold-path introspection call.
type RingStats struct {
	Overruns  Counter
	Underruns Counter
}

// CmdRingStats mirrors CmdRing cold-path introspection.
type CmdRingStats struct {
	Drops Counter
}

// WorkerStats accumulates per-worker-loop counters. It embeds atomic
// values and must never be copied by value — call Snapshot for a
// point-in-time copy safe to pass around.
type WorkerStats struct {
	BuffersProduced Counter
	RingWriteDrops  Counter
	CommandsApplied Counter
	CatchupBuffers  Counter
}

// WorkerStatsSnapshot is a plain-value copy of WorkerStats, safe to
// return, log, or compare.
type WorkerStatsSnapshot struct {
	BuffersProduced uint64
	RingWriteDrops  uint64
	CommandsApplied uint64
	CatchupBuffers  uint64
}

// Snapshot reads every counter once into a plain-value struct.
func (s *WorkerStats) Snapshot() WorkerStatsSnapshot {
	return WorkerStatsSnapshot{
		BuffersProduced: s.BuffersProduced.Load(),
		RingWriteDrops:  s.RingWriteDrops.Load(),
		CommandsApplied: s.CommandsApplied.Load(),
		CatchupBuffers:  s.CatchupBuffers.Load(),
	}
}

// SupervisorStats accumulates supervisor-wide counters surfaced by the
// cold-path status operation. Never copy by value; use Snapshot.
type SupervisorStats struct {
	BuffersProduced  Counter
	NoneReads        Counter
	FailoverCount    Counter
	LastFailoverNS   atomic.Int64
	DeviceUnderflows Counter
	DeviceOverflows  Counter
	CommandsSent     Counter
}

// SupervisorStatsSnapshot is a plain-value copy of SupervisorStats.
type SupervisorStatsSnapshot struct {
	BuffersProduced  uint64
	NoneReads        uint64
	FailoverCount    uint64
	LastFailoverNS   int64
	DeviceUnderflows uint64
	DeviceOverflows  uint64
	CommandsSent     uint64
}

// Snapshot reads every counter once into a plain-value struct.
func (s *SupervisorStats) Snapshot() SupervisorStatsSnapshot {
	return SupervisorStatsSnapshot{
		BuffersProduced:  s.BuffersProduced.Load(),
		NoneReads:        s.NoneReads.Load(),
		FailoverCount:    s.FailoverCount.Load(),
		LastFailoverNS:   s.LastFailoverNS.Load(),
		DeviceUnderflows: s.DeviceUnderflows.Load(),
		DeviceOverflows:  s.DeviceOverflows.Load(),
		CommandsSent:     s.CommandsSent.Load(),
	}
}
