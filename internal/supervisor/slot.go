package supervisor

import (
	"time"

	"github.com/soundworks/modsynth/internal/ring"
	"github.com/soundworks/modsynth/internal/shm"
)

// slot is one of the two {Ring, CmdRing, wakeup_event, shutdown_signal,
// Worker handle, spawn_time} bundles a Supervisor owns. Rings belong to
// the slot, not the worker occupying it — a respawn keeps the same
// shared memory and only replaces the process.
type slot struct {
	index int

	audioSeg *shm.Segment
	cmdSeg   *shm.Segment
	hbSeg    *shm.Segment
	wakeSeg  *shm.Segment
	shutSeg  *shm.Segment

	audio     *ring.Audio
	cmd       *ring.Cmd
	heartbeat *ring.Heartbeat
	wakeup    *ring.Signal
	shutdown  *ring.Signal

	proc      ProcHandle
	spawnTime time.Time

	standbyReady bool

	lastHeartbeat   uint64
	lastHeartbeatAt time.Time
}

func (s *slot) segments() []*shm.Segment {
	return []*shm.Segment{s.audioSeg, s.cmdSeg, s.hbSeg, s.wakeSeg, s.shutSeg}
}

func (s *slot) closeSegments() {
	for _, seg := range s.segments() {
		if seg != nil {
			_ = seg.Close()
		}
	}
}
