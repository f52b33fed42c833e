// Package supervisor implements the dual-slot failover orchestrator:
// it owns the sound-device pull callback, drives a monitor goroutine
// that watches both slots for failure, and executes a two-phase
// failover (flip the active slot at the next callback, then clean up
// and respawn the failed slot off the audio hot path).
package supervisor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/soundworks/modsynth/internal/ring"
	"github.com/soundworks/modsynth/internal/shm"
	"github.com/soundworks/modsynth/internal/statz"
	"github.com/soundworks/modsynth/internal/synerr"
)

// State is the supervisor's coarse-grained failover state.
type State int32

const (
	StateRunning State = iota
	StateFailoverPending
	StatePostFailoverCleanup
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFailoverPending:
		return "failover_pending"
	case StatePostFailoverCleanup:
		return "post_failover_cleanup"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// SlotPaths are the shared-memory file paths a spawned worker must
// reopen to rebind its process-local view onto the slot's rings.
type SlotPaths struct {
	AudioPath    string
	CmdPath      string
	HeartbeatPath string
	WakeupPath   string
	ShutdownPath string
}

// ProcHandle is the subset of *procsup.Process the supervisor needs;
// tests satisfy it with a fake that never touches os/exec.
type ProcHandle interface {
	Exited() bool
	Stop(grace time.Duration)
}

// Spawner starts the worker process occupying a slot. Production code
// shells out to the modsynth-worker binary via ExecSpawner.
type Spawner interface {
	Spawn(slotIndex int, paths SlotPaths) (ProcHandle, error)
}

// Config bundles the supervisor's deployment tunables.
type Config struct {
	SampleRate, BufferLen int
	RingDepth, CmdDepth   int
	KeepAfterRead         int
	HeartbeatTimeout      time.Duration
	StartupGracePeriod    time.Duration
	MonitorPeriod         time.Duration
	StopGrace             time.Duration
	DedupWindow           time.Duration
	ShmDir                string
}

// DefaultConfig returns the reference tuning values used when no
// deployment config overrides them.
func DefaultConfig() Config {
	return Config{
		SampleRate:         44100,
		BufferLen:          512,
		RingDepth:          16,
		CmdDepth:           32,
		KeepAfterRead:      2,
		HeartbeatTimeout:   50 * time.Millisecond,
		StartupGracePeriod: time.Second,
		MonitorPeriod:      10 * time.Millisecond,
		StopGrace:          500 * time.Millisecond,
		DedupWindow:        time.Second,
		ShmDir:             "/dev/shm/modsynth",
	}
}

// Supervisor is the dual-slot failover orchestrator.
type Supervisor struct {
	cfg     Config
	spawner Spawner
	log     *log.Logger

	slots [2]*slot

	activeSlotIndex          atomic.Int32
	pendingSwitch            atomic.Bool
	targetSlotIndex          atomic.Int32
	postSwitchCleanupPending atomic.Bool
	failedSlotIndex          atomic.Int32
	state                    atomic.Int32

	lastGood []float32
	scratch  []float32

	stats statz.SupervisorStats

	lastFailureAt [2]time.Time

	monitorStop chan struct{}
	monitorDone chan struct{}
}

// New creates a Supervisor. It does not spawn workers or start the
// monitor loop; call Start for that.
func New(cfg Config, spawner Spawner, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	sv := &Supervisor{
		cfg:      cfg,
		spawner:  spawner,
		log:      logger.With("component", "supervisor"),
		lastGood: make([]float32, cfg.BufferLen),
		scratch:  make([]float32, cfg.BufferLen),
	}
	return sv
}

// Start creates both slots' shared memory, spawns a worker in each,
// and launches the monitor goroutine.
func (sv *Supervisor) Start() error {
	for i := 0; i < 2; i++ {
		s, err := sv.createSlot(i)
		if err != nil {
			return fmt.Errorf("supervisor: create slot %d: %w", i, err)
		}
		sv.slots[i] = s
		if err := sv.spawnSlot(s); err != nil {
			return fmt.Errorf("supervisor: spawn slot %d: %w: %w", i, synerr.ErrSpawnFailed, err)
		}
	}
	sv.activeSlotIndex.Store(0)
	sv.state.Store(int32(StateRunning))

	sv.monitorStop = make(chan struct{})
	sv.monitorDone = make(chan struct{})
	go sv.monitorLoop()
	return nil
}

func (sv *Supervisor) slotPaths(i int) SlotPaths {
	return SlotPaths{
		AudioPath:     fmt.Sprintf("%s/slot%d.audio", sv.cfg.ShmDir, i),
		CmdPath:       fmt.Sprintf("%s/slot%d.cmd", sv.cfg.ShmDir, i),
		HeartbeatPath: fmt.Sprintf("%s/slot%d.heartbeat", sv.cfg.ShmDir, i),
		WakeupPath:    fmt.Sprintf("%s/slot%d.wakeup", sv.cfg.ShmDir, i),
		ShutdownPath:  fmt.Sprintf("%s/slot%d.shutdown", sv.cfg.ShmDir, i),
	}
}

func (sv *Supervisor) createSlot(i int) (*slot, error) {
	paths := sv.slotPaths(i)

	audioSize := ring.AudioSize(sv.cfg.RingDepth, sv.cfg.BufferLen)
	cmdSize := ring.CmdSize(sv.cfg.CmdDepth)

	audioSeg, err := shm.Create(paths.AudioPath, audioSize)
	if err != nil {
		return nil, err
	}
	cmdSeg, err := shm.Create(paths.CmdPath, cmdSize)
	if err != nil {
		return nil, err
	}
	hbSeg, err := shm.Create(paths.HeartbeatPath, ring.HeartbeatSize)
	if err != nil {
		return nil, err
	}
	wakeSeg, err := shm.Create(paths.WakeupPath, ring.SignalSize)
	if err != nil {
		return nil, err
	}
	shutSeg, err := shm.Create(paths.ShutdownPath, ring.SignalSize)
	if err != nil {
		return nil, err
	}

	s := &slot{
		index:     i,
		audioSeg:  audioSeg,
		cmdSeg:    cmdSeg,
		hbSeg:     hbSeg,
		wakeSeg:   wakeSeg,
		shutSeg:   shutSeg,
		audio:     ring.NewAudio(audioSeg.Data, sv.cfg.RingDepth, sv.cfg.BufferLen),
		cmd:       ring.NewCmd(cmdSeg.Data, sv.cfg.CmdDepth),
		heartbeat: ring.NewHeartbeat(hbSeg.Data),
		wakeup:    ring.NewSignal(wakeSeg.Data),
		shutdown:  ring.NewSignal(shutSeg.Data),
	}
	s.audio.Reset()
	s.cmd.Reset()
	s.heartbeat.Reset()
	return s, nil
}

func (sv *Supervisor) spawnSlot(s *slot) error {
	s.shutdown.Clear()
	p, err := sv.spawner.Spawn(s.index, sv.slotPaths(s.index))
	if err != nil {
		return err
	}
	s.proc = p
	s.spawnTime = time.Now()
	s.standbyReady = false
	s.lastHeartbeat = s.heartbeat.Load()
	s.lastHeartbeatAt = s.spawnTime
	return nil
}

// AudioCallback is the sound-device pull callback. It never
// allocates, locks, or blocks, and always fills out fully.
func (sv *Supervisor) AudioCallback(out []float32) {
	if sv.pendingSwitch.Load() {
		sv.activeSlotIndex.Store(sv.targetSlotIndex.Load())
		sv.pendingSwitch.Store(false)
		sv.postSwitchCleanupPending.Store(true)
		sv.state.Store(int32(StatePostFailoverCleanup))
	}

	active := sv.slots[sv.activeSlotIndex.Load()]
	if active.audio.ReadLatestKeep(sv.scratch, sv.cfg.KeepAfterRead) {
		copy(sv.lastGood, sv.scratch)
		sv.stats.BuffersProduced.Inc()
	} else {
		sv.stats.NoneReads.Inc()
	}
	copy(out, sv.lastGood)
}

// SendCommand implements the command-broadcast policy: during a
// switch or its cleanup, every command reaches both slots so
// the next active slot stays coherent; in steady state it only needs
// to reach the active slot, but broadcasting unconditionally is
// cheap and is what the Sequencer relies on regardless of state.
func (sv *Supervisor) SendCommand(raw []byte) {
	sv.slots[0].cmd.Write(raw)
	sv.slots[1].cmd.Write(raw)
	sv.stats.CommandsSent.Inc()
}

// CmdRing exposes one slot's CmdRing, e.g. for a control-input
// listener that prefers not to go through SendCommand's broadcast.
func (sv *Supervisor) CmdRing(i int) *ring.Cmd { return sv.slots[i].cmd }

// State is the cold-path state introspection call.
func (sv *Supervisor) State() State { return State(sv.state.Load()) }

// ActiveSlot returns the currently active slot index.
func (sv *Supervisor) ActiveSlot() int { return int(sv.activeSlotIndex.Load()) }

// Stats is the cold-path status operation.
func (sv *Supervisor) Stats() statz.SupervisorStatsSnapshot { return sv.stats.Snapshot() }

// Stop signals both workers to shut down, waits up to StopGrace, force
// terminates stragglers, unmaps shared memory, and removes its backing
// files.
func (sv *Supervisor) Stop() {
	if sv.monitorStop != nil {
		close(sv.monitorStop)
		<-sv.monitorDone
	}
	for _, s := range sv.slots {
		if s == nil {
			continue
		}
		s.shutdown.Set()
		if s.proc != nil {
			s.proc.Stop(sv.cfg.StopGrace)
		}
		s.closeSegments()
	}
	for i := 0; i < 2; i++ {
		paths := sv.slotPaths(i)
		_ = shm.Remove(paths.AudioPath)
		_ = shm.Remove(paths.CmdPath)
		_ = shm.Remove(paths.HeartbeatPath)
		_ = shm.Remove(paths.WakeupPath)
		_ = shm.Remove(paths.ShutdownPath)
	}
}
