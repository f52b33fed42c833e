package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soundworks/modsynth/internal/ring"
)

const (
	testBufLen   = 8
	testRingN    = 4
	testCmdDepth = 8
)

// fakeProc is a ProcHandle test double with no real os/exec process
// behind it.
type fakeProc struct {
	exited bool
}

func (f *fakeProc) Exited() bool            { return f.exited }
func (f *fakeProc) Stop(_ time.Duration)    {}

func newTestSlot(idx int) *slot {
	audioBuf := make([]byte, ring.AudioSize(testRingN, testBufLen))
	cmdBuf := make([]byte, ring.CmdSize(testCmdDepth))
	hbBuf := make([]byte, ring.HeartbeatSize)
	wakeBuf := make([]byte, ring.SignalSize)
	shutBuf := make([]byte, ring.SignalSize)
	return &slot{
		index:     idx,
		audio:     ring.NewAudio(audioBuf, testRingN, testBufLen),
		cmd:       ring.NewCmd(cmdBuf, testCmdDepth),
		heartbeat: ring.NewHeartbeat(hbBuf),
		wakeup:    ring.NewSignal(wakeBuf),
		shutdown:  ring.NewSignal(shutBuf),
		proc:      &fakeProc{},
		spawnTime: time.Now().Add(-time.Hour), // already past the startup grace period
	}
}

// fakeSpawner counts respawns and hands back fresh fakeProcs without
// touching os/exec.
type fakeSpawner struct {
	spawns int
}

func (f *fakeSpawner) Spawn(_ int, _ SlotPaths) (ProcHandle, error) {
	f.spawns++
	return &fakeProc{}, nil
}

func newTestSupervisor() *Supervisor {
	cfg := DefaultConfig()
	cfg.BufferLen = testBufLen
	cfg.RingDepth = testRingN
	cfg.CmdDepth = testCmdDepth
	cfg.HeartbeatTimeout = 20 * time.Millisecond
	cfg.StartupGracePeriod = 0
	cfg.DedupWindow = 0

	sv := New(cfg, &fakeSpawner{}, nil)
	sv.slots[0] = newTestSlot(0)
	sv.slots[1] = newTestSlot(1)
	sv.activeSlotIndex.Store(0)
	sv.state.Store(int32(StateRunning))
	return sv
}

func TestAudioCallbackCopiesActiveSlotBuffer(t *testing.T) {
	sv := newTestSupervisor()
	payload := make([]float32, testBufLen)
	for i := range payload {
		payload[i] = float32(i + 1)
	}
	sv.slots[0].audio.Write(payload)

	out := make([]float32, testBufLen)
	sv.AudioCallback(out)
	require.Equal(t, payload, out)
	require.Equal(t, uint64(1), sv.Stats().BuffersProduced)
}

func TestAudioCallbackFallsBackToLastGoodOnUnderrun(t *testing.T) {
	sv := newTestSupervisor()
	payload := make([]float32, testBufLen)
	payload[0] = 42
	sv.slots[0].audio.Write(payload)

	out := make([]float32, testBufLen)
	sv.AudioCallback(out) // primes last_good
	require.Equal(t, float32(42), out[0])

	out2 := make([]float32, testBufLen)
	sv.AudioCallback(out2) // ring now empty -> falls back
	require.Equal(t, float32(42), out2[0])
	require.Equal(t, uint64(1), sv.Stats().NoneReads)
}

func TestAudioCallbackFlipsActiveSlotOnPendingSwitch(t *testing.T) {
	sv := newTestSupervisor()
	sv.targetSlotIndex.Store(1)
	sv.pendingSwitch.Store(true)

	out := make([]float32, testBufLen)
	sv.AudioCallback(out)

	require.Equal(t, 1, sv.ActiveSlot())
	require.Equal(t, StatePostFailoverCleanup, sv.State())
}

func TestMonitorArmsFailoverWhenActiveSlotStalls(t *testing.T) {
	sv := newTestSupervisor()
	sv.slots[1].standbyReady = true // standby must be ready for failover to arm
	sv.slots[0].lastHeartbeatAt = time.Now().Add(-time.Hour)

	sv.runMonitorOnce(time.Now())

	require.True(t, sv.pendingSwitch.Load())
	require.Equal(t, int32(1), sv.targetSlotIndex.Load())
	require.Equal(t, StateFailoverPending, sv.State())
	require.Equal(t, uint64(1), sv.Stats().FailoverCount)
}

func TestMonitorDoesNotFailoverWithoutReadyStandby(t *testing.T) {
	sv := newTestSupervisor()
	sv.slots[1].standbyReady = false
	sv.slots[0].lastHeartbeatAt = time.Now().Add(-time.Hour)

	sv.runMonitorOnce(time.Now())

	require.False(t, sv.pendingSwitch.Load())
}

func TestMonitorRespawnsFailedStandbyWithoutTouchingActive(t *testing.T) {
	sv := newTestSupervisor()
	sv.slots[1].proc.(*fakeProc).exited = true

	sv.runMonitorOnce(time.Now())

	require.Equal(t, 1, sv.spawner.(*fakeSpawner).spawns)
	require.Equal(t, 0, sv.ActiveSlot())
}

func TestCleanupRespawnsFailedSlotAndReturnsToDegraded(t *testing.T) {
	sv := newTestSupervisor()
	sv.failedSlotIndex.Store(0)
	sv.postSwitchCleanupPending.Store(true)
	sv.activeSlotIndex.Store(1)

	sv.runMonitorOnce(time.Now())

	require.False(t, sv.postSwitchCleanupPending.Load())
	require.Equal(t, StateDegraded, sv.State())
	require.Equal(t, 1, sv.spawner.(*fakeSpawner).spawns)
}

func TestDegradedReturnsToRunningOnceStandbyPublishes(t *testing.T) {
	sv := newTestSupervisor()
	sv.state.Store(int32(StateDegraded))
	sv.activeSlotIndex.Store(0)

	sv.runMonitorOnce(time.Now()) // standby (slot 1) hasn't published yet
	require.Equal(t, StateDegraded, sv.State())

	sv.slots[1].audio.Write(make([]float32, testBufLen))
	sv.runMonitorOnce(time.Now())
	require.Equal(t, StateRunning, sv.State())
}

func TestSendCommandBroadcastsToBothSlots(t *testing.T) {
	sv := newTestSupervisor()
	raw := make([]byte, 64)
	raw[0] = 2 // OpGate
	sv.SendCommand(raw)

	var dst [64]byte
	require.True(t, sv.slots[0].cmd.ReadNext(dst[:]))
	require.True(t, sv.slots[1].cmd.ReadNext(dst[:]))
	require.Equal(t, uint64(1), sv.Stats().CommandsSent)
}

func TestDedupSuppressesRepeatedDetectionWithinWindow(t *testing.T) {
	sv := newTestSupervisor()
	sv.cfg.DedupWindow = time.Hour
	sv.slots[1].standbyReady = true
	sv.slots[0].lastHeartbeatAt = time.Now().Add(-time.Hour)

	now := time.Now()
	sv.runMonitorOnce(now)
	require.Equal(t, uint64(1), sv.Stats().FailoverCount)

	// Reset pendingSwitch as the callback would, then fail again
	// immediately: dedup should suppress a second detection.
	sv.pendingSwitch.Store(false)
	sv.runMonitorOnce(now.Add(time.Millisecond))
	require.Equal(t, uint64(1), sv.Stats().FailoverCount)
}
