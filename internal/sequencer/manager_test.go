package sequencer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soundworks/modsynth/internal/control"
)

// recordingWriter captures every packet handed to it, decoded for
// easy assertions.
type recordingWriter struct {
	packets []control.Packet
}

func (w *recordingWriter) Write(raw []byte) {
	var p control.Packet
	ok := control.Decode(raw, &p)
	if !ok {
		panic("sequencer emitted a malformed packet")
	}
	w.packets = append(w.packets, p)
}

func TestPatternTokensDecodeToVelocities(t *testing.T) {
	got := parsePattern("X.x.")
	require.Equal(t, []int{VelocityHigh, VelocityRest, VelocityLow, VelocityRest}, got)
}

func TestTickEmitsGateOnForHitStep(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w) // 100 buffers/sec, 10ms/buffer
	m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            600, // 10 steps/sec at division 4 -> 100ms/step -> 10 buffers/step
		Division:       4,
		Pattern:        "X...",
		GateLengthFrac: 0.5,
		TargetModuleID: "osc1",
		Playing:        true,
	})

	t0 := time.Now()
	m.t0 = t0
	m.globalNextBuffer = 0

	// Advance to buffer 0: first step should fire a gate-on.
	m.Tick(t0)
	require.Len(t, w.packets, 1)
	require.Equal(t, control.OpGate, w.packets[0].Op)
	require.True(t, w.packets[0].Bool())
}

func TestGateOffFiresAfterGateLengthFraction(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w)
	m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            600,
		Division:       4,
		Pattern:        "X...",
		GateLengthFrac: 0.5, // 10 buffers/step * 0.5 = 5 buffers until gate-off
		TargetModuleID: "osc1",
		Playing:        true,
	})
	m.t0 = time.Now()
	m.globalNextBuffer = 0

	m.Tick(m.t0) // buffer 0: gate-on
	require.Len(t, w.packets, 1)

	// Advance through buffers 1..4: no gate-off yet.
	for b := int64(1); b < 5; b++ {
		m.globalNextBuffer = b
		m.Tick(m.t0.Add(time.Duration(b) * m.bufferPeriod))
	}
	require.Len(t, w.packets, 1)

	// Buffer 5: gate-off fires.
	m.globalNextBuffer = 5
	m.Tick(m.t0.Add(5 * m.bufferPeriod))
	require.Len(t, w.packets, 2)
	require.Equal(t, control.OpGate, w.packets[1].Op)
	require.False(t, w.packets[1].Bool())
}

func TestRestStepEmitsNothing(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w)
	m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            600,
		Division:       4,
		Pattern:        ".",
		GateLengthFrac: 0.5,
		TargetModuleID: "osc1",
		Playing:        true,
	})
	m.t0 = time.Now()
	m.globalNextBuffer = 0
	m.Tick(m.t0)
	require.Empty(t, w.packets)
}

func TestStoppedTrackDoesNotAdvanceOrEmit(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w)
	m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            600,
		Division:       4,
		Pattern:        "X",
		GateLengthFrac: 0.5,
		TargetModuleID: "osc1",
		Playing:        false,
	})
	m.t0 = time.Now()
	m.globalNextBuffer = 0
	m.Tick(m.t0)
	require.Empty(t, w.packets)
}

func TestParamLaneEmitsSetParameterAlongsideGate(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w)
	m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            600,
		Division:       4,
		Pattern:        "X",
		GateLengthFrac: 0.5,
		TargetModuleID: "osc1",
		Playing:        true,
		ParamLanes:     []ParamLane{{ParamName: "freq_hz", Values: []float64{220}}},
	})
	m.t0 = time.Now()
	m.globalNextBuffer = 0
	m.Tick(m.t0)

	require.Len(t, w.packets, 2)
	require.Equal(t, control.OpGate, w.packets[0].Op)
	require.Equal(t, control.OpSetParameter, w.packets[1].Op)
	require.Equal(t, "freq_hz", w.packets[1].ParamString())
	require.Equal(t, 220.0, w.packets[1].Float())
}

func TestParamLaneSkipsEmitOnZeroValueStep(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w)
	m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            600,
		Division:       4,
		Pattern:        "XX",
		GateLengthFrac: 0.5,
		TargetModuleID: "osc1",
		Playing:        true,
		ParamLanes:     []ParamLane{{ParamName: "freq_hz", Values: []float64{220, 0}}},
	})
	m.t0 = time.Now()
	m.globalNextBuffer = 0

	m.Tick(m.t0) // step 0: gate-on + set-parameter (220)
	require.Len(t, w.packets, 2)
	require.Equal(t, control.OpSetParameter, w.packets[1].Op)

	m.globalNextBuffer = 10
	m.Tick(m.t0.Add(10 * m.bufferPeriod)) // step 1: gate-on only, lane value is 0
	require.Len(t, w.packets, 3)
	require.Equal(t, control.OpGate, w.packets[2].Op)
}

func TestSetPatternAppliesAtNextStepBoundary(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w)
	tr := m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            600,
		Division:       4,
		Pattern:        "X...",
		GateLengthFrac: 0.1,
		TargetModuleID: "osc1",
		Playing:        true,
	})
	m.t0 = time.Now()
	m.globalNextBuffer = 0
	m.Tick(m.t0) // consumes step 0, queues nextStepBuffer = 10

	ok := tr.SetPattern("..X.", nil)
	require.True(t, ok)

	// Before the next boundary the queued update hasn't applied yet;
	// draining happens at the start of every stepTrack call, so by the
	// time buffer 10 arrives the new pattern is live.
	m.globalNextBuffer = 10
	m.Tick(m.t0.Add(10 * m.bufferPeriod))
	require.Equal(t, 4, tr.stepCount)
}

func TestCatchUpBoundedByMaxCatchup(t *testing.T) {
	w := &recordingWriter{}
	m := NewManager(1000, 10, w)
	m.AddTrack(TrackSpec{
		Name:           "kick",
		BPM:            6000, // 1 buffer/step, so a big time jump implies many missed steps
		Division:       4,
		Pattern:        "X",
		GateLengthFrac: 0.5,
		TargetModuleID: "osc1",
		Playing:        true,
	})
	m.t0 = time.Now()
	m.globalNextBuffer = 0

	// Jump far enough ahead that naive replay would walk every missed
	// buffer one at a time; the catch-up loop must instead give up after
	// MaxCatchup replays and resume from "now".
	far := m.t0.Add(time.Duration(MaxCatchup+500) * m.bufferPeriod)
	m.Tick(far)

	require.NotEmpty(t, w.packets)
	wantNext := int64(MaxCatchup+500) + 1
	require.Equal(t, wantNext, m.globalNextBuffer)
}

func TestTrackUpdateQueueDropsWhenFull(t *testing.T) {
	tr := newTrack(TrackSpec{Name: "t", Pattern: "X", TargetModuleID: "m"})
	ok := true
	for i := 0; i < updateQueueDepth+5 && ok; i++ {
		ok = tr.enqueue(func(*Track) {})
	}
	require.False(t, ok, "enqueue should report false once the bounded queue is full")
}
