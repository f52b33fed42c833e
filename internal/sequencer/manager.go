// Package sequencer implements the epoch-anchored step scheduler: one
// goroutine advances every Track against a shared wall-clock epoch,
// quantized to buffer periods, and emits Command Packets into both
// Supervisor slots' CmdRings.
package sequencer

import (
	"math"
	"time"

	"github.com/soundworks/modsynth/internal/control"
	"github.com/soundworks/modsynth/internal/ring"
)

// MaxCatchup bounds how many missed buffer boundaries a single tick
// will replay before skipping ahead, so a long scheduling stall (GC
// pause, debugger breakpoint) can't wedge the sequencer into catching
// up forever instead of just losing the steps it missed.
const MaxCatchup = 100

// CmdWriter is the subset of ring.Cmd the sequencer needs. A bare
// ring.Cmd satisfies it; cmd/modsynth-supervisor adapts
// Supervisor.SendCommand, which writes into both slots, to it.
type CmdWriter interface {
	Write(packet []byte)
}

// SequencerManager owns every Track and the epoch clock that advances
// them in lockstep with the audio buffer period.
type SequencerManager struct {
	bufferPeriod time.Duration

	tracks     map[string]*Track
	trackOrder []string

	writers []CmdWriter

	t0               time.Time
	globalNextBuffer int64

	stop chan struct{}
	done chan struct{}
}

// NewManager builds a manager paced to sampleRate/bufferLen, emitting
// every packet into each of writers (typically both Supervisor slots'
// CmdRings, so a mid-pattern failover never drops a step).
func NewManager(sampleRate, bufferLen int, writers ...CmdWriter) *SequencerManager {
	period := time.Duration(float64(bufferLen) / float64(sampleRate) * float64(time.Second))
	return &SequencerManager{
		bufferPeriod: period,
		tracks:       make(map[string]*Track),
		writers:      writers,
	}
}

// AddTrack registers a new track from its declarative spec. Must be
// called before Start.
func (m *SequencerManager) AddTrack(spec TrackSpec) *Track {
	t := newTrack(spec)
	m.tracks[spec.Name] = t
	m.trackOrder = append(m.trackOrder, spec.Name)
	return t
}

// Track looks up a registered track by name.
func (m *SequencerManager) Track(name string) (*Track, bool) {
	t, ok := m.tracks[name]
	return t, ok
}

// Start anchors the epoch at the current wall-clock time and launches
// the scheduling goroutine.
func (m *SequencerManager) Start() {
	m.t0 = time.Now()
	m.globalNextBuffer = 0
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run()
}

// Stop signals the scheduling goroutine and waits for it to exit.
func (m *SequencerManager) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
	m.stop = nil
}

func (m *SequencerManager) run() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		default:
		}
		m.Tick(time.Now())
		d := m.sleepDuration()
		select {
		case <-m.stop:
			return
		case <-time.After(d):
		}
	}
}

// Tick advances every track up to the buffer boundary that now falls
// at or before, bounded by MaxCatchup. Exported so tests can drive the
// schedule deterministically without racing a real goroutine.
func (m *SequencerManager) Tick(now time.Time) {
	currentBuffer := int64(now.Sub(m.t0) / m.bufferPeriod)
	replayed := 0
	for m.globalNextBuffer <= currentBuffer && replayed < MaxCatchup {
		for _, name := range m.trackOrder {
			m.stepTrack(m.tracks[name])
		}
		m.globalNextBuffer++
		replayed++
	}
	if replayed >= MaxCatchup {
		// Stayed pinned to MaxCatchup replays without reaching
		// currentBuffer: stop trying to replay the gap and resume
		// from "now" instead of wedging here indefinitely.
		m.globalNextBuffer = currentBuffer + 1
	}
}

func (m *SequencerManager) sleepDuration() time.Duration {
	target := m.t0.Add(time.Duration(m.globalNextBuffer) * m.bufferPeriod)
	d := target.Sub(time.Now())
	const minSleep = time.Millisecond
	maxSleep := m.bufferPeriod / 2
	if d < minSleep {
		d = minSleep
	}
	if d > maxSleep {
		d = maxSleep
	}
	return d
}

func (m *SequencerManager) stepTrack(t *Track) {
	drainUpdates(t)

	if !t.playing || t.stepCount == 0 {
		return
	}

	if t.gateOffPending && t.gateOffBuffer == m.globalNextBuffer {
		m.emit(control.Gate(t.targetModuleID, false))
		t.gateOffPending = false
	}

	if t.nextStepBuffer != m.globalNextBuffer {
		return
	}

	if t.pendingConfig != nil {
		t.bpm = t.pendingConfig.bpm
		t.division = t.pendingConfig.division
		t.pendingConfig = nil
	}
	t.bufferPerStep = stepsToBuffers(t.bpm, t.division, m.bufferPeriod)

	vel := t.velocities[t.currentStep]
	if vel > 0 {
		m.emit(control.Gate(t.targetModuleID, true))
		t.gateOffBuffer = t.nextStepBuffer + gateOffOffset(t.gateLengthFrac, t.bufferPerStep)
		t.gateOffPending = true
	}
	for _, lane := range t.lanes {
		if v := lane.Values[t.currentStep]; v != 0 {
			m.emit(control.SetParameter(t.targetModuleID, lane.ParamName, v, false))
		}
	}

	t.currentStep = (t.currentStep + 1) % t.stepCount
	t.nextStepBuffer += t.bufferPerStep
}

func drainUpdates(t *Track) {
	for {
		select {
		case u := <-t.updates:
			u(t)
		default:
			return
		}
	}
}

// stepsToBuffers converts a bpm/division pair into whole buffer
// periods per step, rounding to the nearest buffer and never below one
// (a step can't advance faster than one buffer period).
func stepsToBuffers(bpm float64, division int, bufferPeriod time.Duration) int64 {
	if bpm <= 0 || division <= 0 {
		return 1
	}
	stepsPerBeat := float64(division) / 4.0
	secPerStep := (60.0 / bpm) / stepsPerBeat
	buffers := int64(math.Round(secPerStep / bufferPeriod.Seconds()))
	if buffers < 1 {
		buffers = 1
	}
	return buffers
}

func gateOffOffset(frac float64, bufferPerStep int64) int64 {
	off := int64(math.Round(frac * float64(bufferPerStep)))
	if off < 1 {
		off = 1
	}
	if off > bufferPerStep {
		off = bufferPerStep
	}
	return off
}

func (m *SequencerManager) emit(p control.Packet) {
	var raw [control.PacketSize]byte
	control.Encode(&p, raw[:])
	for _, w := range m.writers {
		w.Write(raw[:])
	}
}

var _ CmdWriter = (*ring.Cmd)(nil)
