package sequencer

// Velocity values a pattern token decodes to.
const (
	VelocityRest = 0
	VelocityLow  = 64
	VelocityHigh = 127
)

// ParamLane is a per-step float lane bound to one parameter on a
// Track's target module. Values is padded or truncated to the
// pattern's step count.
type ParamLane struct {
	ParamName string
	Values    []float64
}

// TrackSpec is the declarative form of a Track, as read from
// configuration.
type TrackSpec struct {
	Name             string
	BPM              float64
	Division         int // e.g. 16 for sixteenth notes
	Pattern          string
	GateLengthFrac   float64
	TargetModuleID   string
	ParamLanes       []ParamLane
	Playing          bool
}

type trackConfig struct {
	bpm      float64
	division int
}

// trackUpdate is one queued mutation, applied by the sequencer thread
// at the start of each buffer tick, before the track's step check, so a
// new pattern is first read at the next step boundary and never
// mid-step.
type trackUpdate func(t *Track)

// Track is one sequenced lane: a gate target plus optional parameter
// lanes, advanced by SequencerManager's epoch-anchored clock.
type Track struct {
	name string

	bpm       float64
	division  int
	stepCount int

	velocities []int
	lanes      []ParamLane

	gateLengthFrac float64
	targetModuleID string

	currentStep    int
	nextStepBuffer int64
	gateOffBuffer  int64
	gateOffPending bool
	bufferPerStep  int64
	playing        bool

	pendingConfig *trackConfig

	updates chan trackUpdate
}

const updateQueueDepth = 32

func newTrack(spec TrackSpec) *Track {
	velocities := parsePattern(spec.Pattern)
	n := len(velocities)
	lanes := make([]ParamLane, len(spec.ParamLanes))
	for i, l := range spec.ParamLanes {
		lanes[i] = ParamLane{ParamName: l.ParamName, Values: padTrunc(l.Values, n)}
	}
	t := &Track{
		name:           spec.Name,
		bpm:            spec.BPM,
		division:       spec.Division,
		stepCount:      n,
		velocities:     velocities,
		lanes:          lanes,
		gateLengthFrac: spec.GateLengthFrac,
		targetModuleID: spec.TargetModuleID,
		playing:        spec.Playing,
		updates:        make(chan trackUpdate, updateQueueDepth),
	}
	return t
}

func parsePattern(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		switch r {
		case 'X':
			out = append(out, VelocityHigh)
		case 'x':
			out = append(out, VelocityLow)
		case '.':
			out = append(out, VelocityRest)
		}
	}
	return out
}

func padTrunc(v []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, v)
	return out
}

// enqueue is a non-blocking best-effort send; a full queue drops the
// update. The per-track update queue is the one place a producer is
// allowed to observe full and drop, rather than block or overwrite.
func (t *Track) enqueue(u trackUpdate) bool {
	select {
	case t.updates <- u:
		return true
	default:
		return false
	}
}

// SetPattern replaces the pattern (and, optionally, its parameter
// lanes) as a single atomic pair-swap applied at the next step boundary.
func (t *Track) SetPattern(pattern string, lanes []ParamLane) bool {
	velocities := parsePattern(pattern)
	n := len(velocities)
	padded := make([]ParamLane, len(lanes))
	for i, l := range lanes {
		padded[i] = ParamLane{ParamName: l.ParamName, Values: padTrunc(l.Values, n)}
	}
	return t.enqueue(func(tr *Track) {
		tr.stepCount = n
		tr.velocities = velocities
		tr.lanes = padded
		if tr.currentStep >= n {
			tr.currentStep = 0
		}
	})
}

// SetTempo stages a bpm/division change, applied at the next step
// boundary, where buffers-per-step is recomputed from the new values.
func (t *Track) SetTempo(bpm float64, division int) bool {
	return t.enqueue(func(tr *Track) { tr.pendingConfig = &trackConfig{bpm: bpm, division: division} })
}

// SetGateLength stages a new gate-length fraction.
func (t *Track) SetGateLength(frac float64) bool {
	return t.enqueue(func(tr *Track) { tr.gateLengthFrac = frac })
}

// Start/Stop/Reset stage the corresponding playback-state transitions.
func (t *Track) Start() bool { return t.enqueue(func(tr *Track) { tr.playing = true }) }
func (t *Track) Stop() bool  { return t.enqueue(func(tr *Track) { tr.playing = false }) }
func (t *Track) Reset() bool {
	return t.enqueue(func(tr *Track) {
		tr.currentStep = 0
		tr.gateOffPending = false
	})
}
