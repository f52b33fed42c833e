package module

// EnvelopeStage is one state of the gated AD(S)R envelope.
type EnvelopeStage int

const (
	StageIdle EnvelopeStage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

// Envelope is a gated ADSR generator-style processor: it multiplies its
// input (or, with no input connected, acts as a pure control source) by
// an envelope level driven by SetGate. Attack/decay/release are linear
// per-sample ramps here; exponential is an equally valid shape, the
// choice doesn't affect correctness.
type Envelope struct {
	sampleRate int

	bank                                   *Bank
	idxAttack, idxDecay, idxSustain, idxRelease int

	stage    EnvelopeStage
	level    float32
	gateOn   bool
	attackInc, decayInc, releaseInc float32
}

// NewEnvelope constructs an Envelope with attack/decay/release times in
// milliseconds (discrete — they reconfigure the ramp rate, they are not
// themselves smoothed) and a sustain level in [0,1].
func NewEnvelope(sampleRate, bufferSize int) *Envelope {
	specs := []ParamSpec{
		{Name: "attack_ms", Default: 10, Min: 0.1, Max: 10000, SmoothingMode: SmoothNone},
		{Name: "decay_ms", Default: 100, Min: 0.1, Max: 10000, SmoothingMode: SmoothNone},
		{Name: "sustain", Default: 0.7, Min: 0, Max: 1, SmoothingMode: SmoothNone},
		{Name: "release_ms", Default: 200, Min: 0.1, Max: 10000, SmoothingMode: SmoothNone},
	}
	e := &Envelope{
		sampleRate: sampleRate,
		bank:       NewBank(specs, bufferSize),
	}
	e.idxAttack, _ = e.bank.IndexOf("attack_ms")
	e.idxDecay, _ = e.bank.IndexOf("decay_ms")
	e.idxSustain, _ = e.bank.IndexOf("sustain")
	e.idxRelease, _ = e.bank.IndexOf("release_ms")
	e.recomputeIncrements()
	return e
}

func (e *Envelope) Initialize(sampleRate, bufferSize int) { e.sampleRate = sampleRate }

func (e *Envelope) SetParameter(name string, value float64, immediate bool) bool {
	return e.bank.Set(name, value, immediate)
}

func (e *Envelope) SetGate(on bool) {
	if on && !e.gateOn {
		e.stage = StageAttack
	} else if !on && e.gateOn {
		e.stage = StageRelease
	}
	e.gateOn = on
}

func (e *Envelope) Prepare() {
	e.bank.Step()
	e.recomputeIncrements()
}

func (e *Envelope) recomputeIncrements() {
	sr := float64(e.sampleRate)
	atkMs := e.bank.Value(e.idxAttack)
	decMs := e.bank.Value(e.idxDecay)
	relMs := e.bank.Value(e.idxRelease)
	e.attackInc = float32(1.0 / (atkMs / 1000 * sr))
	sustain, _ := e.bank.ValueByName("sustain")
	e.decayInc = float32((1 - sustain) / (decMs / 1000 * sr))
	e.releaseInc = float32(1.0 / (relMs / 1000 * sr))
}

// ProcessBuffer advances the envelope state machine one sample at a
// time and writes level*in[i] into out (or just level if in is absent,
// so the envelope can also drive a parameter lane directly).
func (e *Envelope) ProcessBuffer(in, out []float32) {
	sustain := float32(e.bank.Value(e.idxSustain))
	for i := range out {
		switch e.stage {
		case StageIdle:
			e.level = 0
		case StageAttack:
			e.level += e.attackInc
			if e.level >= 1 {
				e.level = 1
				e.stage = StageDecay
			}
		case StageDecay:
			e.level -= e.decayInc
			if e.level <= sustain {
				e.level = sustain
				e.stage = StageSustain
			}
		case StageSustain:
			e.level = sustain
		case StageRelease:
			e.level -= e.releaseInc
			if e.level <= 0 {
				e.level = 0
				e.stage = StageIdle
			}
		}
		e.level = flushDenormal(e.level)
		if len(in) == len(out) {
			out[i] = e.level * in[i]
		} else {
			out[i] = e.level
		}
	}
}

func (e *Envelope) GetState() map[string]float64 {
	return map[string]float64{
		"level": float64(e.level),
		"stage": float64(e.stage),
	}
}
