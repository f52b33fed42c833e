package module

import "math"

// Waveform selects the oscillator's shape.
const (
	WaveSine = iota
	WaveSaw
	WaveSquare
	WaveTriangle
)

// Oscillator is a phase-accumulator generator. It ignores its input
// buffer entirely — generators are allowed to.
type Oscillator struct {
	sampleRate int
	bufferLen  int

	bank                     *Bank
	idxFreq, idxGain, idxWave int

	phase float64 // radians, wrapped every 2*pi
}

// NewOscillator constructs an Oscillator with freq (log-smoothed, Hz,
// clamped to (0, Nyquist-10]), gain (exponential-smoothed, [0,1]) and a
// discrete waveform selector.
func NewOscillator(sampleRate, bufferSize int) *Oscillator {
	nyquistGuard := float64(sampleRate)/2 - 10
	specs := []ParamSpec{
		{Name: "freq", Default: 440, Min: 0.01, Max: nyquistGuard, SmoothingMode: SmoothLog, SmoothingSamples: 64},
		{Name: "gain", Default: 0.5, Min: 0, Max: 1, SmoothingMode: SmoothExponential, SmoothingSamples: 128},
		{Name: "waveform", Default: WaveSine, Min: WaveSine, Max: WaveTriangle, SmoothingMode: SmoothNone},
	}
	o := &Oscillator{
		sampleRate: sampleRate,
		bufferLen:  bufferSize,
		bank:       NewBank(specs, bufferSize),
	}
	o.idxFreq, _ = o.bank.IndexOf("freq")
	o.idxGain, _ = o.bank.IndexOf("gain")
	o.idxWave, _ = o.bank.IndexOf("waveform")
	return o
}

func (o *Oscillator) Initialize(sampleRate, bufferSize int) {
	o.sampleRate = sampleRate
	o.bufferLen = bufferSize
}

func (o *Oscillator) SetParameter(name string, value float64, immediate bool) bool {
	return o.bank.Set(name, value, immediate)
}

func (o *Oscillator) Prepare() { o.bank.Step() }

// ProcessBuffer ignores in — Oscillator is a generator.
func (o *Oscillator) ProcessBuffer(in, out []float32) {
	freq := o.bank.Value(o.idxFreq)
	gain := o.bank.Value(o.idxGain)
	wave := int(o.bank.Value(o.idxWave))

	inc := 2 * math.Pi * freq / float64(o.sampleRate)
	phase := o.phase
	for i := range out {
		var s float64
		switch wave {
		case WaveSaw:
			s = 1 - 2*(phase/(2*math.Pi))
		case WaveSquare:
			if phase < math.Pi {
				s = 1
			} else {
				s = -1
			}
		case WaveTriangle:
			frac := phase / (2 * math.Pi)
			s = 4*math.Abs(frac-0.5) - 1
		default:
			s = math.Sin(phase)
		}
		out[i] = float32(s * gain)

		phase += inc
		if phase >= 2*math.Pi {
			phase -= 2 * math.Pi
		}
	}
	o.phase = phase
}

func (o *Oscillator) GetState() map[string]float64 {
	freq, _ := o.bank.ValueByName("freq")
	gain, _ := o.bank.ValueByName("gain")
	wave, _ := o.bank.ValueByName("waveform")
	return map[string]float64{"freq": freq, "gain": gain, "waveform": wave}
}
