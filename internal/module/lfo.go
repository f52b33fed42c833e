package module

import "math"

// LFO is a low-frequency modulation source, rounding out the reference
// module set. It is a generator: its output is meant to feed a
// parameter lane, not the
// audio bus, so its frequency range and smoothing are tuned accordingly
// (slower, coarser than the audio-rate Oscillator).
type LFO struct {
	sampleRate int

	bank                                     *Bank
	idxFreq, idxDepth, idxOffset, idxShape int

	phase float64
}

func NewLFO(sampleRate, bufferSize int) *LFO {
	specs := []ParamSpec{
		{Name: "freq", Default: 1, Min: 0.01, Max: 20, SmoothingMode: SmoothExponential, SmoothingSamples: 256},
		{Name: "depth", Default: 1, Min: 0, Max: 1, SmoothingMode: SmoothExponential, SmoothingSamples: 256},
		{Name: "offset", Default: 0, Min: -1, Max: 1, SmoothingMode: SmoothExponential, SmoothingSamples: 256},
		{Name: "shape", Default: WaveSine, Min: WaveSine, Max: WaveTriangle, SmoothingMode: SmoothNone},
	}
	l := &LFO{sampleRate: sampleRate, bank: NewBank(specs, bufferSize)}
	l.idxFreq, _ = l.bank.IndexOf("freq")
	l.idxDepth, _ = l.bank.IndexOf("depth")
	l.idxOffset, _ = l.bank.IndexOf("offset")
	l.idxShape, _ = l.bank.IndexOf("shape")
	return l
}

func (l *LFO) Initialize(sampleRate, bufferSize int) { l.sampleRate = sampleRate }

func (l *LFO) SetParameter(name string, value float64, immediate bool) bool {
	return l.bank.Set(name, value, immediate)
}

func (l *LFO) Prepare() { l.bank.Step() }

func (l *LFO) ProcessBuffer(in, out []float32) {
	freq := l.bank.Value(l.idxFreq)
	depth := l.bank.Value(l.idxDepth)
	offset := l.bank.Value(l.idxOffset)
	shape := int(l.bank.Value(l.idxShape))

	inc := 2 * math.Pi * freq / float64(l.sampleRate)
	phase := l.phase
	for i := range out {
		var s float64
		switch shape {
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
		out[i] = float32(s*depth + offset)

		phase += inc
		if phase >= 2*math.Pi {
			phase -= 2 * math.Pi
		}
	}
	l.phase = phase
}

func (l *LFO) GetState() map[string]float64 {
	freq, _ := l.bank.ValueByName("freq")
	depth, _ := l.bank.ValueByName("depth")
	return map[string]float64{"freq": freq, "depth": depth}
}
