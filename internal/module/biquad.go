package module

import "math"

// BiquadMode selects the filter response.
const (
	BiquadLowpass = iota
	BiquadHighpass
	BiquadBandpass
)

// Biquad is a transposed-direct-form-II biquad filter (RBJ cookbook
// coefficients). Coefficients are recomputed only when {cutoff, q,
// mode} actually change between buffers.
type Biquad struct {
	sampleRate int

	bank                                  *Bank
	idxCutoff, idxQ, idxMode int

	// transposed direct form II state
	z1, z2 float32

	// coefficients, recomputed lazily
	b0, b1, b2, a1, a2 float32

	lastCutoff, lastQ float64
	lastMode          int
	coeffsValid       bool
}

// NewBiquad constructs a Biquad with cutoff (Hz, log-smoothed, clamped
// to [10, Nyquist-10]), q (exponential-smoothed) and a discrete mode
// selector.
func NewBiquad(sampleRate, bufferSize int) *Biquad {
	nyquistGuard := float64(sampleRate)/2 - 10
	specs := []ParamSpec{
		{Name: "cutoff", Default: 1000, Min: 10, Max: nyquistGuard, SmoothingMode: SmoothLog, SmoothingSamples: 64},
		{Name: "q", Default: 0.707, Min: 0.1, Max: 20, SmoothingMode: SmoothExponential, SmoothingSamples: 128},
		{Name: "mode", Default: BiquadLowpass, Min: BiquadLowpass, Max: BiquadBandpass, SmoothingMode: SmoothNone},
	}
	f := &Biquad{
		sampleRate: sampleRate,
		bank:       NewBank(specs, bufferSize),
	}
	f.idxCutoff, _ = f.bank.IndexOf("cutoff")
	f.idxQ, _ = f.bank.IndexOf("q")
	f.idxMode, _ = f.bank.IndexOf("mode")
	return f
}

func (f *Biquad) Initialize(sampleRate, bufferSize int) { f.sampleRate = sampleRate }

func (f *Biquad) SetParameter(name string, value float64, immediate bool) bool {
	return f.bank.Set(name, value, immediate)
}

func (f *Biquad) Prepare() {
	f.bank.Step()
	f.maybeRecompute()
}

func (f *Biquad) maybeRecompute() {
	cutoff := f.bank.Value(f.idxCutoff)
	q := f.bank.Value(f.idxQ)
	mode := int(f.bank.Value(f.idxMode))
	if f.coeffsValid && cutoff == f.lastCutoff && q == f.lastQ && mode == f.lastMode {
		return
	}
	f.recompute(cutoff, q, mode)
	f.lastCutoff, f.lastQ, f.lastMode = cutoff, q, mode
	f.coeffsValid = true
}

func (f *Biquad) recompute(cutoff, q float64, mode int) {
	w0 := 2 * math.Pi * cutoff / float64(f.sampleRate)
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	var b0, b1, b2, a0, a1, a2 float64
	switch mode {
	case BiquadHighpass:
		b0 = (1 + cosw0) / 2
		b1 = -(1 + cosw0)
		b2 = (1 + cosw0) / 2
	case BiquadBandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	default: // BiquadLowpass
		b0 = (1 - cosw0) / 2
		b1 = 1 - cosw0
		b2 = (1 - cosw0) / 2
	}
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha

	f.b0, f.b1, f.b2 = float32(b0/a0), float32(b1/a0), float32(b2/a0)
	f.a1, f.a2 = float32(a1/a0), float32(a2/a0)
}

// ProcessBuffer applies the filter in transposed direct form II.
func (f *Biquad) ProcessBuffer(in, out []float32) {
	for i, x := range in {
		y := f.b0*x + f.z1
		f.z1 = f.b1*x - f.a1*y + f.z2
		f.z2 = f.b2*x - f.a2*y
		f.z1 = flushDenormal(f.z1)
		f.z2 = flushDenormal(f.z2)
		out[i] = y
	}
}

func (f *Biquad) GetState() map[string]float64 {
	cutoff, _ := f.bank.ValueByName("cutoff")
	q, _ := f.bank.ValueByName("q")
	mode, _ := f.bank.ValueByName("mode")
	return map[string]float64{"cutoff": cutoff, "q": q, "mode": mode}
}
