// Package module implements the Module contract: a unit of DSP with
// boundary-applied, smoothed parameters and an allocation-free
// per-buffer processing call. It also rounds out the minimum three
// reference modules (oscillator, envelope, biquad) with an LFO and a
// distortion/waveshaper.
package module

// Module is the mandatory capability set every DSP unit implements.
// ProcessBuffer must not allocate; generators ignore in, processors
// read it (both in and out have length equal to the buffer size given
// to Initialize).
type Module interface {
	Initialize(sampleRate, bufferSize int)
	SetParameter(name string, value float64, immediate bool) bool
	Prepare()
	ProcessBuffer(in, out []float32)
}

// Gater is implemented by modules with an optional gate input (e.g.
// the envelope).
type Gater interface {
	SetGate(on bool)
}

// StateReporter is implemented by modules that expose their parameter
// state for cold-path introspection (an optional get_state).
type StateReporter interface {
	GetState() map[string]float64
}

// flushDenormal zeroes values too small to matter, avoiding the
// denormal-number performance cliff in filter and envelope state.
func flushDenormal(v float32) float32 {
	const tiny = 1.0e-15
	if v > -tiny && v < tiny {
		return 0
	}
	return v
}
