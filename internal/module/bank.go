package module

import "math"

type paramState struct {
	spec ParamSpec
	cur  float64
	tgt  float64

	// linearStep is the per-buffer delta for SmoothLinear, fixed when
	// the target changes so the ramp covers the distance in exactly
	// ceil(SmoothingSamples/bufferLen) buffers regardless of how far
	// along a previous ramp was.
	linearStep float64
}

// Bank holds the current/target/smoothing state for one module's
// parameter set, stepped once per buffer boundary. The index map is
// built once at construction and never mutated afterward,
// so Set/Value never allocate.
type Bank struct {
	bufferLen int
	params    []paramState
	index     map[string]int
}

// NewBank builds a Bank from a fixed parameter declaration list,
// initializing every parameter at its declared default (both current
// and target, so a fresh module starts settled rather than ramping).
// bufferLen is B, used to size linear ramps and the exponential
// smoothing coefficient.
func NewBank(specs []ParamSpec, bufferLen int) *Bank {
	b := &Bank{
		bufferLen: bufferLen,
		params:    make([]paramState, len(specs)),
		index:     make(map[string]int, len(specs)),
	}
	for i, s := range specs {
		b.params[i] = paramState{spec: s, cur: s.Default, tgt: s.Default}
		b.index[s.Name] = i
	}
	return b
}

// IndexOf resolves a parameter name to its slot, once, at module
// construction — modules cache the returned index and use Value(idx)
// inside ProcessBuffer instead of looking up by name on the hot path.
func (b *Bank) IndexOf(name string) (int, bool) {
	i, ok := b.index[name]
	return i, ok
}

// Set applies set_parameter(name, value, immediate). Unknown names are
// ignored (ok=false); out-of-range values are clamped.
func (b *Bank) Set(name string, value float64, immediate bool) (ok bool) {
	i, found := b.index[name]
	if !found {
		return false
	}
	b.setIndex(i, value, immediate)
	return true
}

// SetIndex is Set by cached index, for callers (e.g. Worker command
// application) that have already resolved the name once.
func (b *Bank) SetIndex(idx int, value float64, immediate bool) { b.setIndex(idx, value, immediate) }

func (b *Bank) setIndex(i int, value float64, immediate bool) {
	p := &b.params[i]
	v := p.spec.Clamp(value)
	p.tgt = v
	if immediate {
		p.cur = v
		p.linearStep = 0
		return
	}
	if p.spec.SmoothingMode == SmoothLinear && p.spec.SmoothingSamples > 0 {
		buffers := math.Ceil(p.spec.SmoothingSamples / float64(b.bufferLen))
		if buffers < 1 {
			buffers = 1
		}
		p.linearStep = math.Abs(p.tgt-p.cur) / buffers
	}
}

// Value returns the current (already-smoothed, boundary-applied) value
// at idx. Safe to call from inside the per-sample hot loop — it is a
// slice index, nothing more.
func (b *Bank) Value(idx int) float64 { return b.params[idx].cur }

// ValueByName is a convenience accessor for cold-path use (GetState,
// tests); modules should prefer Value(idx) with a cached index on any
// path that runs per buffer or per sample.
func (b *Bank) ValueByName(name string) (float64, bool) {
	i, ok := b.index[name]
	if !ok {
		return 0, false
	}
	return b.params[i].cur, true
}

// Step advances every parameter's current value one buffer-period
// toward its target. Updates take effect only at the start of the next
// buffer, and the ramp reaches target within its declared
// smoothing-sample count.
func (b *Bank) Step() {
	bufferLen := b.bufferLen
	for i := range b.params {
		p := &b.params[i]
		if p.cur == p.tgt {
			continue
		}
		switch p.spec.SmoothingMode {
		case SmoothNone:
			p.cur = p.tgt
		case SmoothExponential:
			alpha := 1.0
			if p.spec.SmoothingSamples > 0 {
				alpha = 1.0 / (1.0 + p.spec.SmoothingSamples/float64(bufferLen))
			}
			p.cur += alpha * (p.tgt - p.cur)
			if math.Abs(p.cur-p.tgt) < 1e-9 {
				p.cur = p.tgt
			}
		case SmoothLinear:
			if p.linearStep <= 0 {
				p.cur = p.tgt
				continue
			}
			p.cur = linearStep(p.cur, p.tgt, p.linearStep)
		case SmoothLog:
			// Smooth in log space so a frequency ramp sounds linear in pitch.
			lo := 1e-6
			cur := math.Max(p.cur, lo)
			tgt := math.Max(p.tgt, lo)
			alpha := 1.0
			if p.spec.SmoothingSamples > 0 {
				alpha = 1.0 / (1.0 + p.spec.SmoothingSamples/float64(bufferLen))
			}
			logCur := math.Log(cur) + alpha*(math.Log(tgt)-math.Log(cur))
			p.cur = math.Exp(logCur)
			if math.Abs(p.cur-p.tgt) < 1e-6 {
				p.cur = p.tgt
			}
		}
	}
}

func linearStep(cur, tgt, step float64) float64 {
	if cur < tgt {
		v := cur + step
		if v > tgt {
			return tgt
		}
		return v
	}
	v := cur - step
	if v < tgt {
		return tgt
	}
	return v
}
