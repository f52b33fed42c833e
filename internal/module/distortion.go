package module

import "math"

// Distortion is a drive/waveshaper processor, rounding out the
// reference module set beyond the minimum oscillator/envelope/filter
// trio. It applies a tanh soft-clip scaled by drive, followed by a
// makeup-gain trim.
type Distortion struct {
	bank                     *Bank
	idxDrive, idxMix int
}

func NewDistortion(sampleRate, bufferSize int) *Distortion {
	specs := []ParamSpec{
		{Name: "drive", Default: 1, Min: 1, Max: 20, SmoothingMode: SmoothExponential, SmoothingSamples: 256},
		{Name: "mix", Default: 1, Min: 0, Max: 1, SmoothingMode: SmoothExponential, SmoothingSamples: 128},
	}
	d := &Distortion{bank: NewBank(specs, bufferSize)}
	d.idxDrive, _ = d.bank.IndexOf("drive")
	d.idxMix, _ = d.bank.IndexOf("mix")
	return d
}

func (d *Distortion) Initialize(sampleRate, bufferSize int) {}

func (d *Distortion) SetParameter(name string, value float64, immediate bool) bool {
	return d.bank.Set(name, value, immediate)
}

func (d *Distortion) Prepare() { d.bank.Step() }

func (d *Distortion) ProcessBuffer(in, out []float32) {
	drive := float32(d.bank.Value(d.idxDrive))
	mix := float32(d.bank.Value(d.idxMix))
	makeup := float32(1)
	if drive > 1 {
		makeup = 1 / float32(math.Tanh(float64(drive)))
	}
	for i, x := range in {
		wet := float32(math.Tanh(float64(x*drive))) * makeup
		out[i] = mix*wet + (1-mix)*x
	}
}

func (d *Distortion) GetState() map[string]float64 {
	drive, _ := d.bank.ValueByName("drive")
	mix, _ := d.bank.ValueByName("mix")
	return map[string]float64{"drive": drive, "mix": mix}
}
