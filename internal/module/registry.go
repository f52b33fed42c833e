package module

import "fmt"

// Factory builds a fresh Module instance for a given sample rate and
// buffer size. Registered once per type name via Register.
type Factory func(sampleRate, bufferSize int) Module

// Registry is the module type factory: config-declared chains name a
// module by a short type string instead of a Go literal. Unlike the
// live command path, an unknown type name here is a startup-time error
// — this runs before the real-time path exists, so there is nothing
// to silently drop.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with every built-in
// reference module.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("oscillator", func(sr, b int) Module { return NewOscillator(sr, b) })
	r.Register("envelope", func(sr, b int) Module { return NewEnvelope(sr, b) })
	r.Register("biquad", func(sr, b int) Module { return NewBiquad(sr, b) })
	r.Register("lfo", func(sr, b int) Module { return NewLFO(sr, b) })
	r.Register("distortion", func(sr, b int) Module { return NewDistortion(sr, b) })
	return r
}

// Register adds or replaces a factory under typeName.
func (r *Registry) Register(typeName string, f Factory) {
	r.factories[typeName] = f
}

// Create builds a new, Initialized Module of typeName.
func (r *Registry) Create(typeName string, sampleRate, bufferSize int) (Module, error) {
	f, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("module: unknown type %q", typeName)
	}
	m := f(sampleRate, bufferSize)
	m.Initialize(sampleRate, bufferSize)
	m.Prepare()
	return m, nil
}
