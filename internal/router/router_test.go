package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundworks/modsynth/internal/module"
	"github.com/soundworks/modsynth/internal/synerr"
)

const (
	sr = 44100
	bl = 64
)

func TestConnectRejectsCycle(t *testing.T) {
	// A->B, B->C, then C->A must be rejected.
	r := New(8, bl)
	r.AddModule("a", module.NewOscillator(sr, bl))
	r.AddModule("b", module.NewOscillator(sr, bl))
	r.AddModule("c", module.NewOscillator(sr, bl))

	require.NoError(t, r.Connect("a", "b"))
	require.NoError(t, r.Connect("b", "c"))

	err := r.Connect("c", "a")
	assert.ErrorIs(t, err, synerr.ErrWouldCycle)
	assert.Equal(t, 2, r.EdgeCount())
}

func TestConnectRejectsSelfLoop(t *testing.T) {
	r := New(8, bl)
	r.AddModule("a", module.NewOscillator(sr, bl))
	err := r.Connect("a", "a")
	assert.ErrorIs(t, err, synerr.ErrWouldCycle)
}

func TestConnectRejectsUnknownModule(t *testing.T) {
	r := New(8, bl)
	r.AddModule("a", module.NewOscillator(sr, bl))
	err := r.Connect("a", "ghost")
	assert.ErrorIs(t, err, synerr.ErrUnknownModule)
}

func TestConnectEnforcesEdgeCapacity(t *testing.T) {
	r := New(1, bl)
	r.AddModule("a", module.NewOscillator(sr, bl))
	r.AddModule("b", module.NewOscillator(sr, bl))
	r.AddModule("c", module.NewOscillator(sr, bl))
	require.NoError(t, r.Connect("a", "b"))
	err := r.Connect("b", "c")
	assert.ErrorIs(t, err, synerr.ErrEdgeCapacity)
}

func TestDisconnectAllowsReconnectionAfterRemoval(t *testing.T) {
	r := New(4, bl)
	r.AddModule("a", module.NewOscillator(sr, bl))
	r.AddModule("b", module.NewOscillator(sr, bl))
	require.NoError(t, r.Connect("a", "b"))
	r.Disconnect("a", "b")
	assert.Equal(t, 0, r.EdgeCount())
	require.NoError(t, r.Connect("b", "a"))
}

func TestValidateGraphTrueForAcyclicGraph(t *testing.T) {
	r := New(4, bl)
	r.AddModule("a", module.NewOscillator(sr, bl))
	r.AddModule("b", module.NewOscillator(sr, bl))
	require.NoError(t, r.Connect("a", "b"))
	assert.True(t, r.ValidateGraph())
}

func TestProcessSumsIncomingEdgesIntoSink(t *testing.T) {
	r := New(4, bl)
	r.AddModule("osc1", module.NewOscillator(sr, bl))
	r.AddModule("osc2", module.NewOscillator(sr, bl))
	r.AddModule("mix", module.NewDistortion(sr, bl))
	r.SetSink("mix")

	osc1 := firstModule(r, "osc1").(*module.Oscillator)
	osc1.SetParameter("freq", 220, true)
	osc1.SetParameter("gain", 0.5, true)
	osc2 := firstModule(r, "osc2").(*module.Oscillator)
	osc2.SetParameter("freq", 440, true)
	osc2.SetParameter("gain", 0.5, true)
	mixMod := firstModule(r, "mix").(*module.Distortion)
	mixMod.SetParameter("drive", 1, true)
	mixMod.SetParameter("mix", 1, true)

	require.NoError(t, r.Connect("osc1", "mix"))
	require.NoError(t, r.Connect("osc2", "mix"))

	out := r.Process()
	require.Len(t, out, bl)

	var rms float64
	for _, v := range out {
		rms += float64(v) * float64(v)
	}
	rms /= float64(len(out))
	assert.Greater(t, rms, 0.0)
}

func TestProcessOrdersUpstreamBeforeDownstream(t *testing.T) {
	r := New(4, bl)
	var order []string
	r.AddModule("first", &recordingModule{name: "first", order: &order})
	r.AddModule("second", &recordingModule{name: "second", order: &order})
	require.NoError(t, r.Connect("first", "second"))
	r.SetSink("second")
	r.Process()
	require.Equal(t, []string{"first", "second"}, order)
}

func firstModule(r *Router, id string) module.Module {
	key := idOf(id)
	for i := range r.nodes {
		if r.nodes[i].id == key {
			return r.nodes[i].m
		}
	}
	return nil
}

type recordingModule struct {
	name  string
	order *[]string
}

func (m *recordingModule) Initialize(sampleRate, bufferSize int)               {}
func (m *recordingModule) SetParameter(name string, value float64, imm bool) bool { return false }
func (m *recordingModule) Prepare()                                            {}
func (m *recordingModule) ProcessBuffer(in, out []float32) {
	*m.order = append(*m.order, m.name)
	copy(out, in)
}
