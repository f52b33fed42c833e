package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundworks/modsynth/internal/control"
	"github.com/soundworks/modsynth/internal/module"
)

const (
	sr = 44100
	bl = 64
)

func TestEmptyChainRendersSilence(t *testing.T) {
	h := NewHost(4, bl)
	out := h.ProcessChain(nil)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestEmptyChainPassesThroughExternalInput(t *testing.T) {
	h := NewHost(4, bl)
	in := make([]float32, bl)
	for i := range in {
		in[i] = 0.5
	}
	out := h.ProcessChain(in)
	assert.Equal(t, in, out)
}

func TestAddModuleRejectsPastCapacity(t *testing.T) {
	h := NewHost(1, bl)
	require.NoError(t, h.AddModule("osc1", module.NewOscillator(sr, bl)))
	err := h.AddModule("osc2", module.NewOscillator(sr, bl))
	assert.Error(t, err)
	assert.Equal(t, 1, h.Len())
}

func TestRemoveModulePreservesOrderOfRest(t *testing.T) {
	h := NewHost(4, bl)
	require.NoError(t, h.AddModule("a", module.NewOscillator(sr, bl)))
	require.NoError(t, h.AddModule("b", module.NewOscillator(sr, bl)))
	require.NoError(t, h.AddModule("c", module.NewOscillator(sr, bl)))
	h.RemoveModule("b")
	require.Equal(t, 2, h.Len())
	assert.Equal(t, "a", idString(h.chain[0].id))
	assert.Equal(t, "c", idString(h.chain[1].id))
}

func idString(id [16]byte) string {
	n := 0
	for n < len(id) && id[n] != 0 {
		n++
	}
	return string(id[:n])
}

func TestQueueCommandAppliesSetParameterAtBufferBoundary(t *testing.T) {
	h := NewHost(4, bl)
	require.NoError(t, h.AddModule("osc1", module.NewOscillator(sr, bl)))

	p := control.SetParameter("osc1", "freq", 880, true)
	raw := make([]byte, control.PacketSize)
	control.Encode(&p, raw)

	h.QueueCommand(raw)
	h.ProcessCommands()

	osc := h.chain[0].m.(*module.Oscillator)
	osc.Prepare()
	assert.InDelta(t, 880, osc.GetState()["freq"], 1e-6)
	assert.Equal(t, uint64(1), h.Stats().CommandsApplied)
}

func TestQueueCommandUnknownTargetSilentlyDropped(t *testing.T) {
	h := NewHost(4, bl)
	require.NoError(t, h.AddModule("osc1", module.NewOscillator(sr, bl)))

	p := control.SetParameter("nope", "freq", 880, true)
	raw := make([]byte, control.PacketSize)
	control.Encode(&p, raw)

	h.QueueCommand(raw)
	h.ProcessCommands()

	assert.Equal(t, uint64(0), h.Stats().CommandsApplied)
}

func TestQueueCommandDropsMalformedPacket(t *testing.T) {
	h := NewHost(4, bl)
	h.QueueCommand([]byte{1, 2, 3})
	assert.Equal(t, 0, h.pendingLen)
}

func TestQueueCommandDropsOldestWhenFull(t *testing.T) {
	h := NewHost(4, bl)
	require.NoError(t, h.AddModule("osc1", module.NewOscillator(sr, bl)))

	raw := make([]byte, control.PacketSize)
	for i := 0; i < maxPendingCommands+10; i++ {
		p := control.SetParameter("osc1", "freq", float64(200+i), true)
		control.Encode(&p, raw)
		h.QueueCommand(raw)
	}
	assert.Equal(t, maxPendingCommands, h.pendingLen)

	h.ProcessCommands()
	osc := h.chain[0].m.(*module.Oscillator)
	osc.Prepare()
	// The surviving entries are the most recently queued ones, so the
	// final applied value should be the very last one written.
	assert.InDelta(t, float64(200+maxPendingCommands+9), osc.GetState()["freq"], 1e-6)
}

func TestProcessChainRunsModulesInInsertionOrder(t *testing.T) {
	h := NewHost(4, bl)
	require.NoError(t, h.AddModule("osc1", module.NewOscillator(sr, bl)))
	require.NoError(t, h.AddModule("env1", module.NewEnvelope(sr, bl)))

	osc := h.chain[0].m.(*module.Oscillator)
	osc.SetParameter("freq", 440, true)
	osc.SetParameter("gain", 1.0, true)
	env := h.chain[1].m.(*module.Envelope)
	env.SetParameter("attack_ms", 0.01, true)
	env.SetParameter("sustain", 1.0, true)
	env.SetGate(true)

	var out []float32
	for i := 0; i < 5; i++ {
		out = h.ProcessChain(nil)
	}
	var rms float64
	for _, v := range out {
		rms += float64(v) * float64(v)
	}
	rms /= float64(len(out))
	assert.Greater(t, rms, 0.0)
}

func TestGateCommandRoutesThroughGaterInterface(t *testing.T) {
	h := NewHost(4, bl)
	require.NoError(t, h.AddModule("env1", module.NewEnvelope(sr, bl)))

	p := control.Gate("env1", true)
	raw := make([]byte, control.PacketSize)
	control.Encode(&p, raw)
	h.QueueCommand(raw)
	h.ProcessCommands()

	env := h.chain[0].m.(*module.Envelope)
	assert.NotEqual(t, float64(module.StageIdle), env.GetState()["stage"])
}
