package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSetParameterRoundTrip(t *testing.T) {
	p := SetParameter("osc1", "freq", 440.0, false)
	buf := make([]byte, PacketSize)
	Encode(&p, buf)
	assert.Len(t, buf, PacketSize)

	var got Packet
	ok := Decode(buf, &got)
	require.True(t, ok)
	assert.Equal(t, OpSetParameter, got.Op)
	assert.Equal(t, TypeFloat, got.Type)
	assert.False(t, got.Immediate)
	assert.Equal(t, "osc1", got.TargetString())
	assert.Equal(t, "freq", got.ParamString())
	assert.InDelta(t, 440.0, got.Float(), 1e-9)
}

func TestGateRoundTrip(t *testing.T) {
	p := Gate("env1", true)
	buf := make([]byte, PacketSize)
	Encode(&p, buf)

	var got Packet
	require.True(t, Decode(buf, &got))
	assert.Equal(t, OpGate, got.Op)
	assert.True(t, got.Bool())
	assert.Equal(t, "env1", got.TargetString())
}

func TestDecodeRejectsUnknownOp(t *testing.T) {
	buf := make([]byte, PacketSize)
	buf[offOp] = 0xFF
	var got Packet
	assert.False(t, Decode(buf, &got))
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	var got Packet
	assert.False(t, Decode(make([]byte, 10), &got))
}

func TestEncodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.StringMatching(`[a-z0-9_]{1,16}`).Draw(t, "target")
		param := rapid.StringMatching(`[a-z0-9_]{1,16}`).Draw(t, "param")
		value := rapid.Float64Range(-1e6, 1e6).Draw(t, "value")
		immediate := rapid.Bool().Draw(t, "immediate")

		p := SetParameter(target, param, value, immediate)
		buf := make([]byte, PacketSize)
		Encode(&p, buf)
		require.Len(t, buf, PacketSize)

		var got Packet
		require.True(t, Decode(buf, &got))
		require.Equal(t, target, got.TargetString())
		require.Equal(t, param, got.ParamString())
		require.Equal(t, immediate, got.Immediate)
		require.InDelta(t, value, got.Float(), 1e-6)
	})
}
