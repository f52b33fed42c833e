package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddressSetParameter(t *testing.T) {
	p, ok := ParseAddress("/mod/oscillator1/freq", []float64{440})
	require.True(t, ok)
	assert.Equal(t, OpSetParameter, p.Op)
	assert.Equal(t, "oscillator1", p.TargetString())
	assert.Equal(t, "freq", p.ParamString())
}

func TestParseAddressGate(t *testing.T) {
	p, ok := ParseAddress("/gate/envelope1", []float64{1})
	require.True(t, ok)
	assert.Equal(t, OpGate, p.Op)
	assert.True(t, p.Bool())
}

func TestParseAddressUnknownFamily(t *testing.T) {
	_, ok := ParseAddress("/foo/bar", []float64{1})
	assert.False(t, ok)
}

func TestParseAddressMissingArgs(t *testing.T) {
	_, ok := ParseAddress("/mod/osc1/freq", nil)
	assert.False(t, ok)
}

func TestParseAddressBadCharset(t *testing.T) {
	_, ok := ParseAddress("/mod/Osc-1/freq", []float64{1})
	assert.False(t, ok)
}
