// Package control defines the 64-byte Command Packet wire format shared
// by every control-plane writer (sequencer, OSC listener, GPIO listener)
// and consumed by the Worker's command-application step at a buffer
// boundary. The format never allocates on encode or decode.
package control

import (
	"encoding/binary"
	"math"
)

// PacketSize is the fixed Command Packet length in bytes.
const PacketSize = 64

// Op identifies what a Command Packet does.
type Op byte

const (
	OpNone Op = iota
	OpSetParameter
	OpGate
	OpPatch
)

// ValueType identifies how Value should be interpreted.
type ValueType byte

const (
	TypeNone ValueType = iota
	TypeFloat
	TypeInt
	TypeBool
)

const (
	idLen = 16 // target module identifier, charset [a-z0-9_]
	nmLen = 16 // parameter name, same charset

	offOp        = 0
	offType      = 1
	offImmediate = 2
	// offReserved0 = 3
	offTarget = 4
	offParam  = offTarget + idLen // 20
	offValue  = offParam + nmLen  // 36
	// remaining bytes to PacketSize are reserved, zeroed
)

// Packet is the decoded, allocation-free view of one 64-byte Command
// Packet. Target and Param are fixed-size byte arrays so comparisons on
// the hot path never touch the string-interning machinery.
type Packet struct {
	Op        Op
	Type      ValueType
	Immediate bool
	Target    [idLen]byte
	Param     [nmLen]byte
	Value     [8]byte
}

// TargetString trims trailing NULs for logging/lookup convenience. Not
// used on the hot decode path — ModuleHost compares the raw byte arrays.
func (p *Packet) TargetString() string { return trimNul(p.Target[:]) }

// ParamString trims trailing NULs for logging/lookup convenience.
func (p *Packet) ParamString() string { return trimNul(p.Param[:]) }

func trimNul(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

// Float reads Value as a float64 (TypeFloat).
func (p *Packet) Float() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(p.Value[:]))
}

// Int reads Value as an int64 (TypeInt).
func (p *Packet) Int() int64 {
	return int64(binary.LittleEndian.Uint64(p.Value[:]))
}

// Bool reads Value as a bool (TypeBool); only the first byte is used.
func (p *Packet) Bool() bool { return p.Value[0] != 0 }

// SetParameter builds a set-parameter Command Packet. target and param
// are truncated to their field width; callers are expected to pass
// charset-valid identifiers (validated at config/parse time, not here).
func SetParameter(target, param string, value float64, immediate bool) Packet {
	var p Packet
	p.Op = OpSetParameter
	p.Type = TypeFloat
	p.Immediate = immediate
	putID(p.Target[:], target)
	putID(p.Param[:], param)
	binary.LittleEndian.PutUint64(p.Value[:], math.Float64bits(value))
	return p
}

// Gate builds a gate Command Packet.
func Gate(target string, on bool) Packet {
	var p Packet
	p.Op = OpGate
	p.Type = TypeBool
	p.Immediate = true
	putID(p.Target[:], target)
	putID(p.Param[:], "gate")
	if on {
		p.Value[0] = 1
	}
	return p
}

func putID(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := len(s)
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst, s[:n])
}

// Encode writes p into a 64-byte buffer. dst must be at least
// PacketSize bytes; Encode never allocates.
func Encode(p *Packet, dst []byte) {
	_ = dst[PacketSize-1] // bounds check hint, mirrors teacher's style of explicit length assertions
	for i := range dst[:PacketSize] {
		dst[i] = 0
	}
	dst[offOp] = byte(p.Op)
	dst[offType] = byte(p.Type)
	if p.Immediate {
		dst[offImmediate] = 1
	}
	copy(dst[offTarget:offTarget+idLen], p.Target[:])
	copy(dst[offParam:offParam+nmLen], p.Param[:])
	copy(dst[offValue:offValue+8], p.Value[:])
}

// Decode parses a 64-byte buffer into p. ok is false for a malformed
// packet (unrecognized op or type tag); the caller must drop it and bump
// a counter, never propagate an error up the hot path.
func Decode(src []byte, p *Packet) (ok bool) {
	if len(src) < PacketSize {
		return false
	}
	op := Op(src[offOp])
	if op == OpNone || op > OpPatch {
		return false
	}
	typ := ValueType(src[offType])
	if typ > TypeBool {
		return false
	}
	p.Op = op
	p.Type = typ
	p.Immediate = src[offImmediate] != 0
	copy(p.Target[:], src[offTarget:offTarget+idLen])
	copy(p.Param[:], src[offParam:offParam+nmLen])
	copy(p.Value[:], src[offValue:offValue+8])
	return true
}
