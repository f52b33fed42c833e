// Package gpioctl is a physical-hardware control-input source: each
// configured GPIO line is debounced and converted to a `/gate/<id>`
// Command Packet, converging on the same wire encoder the OSC-style
// listener uses.
package gpioctl

import (
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/soundworks/modsynth/internal/control"
)

// Sink receives an encoded 64-byte Command Packet; the caller wires
// this to Supervisor.SendCommand, which writes it into both slots'
// CmdRings.
type Sink func(packet []byte)

// Gate binds one GPIO line's active-low press/release to gate commands
// targeting moduleID.
type Gate struct {
	Line     int
	ModuleID string
}

// Listener owns one or more requested GPIO lines and emits debounced
// gate commands into Sink as lines transition.
type Listener struct {
	chip  string
	lines []*gpiocdev.Line
	sink  Sink
}

// Open requests every configured line on chip (e.g. "gpiochip0") with
// both-edge event detection and a debounce period, and starts routing
// transitions to sink.
func Open(chip string, gates []Gate, debounce time.Duration, sink Sink) (*Listener, error) {
	l := &Listener{chip: chip, sink: sink}
	for _, g := range gates {
		g := g
		line, err := gpiocdev.RequestLine(chip, g.Line,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				on := evt.Type == gpiocdev.LineEventFallingEdge // active-low switch to ground
				p := control.Gate(g.ModuleID, on)
				raw := make([]byte, control.PacketSize)
				control.Encode(&p, raw)
				sink(raw)
			}),
		)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.lines = append(l.lines, line)
	}
	return l, nil
}

// Close releases every requested line.
func (l *Listener) Close() error {
	var firstErr error
	for _, line := range l.lines {
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
