// Package oscctl is the abstract control-input message source: a
// UDP listener that turns each datagram into a Command Packet via
// control.ParseAddress. The actual OSC binary framing is out of
// scope here — each datagram carries one whitespace-separated
// "/address arg..." line, which is enough to exercise the same two
// address families a real OSC client would send.
package oscctl

import (
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/soundworks/modsynth/internal/control"
)

// Sink receives an encoded 64-byte Command Packet; the caller wires
// this to Supervisor.SendCommand.
type Sink func(packet []byte)

// Listener owns one UDP socket and feeds decoded commands to Sink
// until Close is called.
type Listener struct {
	conn net.PacketConn
	log  *log.Logger
	done chan struct{}
}

// Listen opens a UDP socket at addr (e.g. ":5005") and starts routing
// parsed messages to sink on a background goroutine.
func Listen(addr string, sink Sink, logger *log.Logger) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	l := &Listener{conn: conn, log: logger.With("component", "oscctl"), done: make(chan struct{})}
	go l.run(sink)
	return l, nil
}

func (l *Listener) run(sink Sink) {
	defer close(l.done)
	buf := make([]byte, 1024)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		addr, args, ok := parseLine(string(buf[:n]))
		if !ok {
			l.log.Debug("dropped malformed control message", "raw", string(buf[:n]))
			continue
		}
		p, ok := control.ParseAddress(addr, args)
		if !ok {
			l.log.Debug("dropped unrecognized address", "addr", addr)
			continue
		}
		raw := make([]byte, control.PacketSize)
		control.Encode(&p, raw)
		sink(raw)
	}
}

// parseLine splits "/address arg0 arg1 ..." into its address and
// numeric arguments.
func parseLine(line string) (addr string, args []float64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, false
	}
	addr = fields[0]
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return "", nil, false
		}
		args = append(args, v)
	}
	return addr, args, true
}

// Close shuts down the socket and waits for the read loop to exit.
func (l *Listener) Close() error {
	err := l.conn.Close()
	<-l.done
	return err
}
