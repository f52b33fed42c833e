// Package audiodev implements the sound-device boundary: a pull-style
// callback invoked at SR/B Hz on the driver's own real-time thread.
// Two backends are provided: a gordonklaus/portaudio-backed device for
// real output, and a headless ticker-paced null device for tests and
// CI.
package audiodev

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/soundworks/modsynth/internal/synerr"
)

// Callback is invoked once per buffer period with a writable block of
// BufferLen samples to fill. It must never allocate, lock, or block —
// Supervisor.AudioCallback is the only implementation that matters in
// production, and it upholds that contract.
type Callback func(out []float32)

// Device is the sound-device boundary contract.
type Device interface {
	Start() error
	Stop() error
	Close() error
}

// PortAudio is a Device backed by gordonklaus/portaudio, isolating the
// library's cgo surface to this package.
type PortAudio struct {
	stream *portaudio.Stream
}

// OpenPortAudio opens the default output device at sampleRate with
// bufferLen frames per callback, single channel, driving cb on
// PortAudio's own realtime thread.
func OpenPortAudio(sampleRate, bufferLen int, cb Callback) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audiodev: %w: %w", synerr.ErrDeviceUnavailable, err)
	}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), bufferLen, func(out []float32) {
		cb(out)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audiodev: %w: %w", synerr.ErrDeviceUnavailable, err)
	}
	return &PortAudio{stream: stream}, nil
}

func (p *PortAudio) Start() error { return p.stream.Start() }
func (p *PortAudio) Stop() error  { return p.stream.Stop() }

func (p *PortAudio) Close() error {
	err := p.stream.Close()
	portaudio.Terminate()
	return err
}

// Null is a headless Device that paces cb with a time.Ticker instead of
// a real sound card — used in CI and by --device=null. It upholds the
// same "never block the production side" contract by running cb on its
// own goroutine.
type Null struct {
	bufferLen int
	period    time.Duration
	cb        Callback

	stop chan struct{}
	done chan struct{}
}

// NewNull constructs a ticker-paced null device.
func NewNull(sampleRate, bufferLen int, cb Callback) *Null {
	period := time.Duration(float64(bufferLen) / float64(sampleRate) * float64(time.Second))
	return &Null{bufferLen: bufferLen, period: period, cb: cb}
}

func (n *Null) Start() error {
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.run()
	return nil
}

func (n *Null) run() {
	defer close(n.done)
	ticker := time.NewTicker(n.period)
	defer ticker.Stop()
	out := make([]float32, n.bufferLen)
	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			n.cb(out)
		}
	}
}

func (n *Null) Stop() error {
	if n.stop == nil {
		return nil
	}
	close(n.stop)
	<-n.done
	return nil
}

func (n *Null) Close() error { return nil }
