// Package source provides the producers that feed the event bus: a
// hardware MIDI listener and a synthetic fallback for machines without a
// device.
package source

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/midi-monitor/backend/internal/bus"
	"github.com/midi-monitor/backend/internal/midi"
)

// ErrNoDevice indicates that no MIDI input port is connected. It is a
// normal condition, answered by falling back to the synthetic source.
var ErrNoDevice = errors.New("no MIDI input device available")

// openFunc connects to the first available input port and installs recv as
// the raw frame callback. It returns the port name and a stop function, or
// ErrNoDevice when nothing is connected.
type openFunc func(recv func(frame []byte)) (port string, stop func(), err error)

// Hardware publishes decoded events from the first connected MIDI input
// port.
type Hardware struct {
	bus  *bus.Bus
	log  *zap.Logger
	open openFunc

	mu   sync.Mutex
	stop func()
	port string
}

// HardwareOption configures a Hardware source.
type HardwareOption func(*Hardware)

// WithOpener replaces the driver-backed port opener. Tests use this to
// simulate devices without touching the sound system.
func WithOpener(open func(recv func(frame []byte)) (string, func(), error)) HardwareOption {
	return func(h *Hardware) {
		h.open = openFunc(open)
	}
}

// NewHardware creates a hardware source publishing to b.
func NewHardware(b *bus.Bus, log *zap.Logger, opts ...HardwareOption) *Hardware {
	h := &Hardware{
		bus:  b,
		log:  log,
		open: openFirstInPort,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start connects to the first input port and begins publishing. It returns
// ErrNoDevice when no port is present and wraps any driver failure; in both
// cases nothing was started and the caller should fall back.
func (h *Hardware) Start() error {
	port, stop, err := h.open(h.receive)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.port = port
	h.stop = stop
	h.mu.Unlock()

	h.log.Info("listening to MIDI input", zap.String("port", port))
	return nil
}

// receive runs on the driver's callback thread, so it must never block or
// panic. Frames that do not decode are dropped without a word.
func (h *Hardware) receive(frame []byte) {
	ev, ok := midi.Decode(frame)
	if !ok {
		return
	}
	h.bus.Publish(ev)
}

// Port returns the name of the connected input port.
func (h *Hardware) Port() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.port
}

// Close stops the listener and releases the port. It is safe to call when
// Start failed.
func (h *Hardware) Close() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// openFirstInPort connects to the first port reported by the rtmidi driver.
func openFirstInPort(recv func(frame []byte)) (string, func(), error) {
	ins := gomidi.GetInPorts()
	if len(ins) == 0 {
		return "", nil, ErrNoDevice
	}

	in := ins[0]
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		recv(msg)
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to open MIDI port %q: %w", in.String(), err)
	}
	return in.String(), stop, nil
}

// ListPorts returns the names of the currently connected MIDI input ports.
func ListPorts() []string {
	ins := gomidi.GetInPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}
