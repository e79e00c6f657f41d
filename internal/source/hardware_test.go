package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/midi-monitor/backend/internal/bus"
	"github.com/midi-monitor/backend/internal/midi"
)

func TestHardwarePublishesDecodedFrames(t *testing.T) {
	b := bus.New(bus.DefaultCapacity)
	sub := b.Subscribe()
	defer sub.Close()

	var recv func(frame []byte)
	stopped := false
	hw := NewHardware(b, zap.NewNop(), WithOpener(func(cb func(frame []byte)) (string, func(), error) {
		recv = cb
		return "Test Keyboard 1", func() { stopped = true }, nil
	}))

	if err := hw.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if hw.Port() != "Test Keyboard 1" {
		t.Errorf("expected port name 'Test Keyboard 1', got %q", hw.Port())
	}

	recv([]byte{0x90, 60, 100})
	recv([]byte{0x90, 60}) // truncated, dropped
	recv(nil)              // empty, dropped
	recv([]byte{0x80, 60, 0})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := sub.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if ev != (midi.NoteOn{Note: 60, Velocity: 100}) {
		t.Errorf("expected NoteOn{60, 100}, got %#v", ev)
	}

	ev, err = sub.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if ev != (midi.NoteOff{Note: 60, Velocity: 0}) {
		t.Errorf("expected NoteOff{60, 0}, got %#v", ev)
	}

	// The dropped frames must not have produced anything.
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	if _, err := sub.Receive(shortCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected no further events, got %v", err)
	}

	hw.Close()
	if !stopped {
		t.Error("close did not stop the listener")
	}
}

func TestHardwareNoDevice(t *testing.T) {
	b := bus.New(4)
	hw := NewHardware(b, zap.NewNop(), WithOpener(func(func(frame []byte)) (string, func(), error) {
		return "", nil, ErrNoDevice
	}))

	if err := hw.Start(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}

	// Close after a failed start must be a no-op.
	hw.Close()
}

func TestHardwareDriverFailure(t *testing.T) {
	driverErr := errors.New("rtmidi: port unavailable")
	b := bus.New(4)
	hw := NewHardware(b, zap.NewNop(), WithOpener(func(func(frame []byte)) (string, func(), error) {
		return "", nil, fmt.Errorf("failed to open MIDI port: %w", driverErr)
	}))

	err := hw.Start()
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrNoDevice) {
		t.Error("a driver failure must not look like a missing device")
	}
	if !errors.Is(err, driverErr) {
		t.Errorf("expected the wrapped driver error, got %v", err)
	}
}
