// Package midi defines the decoded event types and the raw frame decoder.
package midi

// Status byte high nibbles of the channel messages the decoder understands.
const (
	StatusNoteOn        = 0x90
	StatusNoteOff       = 0x80
	StatusControlChange = 0xB0
)

// Event is a marker interface for all decoded MIDI events. Every value is
// one of NoteOn, NoteOff, ControlChange or Unknown.
type Event interface {
	isEvent()
}

// Base implementation for all events
type baseEvent struct{}

func (baseEvent) isEvent() {}

// NoteOn is fired when a key is pressed.
type NoteOn struct {
	baseEvent
	Note     uint8
	Velocity uint8
}

// NoteOff is fired when a key is released.
type NoteOff struct {
	baseEvent
	Note     uint8
	Velocity uint8
}

// ControlChange is fired when a controller (knob, pedal, fader) moves.
type ControlChange struct {
	baseEvent
	Control uint8
	Value   uint8
}

// Unknown is fired for any status the decoder does not interpret. Code
// holds the high nibble of the status byte.
type Unknown struct {
	baseEvent
	Code uint8
}
