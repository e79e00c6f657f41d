package ws

import (
	"fmt"

	"github.com/midi-monitor/backend/internal/midi"
)

// Message type names for the known events. Anything else renders as
// "Unknown(<code>)" with the status code in decimal.
const (
	TypeNoteOn        = "NoteOn"
	TypeNoteOff       = "NoteOff"
	TypeControlChange = "ControlChange"
)

// Message is the JSON shape of one decoded event on the wire. Fields that
// do not apply to the event type are encoded as explicit nulls, so every
// message carries the same keys.
type Message struct {
	MessageType string `json:"message_type"`
	Note        *uint8 `json:"note"`
	Velocity    *uint8 `json:"velocity"`
	Control     *uint8 `json:"control"`
	Value       *uint8 `json:"value"`
}

// NewMessage converts a decoded event into its wire form.
func NewMessage(ev midi.Event) Message {
	switch e := ev.(type) {
	case midi.NoteOn:
		return Message{MessageType: TypeNoteOn, Note: u8ptr(e.Note), Velocity: u8ptr(e.Velocity)}
	case midi.NoteOff:
		return Message{MessageType: TypeNoteOff, Note: u8ptr(e.Note), Velocity: u8ptr(e.Velocity)}
	case midi.ControlChange:
		return Message{MessageType: TypeControlChange, Control: u8ptr(e.Control), Value: u8ptr(e.Value)}
	case midi.Unknown:
		return Message{MessageType: fmt.Sprintf("Unknown(%d)", e.Code)}
	}
	return Message{}
}

// Event converts a wire message back into its decoded form. The second
// return value is false when the message is not one this service emits.
func (m Message) Event() (midi.Event, bool) {
	switch m.MessageType {
	case TypeNoteOn:
		if m.Note == nil || m.Velocity == nil {
			return nil, false
		}
		return midi.NoteOn{Note: *m.Note, Velocity: *m.Velocity}, true
	case TypeNoteOff:
		if m.Note == nil || m.Velocity == nil {
			return nil, false
		}
		return midi.NoteOff{Note: *m.Note, Velocity: *m.Velocity}, true
	case TypeControlChange:
		if m.Control == nil || m.Value == nil {
			return nil, false
		}
		return midi.ControlChange{Control: *m.Control, Value: *m.Value}, true
	}

	var code uint8
	if _, err := fmt.Sscanf(m.MessageType, "Unknown(%d)", &code); err != nil {
		return nil, false
	}
	return midi.Unknown{Code: code}, true
}

func u8ptr(v uint8) *uint8 {
	return &v
}
