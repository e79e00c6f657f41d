package ws

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/midi-monitor/backend/internal/midi"
)

// roundTrip encodes an event to its wire form and parses it back.
func roundTrip(ev midi.Event) (midi.Event, bool) {
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return nil, false
	}
	var parsed Message
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false
	}
	return parsed.Event()
}

func TestMessageRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("note on survives the wire", prop.ForAll(
		func(note, velocity uint8) bool {
			got, ok := roundTrip(midi.NoteOn{Note: note, Velocity: velocity})
			return ok && got == (midi.NoteOn{Note: note, Velocity: velocity})
		},
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.Property("note off survives the wire", prop.ForAll(
		func(note, velocity uint8) bool {
			got, ok := roundTrip(midi.NoteOff{Note: note, Velocity: velocity})
			return ok && got == (midi.NoteOff{Note: note, Velocity: velocity})
		},
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.Property("control change survives the wire", prop.ForAll(
		func(control, value uint8) bool {
			got, ok := roundTrip(midi.ControlChange{Control: control, Value: value})
			return ok && got == (midi.ControlChange{Control: control, Value: value})
		},
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.Property("unknown status survives the wire", prop.ForAll(
		func(code uint8) bool {
			got, ok := roundTrip(midi.Unknown{Code: code})
			return ok && got == (midi.Unknown{Code: code})
		},
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func TestMessageSchemaProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Clients index into the full schema, so every key must be present
	// even when the event type does not carry the field.
	properties.Property("every message carries the full schema", prop.ForAll(
		func(kind int, a, b uint8) bool {
			var ev midi.Event
			switch kind {
			case 0:
				ev = midi.NoteOn{Note: a, Velocity: b}
			case 1:
				ev = midi.NoteOff{Note: a, Velocity: b}
			case 2:
				ev = midi.ControlChange{Control: a, Value: b}
			default:
				ev = midi.Unknown{Code: a}
			}

			data, err := json.Marshal(NewMessage(ev))
			if err != nil {
				return false
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				return false
			}
			if len(fields) != 5 {
				return false
			}
			for _, key := range []string{"message_type", "note", "velocity", "control", "value"} {
				if _, ok := fields[key]; !ok {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 3),
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
