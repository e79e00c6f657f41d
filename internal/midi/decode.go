package midi

// Decode turns one raw MIDI frame into an Event. The second return value is
// false when the frame carries no event: an empty frame, or a truncated
// note or control message.
//
// Only the high nibble of the status byte is inspected, so all sixteen
// channels of a message type decode the same way. A NoteOn with velocity
// zero is reported as a NoteOff, which is how many keyboards signal a
// release.
//
// Decode never blocks and never panics; it is safe to call from a driver
// callback thread.
func Decode(frame []byte) (Event, bool) {
	if len(frame) == 0 {
		return nil, false
	}

	status := frame[0] & 0xF0
	switch status {
	case StatusNoteOn:
		if len(frame) < 3 {
			return nil, false
		}
		if frame[2] == 0 {
			return NoteOff{Note: frame[1], Velocity: 0}, true
		}
		return NoteOn{Note: frame[1], Velocity: frame[2]}, true
	case StatusNoteOff:
		if len(frame) < 3 {
			return nil, false
		}
		return NoteOff{Note: frame[1], Velocity: frame[2]}, true
	case StatusControlChange:
		if len(frame) < 3 {
			return nil, false
		}
		return ControlChange{Control: frame[1], Value: frame[2]}, true
	default:
		return Unknown{Code: status}, true
	}
}
