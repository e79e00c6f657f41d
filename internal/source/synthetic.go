package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/midi-monitor/backend/internal/bus"
	"github.com/midi-monitor/backend/internal/midi"
)

// cMajorScale is the note loop played when no hardware is attached.
var cMajorScale = [...]uint8{60, 62, 64, 65, 67, 69, 71, 72}

const defaultNoteHold = 500 * time.Millisecond

// Synthetic publishes a repeating C-major scale so the stream stays live
// without any MIDI hardware.
type Synthetic struct {
	bus  *bus.Bus
	log  *zap.Logger
	hold time.Duration
}

// SyntheticOption configures a Synthetic source.
type SyntheticOption func(*Synthetic)

// WithNoteHold overrides how long each note sounds before its release.
// Tests shorten it to keep runs fast.
func WithNoteHold(d time.Duration) SyntheticOption {
	return func(s *Synthetic) {
		if d > 0 {
			s.hold = d
		}
	}
}

// NewSynthetic creates a synthetic source publishing to b.
func NewSynthetic(b *bus.Bus, log *zap.Logger, opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{
		bus:  b,
		log:  log,
		hold: defaultNoteHold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run plays the scale until ctx is cancelled and returns ctx.Err(). Each
// step sounds a note for the hold duration, releases it, and starts the
// next note with no pause in between.
func (s *Synthetic) Run(ctx context.Context) error {
	s.log.Info("synthetic source started", zap.Duration("note_hold", s.hold))

	timer := time.NewTimer(s.hold)
	defer timer.Stop()

	step := 0
	s.bus.Publish(midi.NoteOn{Note: cMajorScale[step], Velocity: 64})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		s.bus.Publish(midi.NoteOff{Note: cMajorScale[step], Velocity: 0})
		step = (step + 1) % len(cMajorScale)
		s.bus.Publish(midi.NoteOn{Note: cMajorScale[step], Velocity: 64})
		timer.Reset(s.hold)
	}
}
