package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/midi-monitor/backend/internal/midi"
)

func TestBusFanoutProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every subscriber receives every event in publish order", prop.ForAll(
		func(numSubs, numEvents int) bool {
			b := New(DefaultCapacity)
			subs := make([]*Subscription, numSubs)
			for i := range subs {
				subs[i] = b.Subscribe()
			}

			for i := 0; i < numEvents; i++ {
				b.Publish(midi.NoteOn{Note: uint8(i % 128), Velocity: 64})
			}

			ctx := context.Background()
			for _, sub := range subs {
				for i := 0; i < numEvents; i++ {
					ev, err := sub.Receive(ctx)
					if err != nil {
						return false
					}
					if ev != (midi.NoteOn{Note: uint8(i % 128), Velocity: 64}) {
						return false
					}
				}
				sub.Close()
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, DefaultCapacity),
	))

	properties.Property("lag reports exactly the overwritten events", prop.ForAll(
		func(capacity, extra int) bool {
			b := New(capacity)
			sub := b.Subscribe()
			defer sub.Close()

			total := capacity + extra
			for i := 0; i < total; i++ {
				b.Publish(midi.ControlChange{Control: 1, Value: uint8(i % 128)})
			}

			_, err := sub.Receive(context.Background())
			var lagged *LaggedError
			if !errors.As(err, &lagged) {
				return false
			}
			if lagged.Missed != uint64(extra) {
				return false
			}

			// Everything still retained arrives in order after the lag.
			for i := extra; i < total; i++ {
				ev, err := sub.Receive(context.Background())
				if err != nil {
					return false
				}
				if ev != (midi.ControlChange{Control: 1, Value: uint8(i % 128)}) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 50),
		gen.IntRange(1, 50),
	))

	properties.Property("publish never blocks on an idle subscriber", prop.ForAll(
		func(numEvents int) bool {
			b := New(4)
			sub := b.Subscribe()
			defer sub.Close()

			done := make(chan struct{})
			go func() {
				for i := 0; i < numEvents; i++ {
					b.Publish(midi.NoteOn{Note: 60, Velocity: 64})
				}
				close(done)
			}()

			select {
			case <-done:
				return true
			case <-time.After(time.Second):
				return false
			}
		},
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}
