// Package bus provides the bounded broadcast channel that connects the MIDI
// source to WebSocket sessions.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/midi-monitor/backend/internal/midi"
)

// DefaultCapacity is how many events the bus retains for slow subscribers.
const DefaultCapacity = 100

// ErrClosed is returned by Receive after the subscription has been closed.
var ErrClosed = errors.New("subscription closed")

// LaggedError reports that a subscription fell more than the bus capacity
// behind the publisher. Missed is the number of overwritten events. The
// subscription stays usable; its cursor resumes at the oldest retained
// event.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscription lagged, missed %d events", e.Missed)
}

// Bus fans events out to any number of subscriptions. It is a circular
// buffer with a monotonic head sequence; each subscription keeps its own
// cursor into the sequence. Publishing never blocks: when a subscription is
// more than the capacity behind, its oldest unread events are overwritten.
type Bus struct {
	mu     sync.Mutex
	ring   []midi.Event
	head   uint64 // sequence number of the next event to publish
	notify chan struct{}
	subs   int
}

// New creates a Bus retaining up to capacity events. A capacity below one
// falls back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bus{
		ring:   make([]midi.Event, capacity),
		notify: make(chan struct{}),
	}
}

// Publish appends an event and wakes every waiting subscription. It never
// blocks and never fails; with no subscribers the event is dropped.
func (b *Bus) Publish(ev midi.Event) {
	b.mu.Lock()
	b.ring[b.head%uint64(len(b.ring))] = ev
	b.head++
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()
}

// Subscribe registers a new subscription positioned at the current head.
// Events published before the call are not delivered.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs++
	return &Subscription{
		bus:  b,
		next: b.head,
		done: make(chan struct{}),
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Capacity returns how many events the bus retains.
func (b *Bus) Capacity() int {
	return len(b.ring)
}

// oldestLocked returns the sequence number of the oldest retained event.
func (b *Bus) oldestLocked() uint64 {
	if n := uint64(len(b.ring)); b.head > n {
		return b.head - n
	}
	return 0
}

// Subscription is one reader's cursor into the bus. A Subscription must not
// be shared between goroutines, but Close may be called from anywhere.
type Subscription struct {
	bus  *Bus
	next uint64

	done      chan struct{}
	closeOnce sync.Once
}

// Receive blocks until the next event is available and returns it. It
// returns ctx.Err() when ctx is done, ErrClosed after Close, and a
// *LaggedError when the publisher has overwritten unread events. After a
// lag the cursor has already been moved forward, so the caller may simply
// keep receiving.
func (s *Subscription) Receive(ctx context.Context) (midi.Event, error) {
	for {
		select {
		case <-s.done:
			return nil, ErrClosed
		default:
		}

		s.bus.mu.Lock()
		if s.next < s.bus.head {
			if oldest := s.bus.oldestLocked(); s.next < oldest {
				missed := oldest - s.next
				s.next = oldest
				s.bus.mu.Unlock()
				return nil, &LaggedError{Missed: missed}
			}
			ev := s.bus.ring[s.next%uint64(len(s.bus.ring))]
			s.next++
			s.bus.mu.Unlock()
			return ev, nil
		}
		wake := s.bus.notify
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, ErrClosed
		case <-wake:
		}
	}
}

// Close releases the subscription. It is idempotent and unblocks a pending
// Receive.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		s.bus.subs--
		s.bus.mu.Unlock()
		close(s.done)
	})
}
