// Package eventbus implements the Event Bus (spec §4.8): in-order
// per-execution delivery to many subscribers, a bounded buffer per
// subscriber so a slow reader never stalls execution, and weak
// subscriber references so an abandoned subscriber is reclaimed by
// the garbage collector instead of leaking forever.
//
// Grounded on the teacher's Hub (internal/infrastructure/websocket/hub.go):
// the same register/broadcast-over-channels shape, generalized from
// websocket clients to arbitrary event subscribers and backed by
// weak.Pointer instead of a strong map entry, since the teacher never
// needed to outlive an unregistered client.
package eventbus

import (
	"sync"
	"weak"

	"github.com/google/uuid"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// DefaultBufferSize is the per-subscriber channel capacity used when a
// caller doesn't specify one.
const DefaultBufferSize = 64

// Subscriber is a handle returned by Subscribe. The caller must keep a
// strong reference to it for as long as it wants to keep receiving
// events; once it is no longer reachable, the Bus reclaims the slot on
// its own next publish (spec §3: "Event Bus holds weak subscriber
// references: unsubscribe is guaranteed even if an execution outlives
// its subscriber").
type Subscriber struct {
	id     string
	Events <-chan domain.Event
	ch     chan domain.Event
}

// ID identifies this subscriber for diagnostics (e.g. a
// subscriber-dropped event's SubscriberID).
func (s *Subscriber) ID() string { return s.id }

// Bus fans out events to subscribers of one execution.
type Bus struct {
	executionID string
	bufferSize  int

	mu   sync.Mutex
	subs map[string]weak.Pointer[Subscriber]
}

// New builds a Bus for one execution. bufferSize <= 0 uses
// DefaultBufferSize.
func New(executionID string, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		executionID: executionID,
		bufferSize:  bufferSize,
		subs:        make(map[string]weak.Pointer[Subscriber]),
	}
}

// Subscribe registers a new subscriber and returns it; the caller
// reads Subscriber.Events.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{id: uuid.NewString()}
	sub.ch = make(chan domain.Event, b.bufferSize)
	sub.Events = sub.ch

	b.mu.Lock()
	b.subs[sub.id] = weak.Make(sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe explicitly removes a subscriber and closes its channel.
// Calling it is optional — letting sub become unreachable has the
// same eventual effect — but it reclaims the slot immediately rather
// than waiting for the next publish plus a GC cycle.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	_, existed := b.subs[sub.id]
	delete(b.subs, sub.id)
	b.mu.Unlock()
	if existed {
		close(sub.ch)
	}
}

// Publish delivers e to every live subscriber, in the order Publish is
// called (spec §4.8: "in-order per execution"). A subscriber whose
// buffer is full is dropped with a terminal subscriber-dropped event
// instead of blocking the publisher.
func (b *Bus) Publish(e domain.Event) {
	e.ExecutionID = b.executionID

	b.mu.Lock()
	var dropped []*Subscriber
	for id, weakSub := range b.subs {
		sub := weakSub.Value()
		if sub == nil {
			delete(b.subs, id)
			continue
		}
		select {
		case sub.ch <- e:
		default:
			delete(b.subs, id)
			dropped = append(dropped, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range dropped {
		close(sub.ch)
	}
	for _, sub := range dropped {
		b.Publish(domain.Event{
			Kind:         domain.EventSubscriberDropped,
			ExecutionID:  b.executionID,
			SubscriberID: sub.id,
		})
	}
}

// Close unsubscribes and closes every live subscriber, used when the
// owning execution reaches a terminal state and is evicted.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]weak.Pointer[Subscriber])
	b.mu.Unlock()

	for _, weakSub := range subs {
		if sub := weakSub.Value(); sub != nil {
			close(sub.ch)
		}
	}
}
