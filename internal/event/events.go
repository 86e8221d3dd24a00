// Package event is the in-process lifecycle bus the UI layer listens on. The
// orchestrator publishes exactly one TravelStarted and one TravelFinished per
// accepted request; the UI disables its travel affordances on the former and
// re-enables them on the latter.
package event

import (
	"sync"
	"time"
)

type Event interface {
	Name() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	at time.Time
}

func Base() BaseEvent {
	return BaseEvent{at: time.Now()}
}

func (b BaseEvent) OccurredAt() time.Time {
	return b.at
}

type TravelStartedEvent struct {
	BaseEvent
	Destination string
	Cost        int
}

func (TravelStartedEvent) Name() string { return "travel_started" }

func TravelStarted(destination string, cost int) TravelStartedEvent {
	return TravelStartedEvent{BaseEvent: Base(), Destination: destination, Cost: cost}
}

type TravelFinishedEvent struct {
	BaseEvent
	Destination string
	Succeeded   bool
	Reason      string
	Message     string
}

func (TravelFinishedEvent) Name() string { return "travel_finished" }

func TravelFinished(destination string, succeeded bool, reason, message string) TravelFinishedEvent {
	return TravelFinishedEvent{
		BaseEvent:   Base(),
		Destination: destination,
		Succeeded:   succeeded,
		Reason:      reason,
		Message:     message,
	}
}

type Listener func(e Event)

// Bus delivers events synchronously to subscribed listeners. Delivery is
// guarded: a listener unsubscribed at teardown is never invoked again, and a
// nil listener is skipped, so a torn-down consumer degrades to a no-op.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func NewBus() *Bus {
	return &Bus{listeners: map[int]Listener{}}
}

// Subscribe registers a listener and returns its detach function.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Send delivers the event to every current listener. Safe on a nil bus.
func (b *Bus) Send(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	snapshot := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		if l != nil {
			snapshot = append(snapshot, l)
		}
	}
	b.mu.RUnlock()

	for _, l := range snapshot {
		l(e)
	}
}
