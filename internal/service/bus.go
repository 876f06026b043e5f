package service

import (
	"sync"
	"sync/atomic"
)

// EventKind selects how an event is delivered to the browser.
type EventKind int

const (
	// EventSignals patches Datastar signals.
	EventSignals EventKind = iota
	// EventScript executes JavaScript in the page.
	EventScript
	// EventPatch patches HTML elements at a selector.
	EventPatch
	// EventRemove removes the element with the given ID.
	EventRemove
)

func (k EventKind) String() string {
	switch k {
	case EventSignals:
		return "signals"
	case EventScript:
		return "script"
	case EventPatch:
		return "patch"
	case EventRemove:
		return "remove"
	}
	return "unknown"
}

// PatchMode is how an EventPatch applies its HTML.
type PatchMode int

const (
	PatchAppend PatchMode = iota
	PatchOuter
)

// Event is one update pushed to a session's browser.
type Event struct {
	Kind     EventKind
	Signals  map[string]any
	Script   string
	HTML     string
	Selector string
	Mode     PatchMode
	ID       string
}

// EventBus is a simple fan-out pub/sub for one session's browser updates.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	buffer  int
	dropped atomic.Int64
	onDrop  func(Event)
}

// NewEventBus creates a new event bus whose subscribers buffer up to buffer
// events (64 when buffer <= 0).
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventBus{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop(e)
			}
		}
	}
}

// OnDrop sets fn to be called with every event skipped for a slow
// subscriber. fn must not publish. Set it before the first Subscribe.
func (b *EventBus) OnDrop(fn func(Event)) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close unsubscribes everyone.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
