package events

import (
	"sync"

	"peerlend/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Typed is implemented by events that can render themselves into the
// canonical type/attribute form exposed over RPC.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC receipts).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events until the caller decides whether the surrounding
// transition committed. Drain hands the events over and resets the buffer;
// Reset drops them.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Reset discards buffered events.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Render converts events into their canonical form, skipping events that do
// not implement Typed.
func Render(evts []Event) []*types.Event {
	out := make([]*types.Event, 0, len(evts))
	for _, evt := range evts {
		typed, ok := evt.(Typed)
		if !ok {
			continue
		}
		if rendered := typed.Event(); rendered != nil {
			out = append(out, rendered)
		}
	}
	return out
}
