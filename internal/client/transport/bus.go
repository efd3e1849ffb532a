package transport

import (
	"context"
	"sync"

	"github.com/Aphrodine-wq/clipsync/internal/logging"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/Aphrodine-wq/clipsync/internal/protocol"
)

// EventKind identifies what a bus event carries.
type EventKind int

const (
	// KindStatus fires on every connection state change.
	KindStatus EventKind = iota
	// KindClipCreated / Updated / Deleted mirror the personal fan-out.
	KindClipCreated
	KindClipUpdated
	KindClipDeleted
	// KindTeamClipCreated / Updated / Deleted mirror the team room fan-out.
	KindTeamClipCreated
	KindTeamClipUpdated
	KindTeamClipDeleted
	// KindTyping is the presence signal.
	KindTyping
	// KindWriteAcked fires when the server acknowledges a queued write; the
	// Clip field holds the authoritative persisted clip.
	KindWriteAcked
	// KindSynced fires after a reconnect drain completes, signalling that a
	// REST catch-up fetch is in order.
	KindSynced
	// KindOutboxFailed fires when an entry exhausts its retry budget. Entry
	// holds the failed write and Err matches common.ErrOutboxExhausted.
	KindOutboxFailed
)

// Event is the union payload delivered to listeners. Only the fields
// relevant to the Kind are set.
type Event struct {
	Kind   EventKind
	State  State
	Clip   *model.Clip
	ClipID string
	TeamID string
	Typing *protocol.TypingEvent
	Entry  *model.OutboxEntry
	Err    error
}

// Subscription is the unsubscribe handle returned by Subscribe.
type Subscription struct {
	cancel func()
}

// Cancel removes the listener. Safe to call more than once.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Bus is a typed publish/subscribe fan-out for transport events. Listeners
// are isolated: a panic in one listener is logged and does not prevent
// delivery to the others or crash the transport loop.
type Bus struct {
	logger logging.Logger

	mu     sync.Mutex
	nextID int
	subs   map[EventKind]map[int]func(Event)
}

// NewBus builds an empty bus. logger may be nil.
func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Bus{logger: logger, subs: make(map[EventKind]map[int]func(Event))}
}

// Subscribe registers fn for events of the given kind and returns its
// unsubscribe handle.
func (b *Bus) Subscribe(kind EventKind, fn func(Event)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]func(Event))
	}
	b.subs[kind][id] = fn

	return Subscription{cancel: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[kind], id)
	}}
}

// Publish delivers e to every listener of e.Kind, at least once each.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	listeners := make([]func(Event), 0, len(b.subs[e.Kind]))
	for _, fn := range b.subs[e.Kind] {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		b.deliver(fn, e)
	}
}

func (b *Bus) deliver(fn func(Event), e Event) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error(context.Background(), "event listener panicked", "panic", p)
		}
	}()
	fn(e)
}
