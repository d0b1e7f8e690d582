package observer

import (
	"context"
	"sync"
)

// Observer receives lifecycle events from the kernel. Emit may block; the
// kernel awaits it as a suspension point like any other I/O.
type Observer interface {
	Emit(ctx context.Context, event Event) error
}

// NullObserver swallows all events. It is the zero-configuration default.
type NullObserver struct{}

// Emit discards the event.
func (NullObserver) Emit(context.Context, Event) error { return nil }

// PanicRecovery is invoked by CompositeObserver when a subscriber panics,
// letting callers route the recovered value through their own logger
// (telemetry.Logger) instead of the observer package depending on it
// directly.
type PanicRecovery func(observerIndex int, recovered any)

// CompositeObserver fans an event out to an ordered list of observers.
// Unlike the teacher's fail-fast hooks.Bus, it isolates per-observer errors
// and panics: a failing subscriber never prevents the remaining ones from
// receiving the event (spec.md §4.5/§7).
type CompositeObserver struct {
	observers []Observer
	onPanic   PanicRecovery
	onError   func(observerIndex int, err error)
}

// NewCompositeObserver builds a CompositeObserver fanning out to observers in
// order. onError and onPanic may be nil, in which case failures are silently
// isolated (still never aborting delivery to siblings).
func NewCompositeObserver(observers []Observer, onError func(int, error), onPanic PanicRecovery) *CompositeObserver {
	cp := make([]Observer, len(observers))
	copy(cp, observers)
	return &CompositeObserver{observers: cp, onError: onError, onPanic: onPanic}
}

// Emit delivers the event to every subscriber, isolating panics and errors.
func (c *CompositeObserver) Emit(ctx context.Context, event Event) error {
	for i, o := range c.observers {
		c.emitOne(ctx, i, o, event)
	}
	return nil
}

func (c *CompositeObserver) emitOne(ctx context.Context, index int, o Observer, event Event) {
	defer func() {
		if r := recover(); r != nil && c.onPanic != nil {
			c.onPanic(index, r)
		}
	}()
	if err := o.Emit(ctx, event); err != nil && c.onError != nil {
		c.onError(index, err)
	}
}

// Subscription represents a single Register call; Unsubscribe removes the
// observer from future fan-out.
type Subscription interface {
	Unsubscribe()
}

// Bus is a mutable, runtime-extensible registry of observers. Unlike
// CompositeObserver (a fixed, construction-time list), Bus supports
// attach/detach at runtime, mirroring the teacher's hooks.Bus.
type Bus struct {
	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
	onError   func(observerIndex int, err error)
	onPanic   PanicRecovery
}

// NewBus constructs an empty Bus.
func NewBus(onError func(int, error), onPanic PanicRecovery) *Bus {
	return &Bus{
		observers: make(map[int]Observer),
		onError:   onError,
		onPanic:   onPanic,
	}
}

type busSubscription struct {
	bus *Bus
	id  int
}

func (s *busSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.observers, s.id)
}

// Register attaches an observer and returns a Subscription that can detach
// it later.
func (b *Bus) Register(o Observer) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.observers[id] = o
	return &busSubscription{bus: b, id: id}
}

// Emit delivers the event to every currently-registered observer, isolating
// per-observer panics and errors exactly like CompositeObserver.
func (b *Bus) Emit(ctx context.Context, event Event) error {
	b.mu.Lock()
	snapshot := make([]Observer, 0, len(b.observers))
	for _, o := range b.observers {
		snapshot = append(snapshot, o)
	}
	b.mu.Unlock()

	composite := NewCompositeObserver(snapshot, b.onError, b.onPanic)
	return composite.Emit(ctx, event)
}
