package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during step N are
// delivered at the end of step N; events emitted from inside a handler land
// in the back buffer and are delivered one step later. The observe phase
// calls SwapBuffers followed by DispatchAll.
//
// Delivery order is deterministic: event types dispatch in first-emission
// order, events of one type in FIFO order.
type Bus struct {
	mu        sync.Mutex // only protects handler registration
	front     map[reflect.Type][]any
	back      map[reflect.Type][]any
	frontKeys []reflect.Type
	backKeys  []reflect.Type
	handlers  map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if len(b.back[t]) == 0 {
		b.backKeys = append(b.backKeys, t)
	}
	b.back[t] = append(b.back[t], event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	b.frontKeys, b.backKeys = b.backKeys, b.frontKeys
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
	b.backKeys = b.backKeys[:0]
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
func (b *Bus) DispatchAll() {
	for _, t := range b.frontKeys {
		handlers := b.handlers[t]
		for _, ev := range b.front[t] {
			for _, h := range handlers {
				// Safe: Subscribe and Emit key on the same type.
				callHandler(h, ev)
			}
		}
	}
}

func callHandler(handler any, event any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(event)})
}
