// Package event delivers state snapshots to subscribers without a direct dependency on them.
package event

import (
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives a published value.
type Handler[T any] func(T)

// Bus fans a value out to every subscriber. Handlers run synchronously on the
// publishing goroutine, in subscription order. A panicking handler is logged and skipped.
type Bus[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler[T]
	order    []uint64
	log      zerolog.Logger
}

func NewBus[T any](log zerolog.Logger) *Bus[T] {
	return &Bus[T]{
		handlers: make(map[uint64]Handler[T]),
		log:      log,
	}
}

// Subscribe registers h and returns a function that removes it. The returned
// function is safe to call more than once.
func (b *Bus[T]) Subscribe(h Handler[T]) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = h
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish must not be called while holding a lock that a handler may take.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	hs := make([]Handler[T], 0, len(b.order))
	for _, id := range b.order {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		b.deliver(h, v)
	}
}

func (b *Bus[T]) deliver(h Handler[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("Panic in event handler")
		}
	}()
	h(v)
}
