package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for single-binary deployments and tests.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int]chan AuthEvent
	next int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[int]chan AuthEvent{}}
}

func (b *MemoryBus) Publish(ctx context.Context, event AuthEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Slow subscribers drop events rather than block publishers.
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan AuthEvent, func(), error) {
	ch := make(chan AuthEvent, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	stop := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, stop, nil
}
