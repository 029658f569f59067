// Package bus is a small typed publish/subscribe hub. Components publish
// state changes on it without knowing who listens; the TUI and the shell
// subscribe to redraw.
//
// Publishing never blocks: every subscriber owns a buffered channel and a
// message that does not fit is dropped for that subscriber. Producers such as
// the scheduler loop must not stall behind a slow view.
package bus

import "sync"

// Bus fans out messages of type T to every current subscriber.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	nextID int
	closed bool
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber with the given channel capacity. The
// returned function unsubscribes and closes the channel; calling it more than
// once is fine.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers msg to every subscriber that has room for it and returns
// how many received it. Publishing on a nil or closed bus is a no-op.
func (b *Bus[T]) Publish(msg T) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, ch := range b.subs {
		if trySend(ch, msg) {
			n++
		}
	}
	return n
}

// Len returns the number of active subscribers.
func (b *Bus[T]) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone. Later subscriptions receive a closed channel.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func trySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
		return true
	default:
		return false
	}
}
