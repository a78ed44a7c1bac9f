// Package ring implements the lock-free single-producer/single-consumer
// queue that carries market-data events from the exchange client's read
// goroutine to the event loop's strategy goroutine.
package ring

import "sync/atomic"

// cacheLinePad is sized so the field that follows it starts on its own
// 64-byte line, keeping producer and consumer counters from sharing a
// cache line.
type cacheLinePad [64 - 8]byte

// Ring is a bounded SPSC queue over a power-of-two backing array that
// holds one item fewer than the array's size (one slot is sacrificed to
// disambiguate full from empty); Capacity reports that usable count.
// Exactly one goroutine may call TryPush; exactly one (possibly
// different) goroutine may call TryPop.
type Ring[T any] struct {
	head atomic.Uint64
	_    cacheLinePad
	tail atomic.Uint64
	_    cacheLinePad

	mask   uint64
	buffer []T
}

// New constructs a Ring whose capacity is the next power of two at or
// above the requested size, matching the original's compile-time
// power-of-two requirement at runtime.
func New[T any](capacity int) *Ring[T] {
	if capacity < 2 {
		capacity = 2
	}
	c := nextPowerOfTwo(capacity)
	return &Ring[T]{
		mask:   uint64(c - 1),
		buffer: make([]T, c),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// TryPush attempts to enqueue item. It returns false if the ring is full.
// Producer-only.
func (r *Ring[T]) TryPush(item T) bool {
	currentHead := r.head.Load()
	nextHead := (currentHead + 1) & r.mask

	if nextHead == r.tail.Load() {
		return false // full
	}

	r.buffer[currentHead] = item
	r.head.Store(nextHead)
	return true
}

// TryPop attempts to dequeue the oldest item. It returns ok=false if the
// ring is empty. Consumer-only.
func (r *Ring[T]) TryPop() (item T, ok bool) {
	currentTail := r.tail.Load()

	if currentTail == r.head.Load() {
		return item, false // empty
	}

	item = r.buffer[currentTail]
	r.tail.Store((currentTail + 1) & r.mask)
	return item, true
}

// Empty reports whether the ring currently holds no items. Approximate
// under concurrent access from the other side.
func (r *Ring[T]) Empty() bool {
	return r.head.Load() == r.tail.Load()
}

// Full reports whether the ring currently has no room. Approximate under
// concurrent access from the other side.
func (r *Ring[T]) Full() bool {
	next := (r.head.Load() + 1) & r.mask
	return next == r.tail.Load()
}

// Size returns an approximate occupancy count, valid for diagnostics only.
func (r *Ring[T]) Size() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int((head - tail) & r.mask)
}

// Capacity returns the usable capacity (one less than the backing array,
// since one slot disambiguates full from empty).
func (r *Ring[T]) Capacity() int {
	return int(r.mask)
}
