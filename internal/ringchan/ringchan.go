// Package ringchan provides a bounded channel with overwrite-oldest
// semantics, used wherever a slow consumer must never stall a producer
// (scan events, notification history).
package ringchan

// Ring wraps a buffered channel so that sends never block: when the buffer
// is full the oldest element is dropped to make room for the newest.
//
// Producers call Send; consumers range over C() like a plain channel.
type Ring[T any] struct {
	ch chan T
}

// New creates a Ring with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Consumers can range over it until Close.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Send inserts a value, dropping the oldest buffered element if the ring is
// full. It never blocks. If a concurrent receiver races the drop, Send still
// completes because a slot has been freed either way.
func (r *Ring[T]) Send(v T) {
	select {
	case r.ch <- v:
	default:
		select {
		case <-r.ch:
		default:
		}
		r.ch <- v
	}
}

// TrySend inserts a value only when room is available.
func (r *Ring[T]) TrySend(v T) bool {
	select {
	case r.ch <- v:
		return true
	default:
		return false
	}
}

// TryReceive performs a non-blocking receive. ok is false when the ring is
// empty.
func (r *Ring[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-r.ch:
		return
	default:
		return v, false
	}
}

// Len reports how many elements are buffered.
func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Cap reports the ring capacity.
func (r *Ring[T]) Cap() int {
	return cap(r.ch)
}

// Close closes the receive side. Sending after Close panics.
func (r *Ring[T]) Close() {
	close(r.ch)
}
