package queue

// UnlimitedCapacity disables the capacity check on a ring.
const UnlimitedCapacity = -1

// MutateFunc is invoked after ring length or capacity changes.
type MutateFunc func(length int, capacity int)

// RingHooks defines callbacks for ring lifecycle events.
type RingHooks[T any] struct {
	OnPush func(item T, step uint64)
	OnPop  func(item T, step uint64)
}

// Ring is a bounded FIFO with show-ahead semantics: a consumer peeks the
// head without removing it and pops only once the item is fully handled, so
// a stalled consumer retries the same item next step.
type Ring[T any] struct {
	name     string
	capacity int
	items    []T
	hooks    RingHooks[T]
	mutate   MutateFunc
}

// NewRing constructs a ring with optional hooks and mutate callback.
// Use UnlimitedCapacity for no bound.
func NewRing[T any](name string, capacity int, mutate MutateFunc, hooks RingHooks[T]) *Ring[T] {
	r := &Ring[T]{
		name:     name,
		capacity: capacity,
		hooks:    hooks,
		mutate:   mutate,
	}
	r.notify()
	return r
}

// Name returns the ring name.
func (r *Ring[T]) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Capacity returns current capacity (-1 for unlimited).
func (r *Ring[T]) Capacity() int {
	if r == nil {
		return 0
	}
	return r.capacity
}

// SetCapacity updates the capacity and triggers the mutate callback.
func (r *Ring[T]) SetCapacity(capacity int) {
	if r == nil {
		return
	}
	r.capacity = capacity
	r.notify()
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.items)
}

// CanAccept checks whether count more items fit under the capacity.
func (r *Ring[T]) CanAccept(count int) bool {
	if r == nil {
		return false
	}
	if r.capacity < 0 {
		return true
	}
	return len(r.items)+count <= r.capacity
}

// Push appends an item. Returns false when the ring is full.
func (r *Ring[T]) Push(item T, step uint64) bool {
	if r == nil {
		return false
	}
	if r.capacity >= 0 && len(r.items) >= r.capacity {
		return false
	}
	r.items = append(r.items, item)
	if r.hooks.OnPush != nil {
		r.hooks.OnPush(item, step)
	}
	r.notify()
	return true
}

// Peek returns the head item without consuming it.
func (r *Ring[T]) Peek() (T, bool) {
	var zero T
	if r == nil || len(r.items) == 0 {
		return zero, false
	}
	return r.items[0], true
}

// PeekAt returns the item at queue position idx without consuming it.
func (r *Ring[T]) PeekAt(idx int) (T, bool) {
	var zero T
	if r == nil || idx < 0 || idx >= len(r.items) {
		return zero, false
	}
	return r.items[idx], true
}

// Pop removes and returns the head item.
func (r *Ring[T]) Pop(step uint64) (T, bool) {
	var zero T
	if r == nil || len(r.items) == 0 {
		return zero, false
	}
	item := r.items[0]
	r.items = r.items[1:]
	if r.hooks.OnPop != nil {
		r.hooks.OnPop(item, step)
	}
	r.notify()
	return item, true
}

// Clear removes every queued item and reports how many were discarded.
// Pop hooks do not fire; the caller owns whatever bookkeeping the discard
// implies.
func (r *Ring[T]) Clear() int {
	if r == nil {
		return 0
	}
	n := len(r.items)
	r.items = r.items[:0]
	r.notify()
	return n
}

// Items exposes the underlying slice (read-only operations only).
func (r *Ring[T]) Items() []T {
	if r == nil {
		return nil
	}
	return r.items
}

func (r *Ring[T]) notify() {
	if r == nil || r.mutate == nil {
		return
	}
	r.mutate(len(r.items), r.capacity)
}
