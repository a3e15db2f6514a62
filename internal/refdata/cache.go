// Package refdata implements the reference-data caching layer: a
// refreshable single-value cache, the pure code-map builders, and the
// background scheduler that keeps both key-spaces warm.
//
// The cache in this file is intentionally small and dependency-free,
// but engineered for the concurrency profile of a request-serving
// process:
//
//   - No logging in the library (callers decide how/what to log)
//   - One Value per key-space; key-spaces never share locks
//   - At most one factory execution in flight per key-space; readers
//     that observe an absent value block and share that build's result
//   - Values are installed wholesale (pointer swap), never mutated in
//     place, so readers can never observe a torn map
//   - A failed build installs nothing and returns the error to the
//     callers that waited on it; Refresh evicts before rebuilding, so
//     a failed rebuild leaves the key-space empty until the next read
//     repopulates it
package refdata

import (
	"context"
	"sync"
)

// Factory produces a complete replacement value for a key-space. It may
// perform I/O (e.g., a database snapshot read) and should honor the
// provided context for cancellation.
type Factory[T any] func(ctx context.Context) (T, error)

// build tracks one in-flight factory execution. Waiters block on done
// and then read val/err; both are written exactly once before done is
// closed.
type build[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Value is a refreshable cache around a single derived value, such as a
// lookup map rebuilt from persistent storage. The zero Value is not
// usable; construct with NewValue.
//
// Concurrency policy (the "share in-flight build" variant): concurrent
// Get calls that find no installed value join the single in-flight
// factory execution and all receive its result. Get calls that find an
// installed value return it immediately, even while a rebuild started
// by Refresh is still running.
type Value[T any] struct {
	name    string
	factory Factory[T]

	mu       sync.Mutex
	cur      *T        // installed value; nil when absent/evicted
	inflight *build[T] // non-nil while a factory execution is running
}

// NewValue constructs a Value for one named key-space with the factory
// used to (re)build it. The name is informational (scheduler logs and
// metrics); uniqueness is not enforced here.
func NewValue[T any](name string, factory Factory[T]) *Value[T] {
	return &Value[T]{name: name, factory: factory}
}

// Name returns the key-space name this Value was created with.
func (v *Value[T]) Name() string { return v.name }

// Get returns the current value, building it via the factory if absent
// or evicted. If a build is already in flight, Get blocks until it
// completes and shares its result. ctx cancellation releases the caller
// without affecting the build, which other waiters may still be relying
// on.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	if v.cur != nil {
		t := *v.cur
		v.mu.Unlock()
		return t, nil
	}
	b := v.startLocked()
	v.mu.Unlock()
	return v.wait(ctx, b)
}

// Peek returns the installed value without triggering a build. The
// second return is false when the key-space is empty or evicted.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cur == nil {
		var zero T
		return zero, false
	}
	return *v.cur, true
}

// Evict clears the installed value immediately. An in-flight build is
// not cancelled; when it completes its result is installed as usual.
func (v *Value[T]) Evict() {
	v.mu.Lock()
	v.cur = nil
	v.mu.Unlock()
}

// Refresh evicts the installed value and eagerly rebuilds, blocking
// until the build completes so that the first subsequent Get is a hit.
// If a build was already in flight when Refresh was called, its result
// is shared instead of starting another; the staleness this admits is
// bounded by one build duration and tolerated by this system.
func (v *Value[T]) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.cur = nil
	b := v.startLocked()
	v.mu.Unlock()
	_, err := v.wait(ctx, b)
	return err
}

// startLocked returns the in-flight build, launching one when none is
// running. Callers must hold v.mu.
func (v *Value[T]) startLocked() *build[T] {
	if v.inflight != nil {
		return v.inflight
	}
	b := &build[T]{done: make(chan struct{})}
	v.inflight = b
	go v.run(b)
	return b
}

// run executes the factory for one build and publishes the outcome. The
// build is deliberately detached from any single caller's context: its
// result is shared by every waiter, so one caller giving up must not
// abort it for the rest.
func (v *Value[T]) run(b *build[T]) {
	b.val, b.err = v.factory(context.Background())

	v.mu.Lock()
	if b.err == nil {
		val := b.val
		v.cur = &val
	}
	v.inflight = nil
	v.mu.Unlock()

	close(b.done)
}

// wait blocks until the build completes or ctx is done, whichever comes
// first.
func (v *Value[T]) wait(ctx context.Context, b *build[T]) (T, error) {
	select {
	case <-b.done:
		return b.val, b.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
