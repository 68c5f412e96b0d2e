package testutil

import (
	"sync"
	"testing"
	"time"
)

// Recorder is a thread-safe sink that satisfies any Publish(T) error
// interface.
type Recorder[T any] struct {
	mu    sync.Mutex
	items []T
	err   error
	ch    chan T
}

// NewRecorder creates an empty recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{ch: make(chan T, 64)}
}

// Publish records v unless a failure was set with Fail.
func (r *Recorder[T]) Publish(v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, v)
	select {
	case r.ch <- v:
	default:
	}
	return nil
}

// Fail makes every later Publish return err. Nil restores recording.
func (r *Recorder[T]) Fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// All returns a copy of everything recorded.
func (r *Recorder[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

// Len returns the number of recorded items.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// C delivers recorded items; items are dropped when nobody reads.
func (r *Recorder[T]) C() <-chan T {
	return r.ch
}

// Next waits for the next recorded item.
func (r *Recorder[T]) Next(t testing.TB, timeout time.Duration) T {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("nothing recorded within %s", timeout)
		var zero T
		return zero
	}
}
