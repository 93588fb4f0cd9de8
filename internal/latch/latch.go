// Package latch provides a one-shot result holder for bridging asynchronous
// work to callers that need a blocking return.
package latch

import (
	"context"
	"sync"
)

// Latch resolves exactly once with a value or an error.
type Latch[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func New[T any]() *Latch[T] {
	return &Latch[T]{done: make(chan struct{})}
}

// Resolve stores the outcome. Only the first call has an effect; it reports
// whether this call was the one that resolved the latch.
func (l *Latch[T]) Resolve(v T, err error) bool {
	resolved := false
	l.once.Do(func() {
		l.value = v
		l.err = err
		resolved = true
		close(l.done)
	})
	return resolved
}

// Done is closed once the latch resolves.
func (l *Latch[T]) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the latch resolves or ctx ends. The stored error is
// returned as-is.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-l.done:
		return l.value, l.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Go runs fn in a new goroutine and resolves the returned latch with its result.
func Go[T any](fn func() (T, error)) *Latch[T] {
	l := New[T]()
	go func() {
		l.Resolve(fn())
	}()
	return l
}
