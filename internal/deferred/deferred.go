// Package deferred is a single-assignment result filled by a goroutine:
// it either resolves with a value or rejects with an error, exactly once.
// A panic in the producing function rejects the result.
package deferred

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Deferred holds the eventual outcome of an asynchronous computation.
type Deferred[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on a new goroutine and returns its pending result.
// ctx is handed to fn; Go itself does not watch it.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		defer func() {
			if r := recover(); r != nil {
				d.err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		d.val, d.err = fn(ctx)
	}()
	return d
}

// Resolved returns a Deferred already holding v.
func Resolved[T any](v T) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{}), val: v}
	close(d.done)
	return d
}

// Rejected returns a Deferred already holding err.
func Rejected[T any](err error) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{}), err: err}
	close(d.done)
	return d
}

// Done is closed once the result is settled.
func (d *Deferred[T]) Done() <-chan struct{} { return d.done }

// Wait blocks until the result is settled or ctx ends.
func (d *Deferred[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains fn after d. A rejection of d skips fn and propagates.
func Then[T, U any](ctx context.Context, d *Deferred[T], fn func(T) (U, error)) *Deferred[U] {
	return Go(ctx, func(ctx context.Context) (U, error) {
		v, err := d.Wait(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}

// Apply lifts fn into a function that runs it asynchronously on one argument.
// Errors and panics from fn reject the returned Deferred.
func Apply[A, T any](fn func(A) (T, error)) func(context.Context, A) *Deferred[T] {
	return func(ctx context.Context, arg A) *Deferred[T] {
		return Go(ctx, func(context.Context) (T, error) { return fn(arg) })
	}
}

// PanicError carries a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("deferred: panic: %v", e.Value)
}

// Unwrap exposes a panicked error value to errors.Is and errors.As.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
