// Package lockable serializes whole operations on an object behind a single
// per-instance lock.
//
// The lock is reentrant through the context: Do hands its callback a context
// marking the lock as held, and any Do on the same Lockable made with that
// context (or one derived from it) runs immediately instead of blocking.
// Callers without such a context wait for the lock with no timeout.
//
// A held context is only meaningful on the goroutine that received it and
// only until the callback returns. Passing it to another goroutine lets that
// goroutine bypass the lock for the remainder of the call.
package lockable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrUnknownMethod is returned by Methods.Call for names not in the table.
var ErrUnknownMethod = errors.New("unknown method")

// Lockable owns one lock. The zero value is ready to use; a Lockable must
// not be copied after first use.
type Lockable struct {
	mu sync.Mutex
}

type holdKey struct{ l *Lockable }

type hold struct{ active atomic.Bool }

// Held reports whether ctx was issued inside a call currently holding l.
func (l *Lockable) Held(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	h, ok := ctx.Value(holdKey{l}).(*hold)
	return ok && h.active.Load()
}

// Do runs fn with the lock held. The lock is released when fn returns or
// panics; errors and panics from fn propagate unchanged.
func (l *Lockable) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.Held(ctx) {
		return fn(ctx)
	}

	l.mu.Lock()
	h := &hold{}
	h.active.Store(true)
	defer func() {
		h.active.Store(false)
		l.mu.Unlock()
	}()
	return fn(context.WithValue(ctx, holdKey{l}, h))
}

// DoValue is Do for callbacks that produce a value.
func DoValue[T any](ctx context.Context, l *Lockable, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Wrap returns fn guarded by l.
func (l *Lockable) Wrap(fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return l.Do(ctx, fn)
	}
}

// Wrap returns a one-argument operation guarded by l.
func Wrap[A, R any](l *Lockable, fn func(ctx context.Context, arg A) (R, error)) func(ctx context.Context, arg A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		return DoValue(ctx, l, func(ctx context.Context) (R, error) {
			return fn(ctx, arg)
		})
	}
}

// Method is an untyped operation that can be registered in a Methods table.
type Method func(ctx context.Context, args ...any) (any, error)

// Methods is a named set of operations on one object.
type Methods map[string]Method

// Synchronize returns a copy of ms in which the named methods run under l.
// With no names every method is wrapped. A name argument may hold several
// space-separated names.
func (l *Lockable) Synchronize(ms Methods, names ...string) Methods {
	selected := make(map[string]bool)
	for _, n := range names {
		for _, f := range strings.Fields(n) {
			selected[f] = true
		}
	}

	out := make(Methods, len(ms))
	for name, m := range ms {
		if m != nil && (len(selected) == 0 || selected[name]) {
			out[name] = l.wrapMethod(m)
		} else {
			out[name] = m
		}
	}
	return out
}

func (l *Lockable) wrapMethod(m Method) Method {
	return func(ctx context.Context, args ...any) (any, error) {
		return DoValue(ctx, l, func(ctx context.Context) (any, error) {
			return m(ctx, args...)
		})
	}
}

// Call invokes the named method.
func (ms Methods) Call(ctx context.Context, name string, args ...any) (any, error) {
	m, ok := ms[name]
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return m(ctx, args...)
}
