package factory

import "context"

// Awaiter is a deferred template value. The resolver waits for it and assigns
// the settled value.
type Awaiter interface {
	Await(ctx context.Context) (any, error)
}

// Future is an Awaiter settled once by a background function.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Async runs fn in its own goroutine and returns a Future for its result.
func Async(ctx context.Context, fn func(context.Context) (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future already settled with value.
func Resolved(value any) *Future {
	f := &Future{done: make(chan struct{}), value: value}
	close(f.done)
	return f
}

// Rejected returns a Future already settled with err.
func Rejected(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
