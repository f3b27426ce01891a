package transport

import (
	"context"
	"sync"
)

// Result is the pending outcome of a write. Callers may wait for it or
// drop it; the writer never blocks on it.
type Result struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewResult returns an unresolved Result.
func NewResult() *Result {
	return &Result{done: make(chan struct{})}
}

// Completed returns a Result already resolved with err.
func Completed(err error) *Result {
	r := NewResult()
	r.Resolve(err)
	return r
}

// Resolve settles the Result. Only the first call has an effect.
func (r *Result) Resolve(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed once the Result is resolved.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Err returns the write error. It is only meaningful after Done is closed.
func (r *Result) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the Result resolves or ctx is done.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
