package resource

import (
	"context"
	"sync"
)

// promise is the shared, single-shot state behind every Future handle of one load.
type promise[V any] struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	value     *V
	err       error
	observers []observer[V]
}

type observer[V any] struct {
	owner *Future[V]
	fn    func(*V, error)
}

func newPromise[V any]() *promise[V] {
	return &promise[V]{done: make(chan struct{})}
}

// complete resolves the promise once. Later calls are ignored and report false.
// Observers are notified on the calling goroutine, outside the lock.
func (p *promise[V]) complete(v *V, err error) bool {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return false
	}
	p.resolved = true
	p.value = v
	p.err = err
	obs := p.observers
	p.observers = nil
	close(p.done)
	p.mu.Unlock()

	for _, o := range obs {
		o.fn(v, err)
	}
	return true
}

// Future is one observer handle on a pending or finished load. Every Request returns a
// distinct handle; handles for the same in-flight load share a single outcome.
type Future[V any] struct {
	p *promise[V]
}

// Resolved returns a Future that has already succeeded with v.
func Resolved[V any](v *V) *Future[V] {
	p := newPromise[V]()
	p.complete(v, nil)
	return &Future[V]{p: p}
}

// Failed returns a Future that has already failed with err.
func Failed[V any](err error) *Future[V] {
	p := newPromise[V]()
	p.complete(nil, err)
	return &Future[V]{p: p}
}

// Observe registers fn to receive the outcome. If the future is already resolved fn runs
// immediately on the calling goroutine; otherwise it runs on the goroutine that completes the load.
//
// Parameters:
//   - fn: receives the value on success or the error on failure
func (f *Future[V]) Observe(fn func(v *V, err error)) {
	p := f.p
	p.mu.Lock()
	if !p.resolved {
		p.observers = append(p.observers, observer[V]{owner: f, fn: fn})
		p.mu.Unlock()
		return
	}
	v, err := p.value, p.err
	p.mu.Unlock()
	fn(v, err)
}

// Detach drops every observer registered through this handle. Other handles on the same
// load are unaffected, and the load itself keeps running.
func (f *Future[V]) Detach() {
	p := f.p
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.observers[:0]
	for _, o := range p.observers {
		if o.owner != f {
			kept = append(kept, o)
		}
	}
	clear(p.observers[len(kept):])
	p.observers = kept
}

// Done returns a channel that is closed once the outcome is known.
func (f *Future[V]) Done() <-chan struct{} {
	return f.p.done
}

// Pending reports whether the outcome is still unknown.
func (f *Future[V]) Pending() bool {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	return !f.p.resolved
}

// Result returns the outcome. While the load is pending both results are nil.
//
// Returns:
//   - *V: the value on success
//   - error: the failure
func (f *Future[V]) Result() (*V, error) {
	f.p.mu.Lock()
	defer f.p.mu.Unlock()
	return f.p.value, f.p.err
}

// Wait blocks until the future resolves or ctx is done.
//
// Parameters:
//   - ctx: bounds the wait
//
// Returns:
//   - *V: the value on success
//   - error: the load failure or ctx.Err()
func (f *Future[V]) Wait(ctx context.Context) (*V, error) {
	select {
	case <-f.p.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shares reports whether two handles observe the same load.
func (f *Future[V]) Shares(other *Future[V]) bool {
	return other != nil && f.p == other.p
}
