package resource

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrActionPanicked wraps a panic recovered from a load action.
var ErrActionPanicked = errors.New("resource: load action panicked")

// Completion is handed to a load action. The first Resolve or Reject wins; later calls are ignored.
type Completion[V any] interface {
	// Resolve completes the load successfully.
	//
	// Parameters:
	//   - v: the loaded value (nil is treated as ErrNilResource)
	Resolve(v *V)

	// Reject completes the load with a failure. Nothing is retained for the key, so the next
	// request starts a fresh load.
	//
	// Parameters:
	//   - err: the failure
	Reject(err error)
}

// LoadAction produces the value for key on a background context and reports the outcome through done.
type LoadAction[K comparable, V any] func(key K, done Completion[V])

// AsyncLoader de-duplicates concurrent loads of the same key and fans the outcome out to every
// requester. Successful results are kept in a WeakCache: while anyone holds the value, further
// requests resolve immediately without reloading, and the slot is evicted once it is collected.
//
// Invariant: at most one action runs per key at any time.
type AsyncLoader[K comparable, V any] struct {
	*WeakCache[K, V]

	mu       *sync.Mutex
	pending  map[K]*promise[V]
	executor Executor
	logger   *slog.Logger
	name     string
}

// NewAsyncLoader creates an AsyncLoader.
//
// Parameters:
//   - options: functional options (WithExecutor, WithLoaderLogger, WithLoaderName)
//
// Returns:
//   - *AsyncLoader[K, V]: the new loader
func NewAsyncLoader[K comparable, V any](options ...AsyncLoaderOption) *AsyncLoader[K, V] {
	cfg := asyncLoaderConfig{name: "loader", logger: slog.Default()}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.executor == nil {
		cfg.executor = DefaultExecutor()
	}
	return &AsyncLoader[K, V]{
		WeakCache: NewWeakCache[K, V](WithCacheName(cfg.name), WithCacheLogger(cfg.logger)),
		mu:        &sync.Mutex{},
		pending:   make(map[K]*promise[V]),
		executor:  cfg.executor,
		logger:    cfg.logger,
		name:      cfg.name,
	}
}

// Request returns a Future for the value of key.
//
// If a live value exists from an earlier successful load, the returned Future is already resolved.
// If a load for key is in flight, the returned Future observes that load and action is not run.
// Otherwise action is submitted to the executor.
//
// Parameters:
//   - key: identifies the resource
//   - action: produces the value; it must eventually call Resolve or Reject
//
// Returns:
//   - *Future[V]: a distinct handle on the shared outcome
func (l *AsyncLoader[K, V]) Request(key K, action LoadAction[K, V]) *Future[V] {
	l.mu.Lock()
	if v, ok := l.WeakCache.Get(key); ok {
		l.mu.Unlock()
		return Resolved(v)
	}
	if p, ok := l.pending[key]; ok {
		l.mu.Unlock()
		return &Future[V]{p: p}
	}
	p := newPromise[V]()
	l.pending[key] = p
	l.mu.Unlock()

	l.logger.Debug("load started", "loader", l.name, "key", key)
	done := &completion[K, V]{loader: l, key: key, p: p}
	l.executor.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("load action panicked", "loader", l.name, "key", key, "panic", r)
				done.Reject(fmt.Errorf("%w: %v", ErrActionPanicked, r))
			}
		}()
		action(key, done)
	})

	return &Future[V]{p: p}
}

// InFlight reports how many loads are pending.
func (l *AsyncLoader[K, V]) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Forget drops the retained slot for key so the next request loads again. A pending load is
// not affected.
func (l *AsyncLoader[K, V]) Forget(key K) {
	l.WeakCache.Remove(key)
}

// finish removes the pending entry before notifying observers, so an observer that requests
// the same key again starts a fresh load instead of joining the finished one.
func (l *AsyncLoader[K, V]) finish(key K, p *promise[V], v *V, err error) {
	l.mu.Lock()
	if l.pending[key] == p {
		delete(l.pending, key)
	}
	if err == nil {
		v = l.WeakCache.store(key, v)
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Debug("load failed", "loader", l.name, "key", key, "error", err)
	} else {
		l.logger.Debug("load finished", "loader", l.name, "key", key)
	}
	p.complete(v, err)
}

type completion[K comparable, V any] struct {
	loader *AsyncLoader[K, V]
	key    K
	p      *promise[V]
	once   sync.Once
}

var _ Completion[int] = &completion[string, int]{}

func (c *completion[K, V]) Resolve(v *V) {
	if v == nil {
		c.Reject(ErrNilResource)
		return
	}
	c.once.Do(func() {
		c.loader.finish(c.key, c.p, v, nil)
	})
}

func (c *completion[K, V]) Reject(err error) {
	if err == nil {
		err = ErrNilResource
	}
	c.once.Do(func() {
		c.loader.finish(c.key, c.p, nil, err)
	})
}
