package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManualLoader() (*AsyncLoader[string, blob], *ManualExecutor) {
	exec := &ManualExecutor{}
	return NewAsyncLoader[string, blob](WithExecutor(exec), WithLoaderName("test")), exec
}

func TestAsyncLoaderDeduplicatesInFlightRequests(t *testing.T) {
	l, exec := newManualLoader()
	var runs atomic.Int32
	action := func(key string, done Completion[blob]) {
		runs.Add(1)
		done.Resolve(newBlob(key))
	}

	f1 := l.Request("duck.glb", action)
	f2 := l.Request("duck.glb", action)
	assert.NotSame(t, f1, f2)
	assert.True(t, f1.Shares(f2))
	assert.Equal(t, 1, l.InFlight())

	var got1, got2 *blob
	f1.Observe(func(v *blob, err error) { got1 = v })
	f2.Observe(func(v *blob, err error) { got2 = v })

	exec.Drain()

	assert.Equal(t, int32(1), runs.Load())
	require.NotNil(t, got1)
	assert.Same(t, got1, got2)
	assert.Equal(t, 0, l.InFlight())
}

func TestAsyncLoaderReturnsRetainedValueImmediately(t *testing.T) {
	l, exec := newManualLoader()
	runs := 0
	action := func(key string, done Completion[blob]) {
		runs++
		done.Resolve(newBlob(key))
	}

	first := l.Request("a", action)
	exec.Drain()
	held, err := first.Result()
	require.NoError(t, err)

	second := l.Request("a", action)
	assert.False(t, second.Pending())
	assert.Equal(t, 0, exec.Pending())
	v, err := second.Result()
	require.NoError(t, err)
	assert.Same(t, held, v)
	assert.Equal(t, 1, runs)
	runtime.KeepAlive(held)
}

func TestAsyncLoaderReloadsAfterCollection(t *testing.T) {
	l, exec := newManualLoader()
	runs := 0
	action := func(key string, done Completion[blob]) {
		runs++
		done.Resolve(newBlob(key))
	}

	l.Request("a", action)
	exec.Drain()

	assert.Eventually(t, func() bool {
		runtime.GC()
		_, ok := l.Get("a")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	f := l.Request("a", action)
	assert.True(t, f.Pending())
	exec.Drain()
	assert.Equal(t, 2, runs)
}

func TestAsyncLoaderEvictsSlotsOfCollectedValues(t *testing.T) {
	l, exec := newManualLoader()
	action := func(key string, done Completion[blob]) {
		done.Resolve(newBlob(key))
	}

	const keys = 200
	for i := 0; i < keys; i++ {
		l.Request(fmt.Sprintf("model-%d.glb", i), action)
	}
	exec.Drain()
	require.Equal(t, 0, l.InFlight())

	assert.Eventually(t, func() bool {
		runtime.GC()
		return l.slotCount() == 0
	}, 5*time.Second, 10*time.Millisecond, "slots of never-requested-again keys are evicted")
}

func TestAsyncLoaderForget(t *testing.T) {
	l, exec := newManualLoader()
	runs := 0
	action := func(key string, done Completion[blob]) {
		runs++
		done.Resolve(newBlob(key))
	}

	first := l.Request("a", action)
	exec.Drain()
	held, err := first.Result()
	require.NoError(t, err)

	l.Forget("a")
	_, ok := l.Get("a")
	assert.False(t, ok)

	f := l.Request("a", action)
	assert.True(t, f.Pending())
	exec.Drain()
	assert.Equal(t, 2, runs)
	runtime.KeepAlive(held)
}

func TestAsyncLoaderFailureIsNotRetained(t *testing.T) {
	l, exec := newManualLoader()
	boom := errors.New("decode failed")
	runs := 0

	f := l.Request("bad", func(key string, done Completion[blob]) {
		runs++
		done.Reject(boom)
	})
	exec.Drain()
	_, err := f.Result()
	require.ErrorIs(t, err, boom)

	f = l.Request("bad", func(key string, done Completion[blob]) {
		runs++
		done.Resolve(newBlob(key))
	})
	assert.True(t, f.Pending())
	exec.Drain()
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, "bad", v.name)
	assert.Equal(t, 2, runs)
}

func TestAsyncLoaderCompletionIsSingleShot(t *testing.T) {
	l, exec := newManualLoader()
	f := l.Request("a", func(key string, done Completion[blob]) {
		done.Resolve(newBlob("first"))
		done.Resolve(newBlob("second"))
		done.Reject(errors.New("late"))
	})
	calls := 0
	f.Observe(func(*blob, error) { calls++ })
	exec.Drain()

	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, "first", v.name)
	assert.Equal(t, 1, calls)
}

func TestAsyncLoaderRecoversPanics(t *testing.T) {
	l, exec := newManualLoader()
	f := l.Request("a", func(string, Completion[blob]) {
		panic("corrupt header")
	})
	exec.Drain()

	_, err := f.Result()
	assert.ErrorIs(t, err, ErrActionPanicked)
	assert.Equal(t, 0, l.InFlight())
}

func TestAsyncLoaderPendingEntryRemovedBeforeObservers(t *testing.T) {
	l, exec := newManualLoader()
	var again *Future[blob]
	f := l.Request("a", func(key string, done Completion[blob]) {
		done.Reject(errors.New("fail"))
	})
	f.Observe(func(*blob, error) {
		again = l.Request("a", func(key string, done Completion[blob]) {
			done.Resolve(newBlob(key))
		})
	})
	exec.Drain()

	require.NotNil(t, again)
	assert.False(t, again.Shares(f))
	v, err := again.Result()
	require.NoError(t, err)
	assert.Equal(t, "a", v.name)
}

func TestFutureDetach(t *testing.T) {
	l, exec := newManualLoader()
	action := func(key string, done Completion[blob]) { done.Resolve(newBlob(key)) }
	f1 := l.Request("a", action)
	f2 := l.Request("a", action)

	var fired1, fired2 bool
	f1.Observe(func(*blob, error) { fired1 = true })
	f2.Observe(func(*blob, error) { fired2 = true })
	f1.Detach()
	exec.Drain()

	assert.False(t, fired1)
	assert.True(t, fired2)
}

func TestFutureWait(t *testing.T) {
	l := NewAsyncLoader[string, blob](WithExecutor(NewPoolExecutor(2)))
	release := make(chan struct{})
	f := l.Request("a", func(key string, done Completion[blob]) {
		<-release
		done.Resolve(newBlob(key))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", v.name)
}

func TestAsyncLoaderConcurrentRequestsRunOnce(t *testing.T) {
	l := NewAsyncLoader[string, blob](WithExecutor(GoExecutor))
	var runs atomic.Int32
	release := make(chan struct{})
	action := func(key string, done Completion[blob]) {
		runs.Add(1)
		<-release
		done.Resolve(newBlob(key))
	}

	var wg sync.WaitGroup
	futures := make([]*Future[blob], 16)
	for i := range futures {
		wg.Add(1)
		go func() {
			defer wg.Done()
			futures[i] = l.Request("shared", action)
		}()
	}
	wg.Wait()
	close(release)

	var first *blob
	for _, f := range futures {
		v, err := f.Wait(context.Background())
		require.NoError(t, err)
		if first == nil {
			first = v
		}
		assert.Same(t, first, v)
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestResolvedAndFailedFutures(t *testing.T) {
	v := newBlob("x")
	f := Resolved(v)
	got, err := f.Result()
	require.NoError(t, err)
	assert.Same(t, v, got)

	boom := errors.New("boom")
	_, err = Failed[blob](boom).Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}
