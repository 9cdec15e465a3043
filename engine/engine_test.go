package engine

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxyview/engine/profiler"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (Engine, *resource.ManualExecutor) {
	t.Helper()
	ex := &resource.ManualExecutor{}
	return NewEngine(WithBackgroundExecutor(ex)), ex
}

func TestRunOnMainQueuesUntilStep(t *testing.T) {
	e, _ := newTestEngine(t)

	var order []int
	e.RunOnMain(func() { order = append(order, 1) })
	e.RunOnMain(func() {
		order = append(order, 2)
		// queued during a step: runs on the next one
		e.RunOnMain(func() { order = append(order, 3) })
	})
	e.RunOnMain(nil)
	assert.Empty(t, order)
	assert.False(t, e.Idle())

	assert.Equal(t, 2, e.Step(0))
	assert.Equal(t, []int{1, 2}, order)

	assert.Equal(t, 1, e.Step(0))
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.True(t, e.Idle())
}

func TestRunOnBackgroundUsesExecutor(t *testing.T) {
	e, ex := newTestEngine(t)

	ran := false
	e.RunOnBackground(func() { ran = true })
	e.RunOnBackground(func() { panic("boom") })
	assert.False(t, ran)
	assert.Equal(t, 2, ex.Pending())

	assert.NotPanics(t, func() { ex.Drain() })
	assert.True(t, ran)
}

func TestOnFrameRespectsActiveFlag(t *testing.T) {
	e, _ := newTestEngine(t)

	var got []time.Duration
	h := e.OnFrame(false, func(dt time.Duration) { got = append(got, dt) })
	assert.False(t, h.Active())
	assert.True(t, e.Idle())

	e.Step(time.Millisecond)
	assert.Empty(t, got)

	h.SetActive(true)
	assert.True(t, h.Active())
	assert.False(t, e.Idle())
	e.Step(2 * time.Millisecond)
	e.Step(3 * time.Millisecond)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 3 * time.Millisecond}, got)

	h.Remove()
	h.Remove()
	h.SetActive(true)
	assert.False(t, h.Active())
	e.Step(4 * time.Millisecond)
	assert.Len(t, got, 2)
}

func TestFrameCallbackCanPauseAnother(t *testing.T) {
	e, _ := newTestEngine(t)

	calls := 0
	var second interface{ SetActive(bool) }
	e.OnFrame(true, func(time.Duration) { second.SetActive(false) })
	second = e.OnFrame(true, func(time.Duration) { calls++ })

	e.Step(0)
	assert.Zero(t, calls)
}

func TestMainJobsRunBeforeFrames(t *testing.T) {
	e, _ := newTestEngine(t)

	var order []string
	e.OnFrame(true, func(time.Duration) { order = append(order, "frame") })
	e.RunOnMain(func() { order = append(order, "job") })
	e.Step(0)
	assert.Equal(t, []string{"job", "frame"}, order)
}

func TestHeadlessRunStopsOnQuit(t *testing.T) {
	e := NewEngine(WithBackgroundExecutor(&resource.ManualExecutor{}), WithRenderFrameLimit(500))

	frames := make(chan struct{}, 1)
	e.OnFrame(true, func(time.Duration) {
		select {
		case frames <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-frames:
	case <-time.After(5 * time.Second):
		t.Fatal("no frame ran")
	}
	e.Quit()
	e.Quit()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	_, open := <-e.Done()
	assert.False(t, open)
}

func TestProfilerToggle(t *testing.T) {
	e := NewEngine(WithProfiling(true))
	require.True(t, e.Profiling())
	e.DisableProfiler()
	assert.False(t, e.Profiling())
	e.EnableProfiler()
	assert.True(t, e.Profiling())
	assert.Nil(t, e.Window())
	e.Step(0)
	assert.Equal(t, profiler.Stats{}, e.Stats(), "no report before the first interval")
}

func TestFrameDuration(t *testing.T) {
	assert.Zero(t, frameDuration(0))
	assert.Zero(t, frameDuration(-5))
	assert.Equal(t, 20*time.Millisecond, frameDuration(50))
}
