package engine

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/profiler"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/Carmen-Shannon/oxyview/engine/window"
)

// defaultFrameRate paces the headless loop when no frame limit is set.
const defaultFrameRate = 60

// engine implements the Engine interface.
// Owns the main-thread queue, the frame callbacks and the window message loop.
type engine struct {
	mu     *sync.Mutex
	logger *slog.Logger

	window     window.Window
	background resource.Executor

	queue  []func()
	frames []*frameHandle

	profiler         *profiler.Profiler
	profilingEnabled bool

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastFrame        time.Time

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
}

// Engine is the host the viewer runs inside. The goroutine that calls Run or Step is the
// main thread: queued main-thread work and frame callbacks run only there.
type Engine interface {
	common.Host

	// Window returns the underlying window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// Profiling reports whether the profiler runs each frame.
	Profiling() bool

	// Stats returns the profiler's most recent report.
	Stats() profiler.Stats

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Step runs one iteration of the main loop: the main-thread jobs queued before the call,
	// then every active frame callback.
	//
	// Parameters:
	//   - dt: the frame delta passed to frame callbacks
	//
	// Returns:
	//   - int: the number of main-thread jobs run
	Step(dt time.Duration) int

	// Idle reports whether the main queue is empty and no frame callback is active.
	Idle() bool

	// Run starts the main loop and blocks until Quit is called or the window closes.
	Run()

	// Quit signals the main loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Done is closed once Quit has been called.
	Done() <-chan struct{}
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (window, profiling, executor, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:          &sync.Mutex{},
		logger:      slog.Default(),
		quitChannel: make(chan struct{}),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.background == nil {
		e.background = resource.DefaultExecutor()
	}
	e.profiler = profiler.NewProfiler(e.logger)

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) RunOnMain(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	if e.window != nil {
		e.window.Wake()
	}
}

func (e *engine) RunOnBackground(fn func()) {
	if fn == nil {
		return
	}
	e.background.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("background job panicked", "panic", r)
			}
		}()
		fn()
	})
}

func (e *engine) OnFrame(active bool, fn common.FrameFunc) common.FrameHandle {
	h := &frameHandle{engine: e, fn: fn, active: active}
	e.mu.Lock()
	e.frames = append(e.frames, h)
	e.mu.Unlock()

	if active && e.window != nil {
		e.window.Wake()
	}
	return h
}

func (e *engine) Step(dt time.Duration) int {
	e.mu.Lock()
	jobs := e.queue
	e.queue = nil
	frames := slices.Clone(e.frames)
	e.mu.Unlock()

	for _, job := range jobs {
		job()
	}

	for _, h := range frames {
		// re-read under lock: an earlier callback may have paused or removed this one
		if fn, ok := h.runnable(); ok {
			fn(dt)
		}
	}

	if e.profilingEnabled {
		e.profiler.Tick()
	}
	return len(jobs)
}

func (e *engine) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) > 0 {
		return false
	}
	for _, h := range e.frames {
		if h.active {
			return false
		}
	}
	return true
}

func (e *engine) Run() {
	e.lastFrame = time.Now()
	if e.window == nil {
		e.runHeadless()
		return
	}

	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			_ = e.window.Close()
			return
		default:
		}
		e.frame()
		e.window.SetIdle(e.Idle())
	})
	e.window.ProcessMessages()
	e.signalQuit()
}

// runHeadless paces Step with a ticker until Quit.
func (e *engine) runHeadless() {
	interval := e.renderFrameLimit
	if interval <= 0 {
		interval = time.Second / defaultFrameRate
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			e.frame()
		}
	}
}

// frame runs one Step with the measured delta and applies the frame limit.
func (e *engine) frame() {
	now := time.Now()
	dt := now.Sub(e.lastFrame)
	e.lastFrame = now

	e.Step(dt)

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// Quit signals the main loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil {
		e.window.Wake()
	}
}

func (e *engine) Done() <-chan struct{} {
	return e.quitChannel
}

// signalQuit closes the quit channel to signal the loop to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	if !e.profilingEnabled {
		e.profiler.Reset()
	}
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) Profiling() bool {
	return e.profilingEnabled
}

func (e *engine) Stats() profiler.Stats {
	return e.profiler.Last()
}

// SetRenderFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) removeFrame(h *frameHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = slices.DeleteFunc(e.frames, func(o *frameHandle) bool { return o == h })
}

// frameDuration converts a frame rate cap to the minimum frame time; 0 means uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// frameHandle is a registered frame callback.
type frameHandle struct {
	engine  *engine
	fn      common.FrameFunc
	active  bool
	removed bool
}

var _ common.FrameHandle = &frameHandle{}

func (h *frameHandle) SetActive(active bool) {
	h.engine.mu.Lock()
	changed := !h.removed && active && !h.active
	if !h.removed {
		h.active = active
	}
	h.engine.mu.Unlock()

	if changed && h.engine.window != nil {
		h.engine.window.Wake()
	}
}

func (h *frameHandle) Active() bool {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	return h.active && !h.removed
}

func (h *frameHandle) Remove() {
	h.engine.mu.Lock()
	if h.removed {
		h.engine.mu.Unlock()
		return
	}
	h.removed = true
	h.active = false
	h.engine.mu.Unlock()

	h.engine.removeFrame(h)
}

func (h *frameHandle) runnable() (common.FrameFunc, bool) {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	return h.fn, h.active && !h.removed && h.fn != nil
}
