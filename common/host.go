package common

import "time"

// FrameFunc is a per-display-frame callback. dt is the time since the previous frame.
type FrameFunc func(dt time.Duration)

// FrameHandle controls a registered frame callback.
type FrameHandle interface {
	// SetActive pauses or resumes the callback. Paused callbacks are skipped without being removed.
	SetActive(active bool)

	// Active reports whether the callback runs on the next frame.
	Active() bool

	// Remove unregisters the callback. Further calls are no-ops.
	Remove()
}

// FrameScheduler registers per-frame callbacks. Callbacks run on the main thread.
type FrameScheduler interface {
	// OnFrame registers fn, initially running only when active is true.
	//
	// Parameters:
	//   - active: whether fn runs before the first SetActive call
	//   - fn: the callback
	//
	// Returns:
	//   - FrameHandle: the handle used to pause, resume or remove fn
	OnFrame(active bool, fn FrameFunc) FrameHandle
}

// Dispatcher moves work between the main thread and background workers.
type Dispatcher interface {
	// RunOnMain queues fn to run on the main thread. It never blocks and never runs fn inline.
	RunOnMain(fn func())

	// RunOnBackground runs fn on a background worker.
	RunOnBackground(fn func())
}

// Host is the surrounding application a viewer component runs inside.
type Host interface {
	Dispatcher
	FrameScheduler
}
