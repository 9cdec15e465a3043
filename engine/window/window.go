package window

import (
	"fmt"
	"runtime"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
)

// MouseButton identifies a mouse button in gesture callbacks.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Window provides platform windowing and input event handling.
// Wraps platform-specific window implementations with a common interface.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the window is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the key code (see common key codes)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMouseMoveCallback sets the callback for mouse movement.
	//
	// Parameters:
	//   - callback: function receiving mouse x, y position
	SetMouseMoveCallback(callback func(x, y int32))

	// SetDragCallback sets the callback for pointer drags. It fires on every cursor move
	// while a button is held, with the movement since the previous event.
	//
	// Parameters:
	//   - callback: function receiving the held button and the cursor delta in pixels
	SetDragCallback(callback func(button MouseButton, dx, dy float32))

	// SetDragEndCallback sets the callback fired when the button that started a drag is released.
	//
	// Parameters:
	//   - callback: function receiving the released button
	SetDragEndCallback(callback func(button MouseButton))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// SetIdle switches the message loop between polling and waiting. An idle loop sleeps until
	// an input event, a Wake call or the idle timeout.
	//
	// Parameters:
	//   - idle: true to wait for events, false to poll
	SetIdle(idle bool)

	// Wake interrupts an idle wait. Safe to call from any goroutine.
	Wake()

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls OnUpdate callback each iteration.
	ProcessMessages()

	// Width returns the current window client area width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current window client area height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// maxWidth is the maximum allowed window width during resize.
	maxWidth int

	// maxHeight is the maximum allowed window height during resize.
	maxHeight int

	// minWidth is the minimum allowed window width during resize.
	minWidth int

	// minHeight is the minimum allowed window height during resize.
	minHeight int

	// width is the current window client area width in pixels.
	width int

	// height is the current window client area height in pixels.
	height int

	// idle selects waiting over polling in the message loop.
	idle bool

	// idleTimeout bounds a single idle wait.
	idleTimeout time.Duration

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	// gesture tracks the pointer between button press and release.
	gesture gestureTracker

	// onUpdate is called each iteration of the message loop (if set).
	onUpdate func()

	// onResize is called when the window is resized.
	onResize func(width, height int)

	// onScroll is called for mouse wheel events.
	// Positive delta = scroll up (zoom in), negative = scroll down (zoom out).
	onScroll func(delta float32)

	// onKeyDown is called when a key is pressed.
	onKeyDown func(keyCode uint32)

	// onKeyUp is called when a key is released.
	onKeyUp func(keyCode uint32)

	// onMouseMove is called when the mouse moves within the window.
	onMouseMove func(x, y int32)

	// onDrag is called for cursor movement while a button is held.
	onDrag func(button MouseButton, dx, dy float32)

	// onDragEnd is called when the dragging button is released.
	onDragEnd func(button MouseButton)
}

var _ Window = &engineWindow{}

// NewWindow creates a new Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the configured window
//   - error: error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

// newEngineWindow applies defaults and options without touching the platform layer.
func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:       "oxyview",
		maxWidth:    3840,
		maxHeight:   2160,
		minWidth:    320,
		minHeight:   240,
		width:       1280,
		height:      720,
		idleTimeout: 250 * time.Millisecond,
	}
	for _, opt := range options {
		opt(w)
	}
	w.width = min(max(w.width, w.minWidth), w.maxWidth)
	w.height = min(max(w.height, w.minHeight), w.maxHeight)
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) SetDragCallback(callback func(button MouseButton, dx, dy float32)) {
	w.onDrag = callback
}

func (w *engineWindow) SetDragEndCallback(callback func(button MouseButton)) {
	w.onDragEnd = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) SetIdle(idle bool) {
	w.idle = idle
}

func (w *engineWindow) Wake() {
	platformWake(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// handleButton feeds a button press or release into the gesture tracker.
func (w *engineWindow) handleButton(button MouseButton, pressed bool, x, y float64) {
	if pressed {
		w.gesture.press(button, x, y)
		return
	}
	if w.gesture.release(button) && w.onDragEnd != nil {
		w.onDragEnd(button)
	}
}

// handleCursor reports mouse movement and, during a drag, the delta since the last event.
func (w *engineWindow) handleCursor(x, y float64) {
	if w.onMouseMove != nil {
		w.onMouseMove(int32(x), int32(y))
	}
	button, dx, dy, ok := w.gesture.move(x, y)
	if ok && w.onDrag != nil && (dx != 0 || dy != 0) {
		w.onDrag(button, dx, dy)
	}
}

// gestureTracker follows a single held button. A second button pressed mid-drag is ignored
// until the first is released.
type gestureTracker struct {
	active bool
	button MouseButton
	lastX  float64
	lastY  float64
}

func (g *gestureTracker) press(button MouseButton, x, y float64) {
	if g.active {
		return
	}
	g.active = true
	g.button = button
	g.lastX, g.lastY = x, y
}

func (g *gestureTracker) release(button MouseButton) bool {
	if !g.active || g.button != button {
		return false
	}
	g.active = false
	return true
}

func (g *gestureTracker) move(x, y float64) (MouseButton, float32, float32, bool) {
	if !g.active {
		return 0, 0, 0, false
	}
	dx, dy := float32(x-g.lastX), float32(y-g.lastY)
	g.lastX, g.lastY = x, y
	return g.button, dx, dy, true
}
