package camera

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/chewxy/math32"
)

// OrbitState is the animation state of an OrbitControl.
type OrbitState int

const (
	// OrbitIdle means every velocity component is below epsilon and ticks do nothing.
	OrbitIdle OrbitState = iota
	// OrbitAnimating means the control is moving and wants a tick every frame.
	OrbitAnimating
)

func (s OrbitState) String() string {
	if s == OrbitAnimating {
		return "animating"
	}
	return "idle"
}

// maxPitch keeps the orbit strictly inside the poles, where look-at has no defined right vector.
const maxPitch = 89.9

// minFriction keeps every velocity decaying, so a released gesture always returns to idle.
const minFriction = 0.001

// orbitControlImpl is the implementation of the OrbitControl interface.
type orbitControlImpl struct {
	mu     *sync.Mutex
	logger *slog.Logger

	target   [3]float32
	position [3]float32
	lens     Lens

	// angles in degrees
	yaw      float32
	pitch    float32
	distance float32

	velocityPan  [2]float32
	velocityZoom float32
	state        OrbitState

	sensitivity     float32
	zoomSensitivity float32
	friction        float32
	epsilon         float32

	minYaw, maxYaw           float32
	minPitch, maxPitch       float32
	minDistance, maxDistance float32

	initialYaw, initialPitch, initialDistance float32
	initialTarget                             [3]float32

	frame common.FrameHandle
}

// OrbitControl is a camera that circles a target, driven by drag and pinch gestures with
// momentum. Angles are in degrees. The camera sits at
//
//	x = -distance·sin(yaw)·cos(pitch)
//	y = -distance·sin(pitch)
//	z = -distance·cos(yaw)·cos(pitch)
//
// relative to the target and looks at it with +Y up.
type OrbitControl interface {
	Camera

	// Drag adds a drag delta to the pan velocity. Deltas accumulate; they never replace the
	// current velocity.
	//
	// Parameters:
	//   - dx: horizontal delta in input-device units, added to yaw velocity
	//   - dy: vertical delta in input-device units, added to pitch velocity
	Drag(dx, dy float32)

	// Magnify adds a pinch or scroll delta to the zoom velocity. Positive deltas move the
	// camera toward the target.
	//
	// Parameters:
	//   - delta: the magnification delta
	Magnify(delta float32)

	// EndGesture marks the end of a gesture. Velocity is kept so the orbit coasts to a stop.
	EndGesture()

	// Tick advances the orbit by one frame: angles and distance move by the velocity and are
	// clamped to their bounds, then every velocity component decays by (1 - friction).
	//
	// Returns:
	//   - bool: true while the control is still animating
	Tick() bool

	// State returns the animation state.
	State() OrbitState

	// Yaw returns the horizontal orbit angle in degrees.
	Yaw() float32

	// Pitch returns the vertical orbit angle in degrees.
	Pitch() float32

	// Distance returns the distance from the target.
	Distance() float32

	// Velocity returns the current pan (yaw, pitch) and zoom velocities per tick.
	Velocity() (pan [2]float32, zoom float32)

	// SetTarget moves the point the camera orbits around.
	SetTarget(target [3]float32)

	// SetLens replaces the projection lens.
	SetLens(lens Lens)

	// Lens returns the projection lens.
	Lens() Lens

	// Reset restores the initial angles, distance and target and stops all motion.
	Reset()

	// Stop zeroes every velocity. The camera stays where it is.
	Stop()

	// Snapshot returns the current camera by value.
	Snapshot() Fixed

	// Attach registers a frame callback that ticks the control. The callback is active only
	// while the control is animating. Attaching again moves the callback to the new scheduler.
	//
	// Parameters:
	//   - frames: the scheduler to tick on
	Attach(frames common.FrameScheduler)

	// Detach removes the frame callback registered by Attach.
	Detach()
}

var _ OrbitControl = &orbitControlImpl{}

// NewOrbitControl creates a new orbit control with sensible defaults.
//
// Parameters:
//   - options: functional options to configure the control
//
// Returns:
//   - OrbitControl: the newly created control
func NewOrbitControl(options ...OrbitControlOption) OrbitControl {
	oc := &orbitControlImpl{
		mu:     &sync.Mutex{},
		logger: slog.Default(),
		lens:   DefaultLens(),

		distance: 4,

		sensitivity:     0.25,
		zoomSensitivity: 0.05,
		friction:        0.1,
		epsilon:         1e-4,

		minYaw:      -math32.MaxFloat32,
		maxYaw:      math32.MaxFloat32,
		minPitch:    -maxPitch,
		maxPitch:    maxPitch,
		minDistance: 0.1,
		maxDistance: 100,
	}

	for _, option := range options {
		option(oc)
	}

	oc.minPitch = max(oc.minPitch, -maxPitch)
	oc.maxPitch = min(oc.maxPitch, maxPitch)
	oc.friction = common.Clamp(oc.friction, minFriction, 1)
	oc.yaw = common.Clamp(oc.yaw, oc.minYaw, oc.maxYaw)
	oc.pitch = common.Clamp(oc.pitch, oc.minPitch, oc.maxPitch)
	oc.distance = common.Clamp(oc.distance, oc.minDistance, oc.maxDistance)

	oc.initialYaw, oc.initialPitch, oc.initialDistance = oc.yaw, oc.pitch, oc.distance
	oc.initialTarget = oc.target

	oc.updatePosition()
	return oc
}

// updatePosition recomputes the camera position from the orbit angles.
// Caller must hold the mutex.
func (oc *orbitControlImpl) updatePosition() {
	sinYaw, cosYaw := math32.Sincos(common.Radians(oc.yaw))
	sinPitch, cosPitch := math32.Sincos(common.Radians(oc.pitch))

	oc.position[0] = oc.target[0] - oc.distance*sinYaw*cosPitch
	oc.position[1] = oc.target[1] - oc.distance*sinPitch
	oc.position[2] = oc.target[2] - oc.distance*cosYaw*cosPitch
}

// moving reports whether any velocity component exceeds epsilon.
// Caller must hold the mutex.
func (oc *orbitControlImpl) moving() bool {
	return math32.Abs(oc.velocityPan[0]) > oc.epsilon ||
		math32.Abs(oc.velocityPan[1]) > oc.epsilon ||
		math32.Abs(oc.velocityZoom) > oc.epsilon
}

// setState switches the state and pauses or resumes the frame callback to match.
// Caller must hold the mutex.
func (oc *orbitControlImpl) setState(state OrbitState) {
	if oc.state == state {
		return
	}
	oc.state = state
	if oc.frame != nil {
		oc.frame.SetActive(state == OrbitAnimating)
	}
}

func (oc *orbitControlImpl) Drag(dx, dy float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.velocityPan[0] += dx * oc.sensitivity
	oc.velocityPan[1] += dy * oc.sensitivity
	if oc.moving() {
		oc.setState(OrbitAnimating)
	}
}

func (oc *orbitControlImpl) Magnify(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.velocityZoom -= delta * oc.zoomSensitivity
	if oc.moving() {
		oc.setState(OrbitAnimating)
	}
}

func (oc *orbitControlImpl) EndGesture() {}

func (oc *orbitControlImpl) Tick() bool {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.state == OrbitIdle {
		return false
	}

	oc.yaw = common.Clamp(oc.yaw+oc.velocityPan[0], oc.minYaw, oc.maxYaw)
	oc.pitch = common.Clamp(oc.pitch+oc.velocityPan[1], oc.minPitch, oc.maxPitch)
	oc.distance = common.Clamp(oc.distance+oc.velocityZoom, oc.minDistance, oc.maxDistance)

	decay := 1 - oc.friction
	oc.velocityPan[0] *= decay
	oc.velocityPan[1] *= decay
	oc.velocityZoom *= decay

	oc.updatePosition()

	if !oc.moving() {
		oc.velocityPan = [2]float32{}
		oc.velocityZoom = 0
		oc.setState(OrbitIdle)
		oc.logger.Debug("orbit settled", "yaw", oc.yaw, "pitch", oc.pitch, "distance", oc.distance)
		return false
	}
	return true
}

func (oc *orbitControlImpl) State() OrbitState {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.state
}

func (oc *orbitControlImpl) Yaw() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.yaw
}

func (oc *orbitControlImpl) Pitch() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.pitch
}

func (oc *orbitControlImpl) Distance() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.distance
}

func (oc *orbitControlImpl) Velocity() ([2]float32, float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.velocityPan, oc.velocityZoom
}

func (oc *orbitControlImpl) SetTarget(target [3]float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.target = target
	oc.updatePosition()
}

func (oc *orbitControlImpl) SetLens(lens Lens) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.lens = common.Coalesce(lens, DefaultLens())
}

func (oc *orbitControlImpl) Lens() Lens {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.lens
}

func (oc *orbitControlImpl) Reset() {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.yaw, oc.pitch, oc.distance = oc.initialYaw, oc.initialPitch, oc.initialDistance
	oc.target = oc.initialTarget
	oc.velocityPan = [2]float32{}
	oc.velocityZoom = 0
	oc.setState(OrbitIdle)
	oc.updatePosition()
}

func (oc *orbitControlImpl) Stop() {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.velocityPan = [2]float32{}
	oc.velocityZoom = 0
	oc.setState(OrbitIdle)
}

func (oc *orbitControlImpl) Snapshot() Fixed {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return Fixed{Eye: oc.position, Center: oc.target, UpVector: [3]float32{0, 1, 0}, Lens: oc.lens}
}

func (oc *orbitControlImpl) Attach(frames common.FrameScheduler) {
	oc.Detach()
	if frames == nil {
		return
	}
	oc.mu.Lock()
	active := oc.state == OrbitAnimating
	oc.mu.Unlock()

	handle := frames.OnFrame(active, func(time.Duration) { oc.Tick() })

	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.frame = handle
	handle.SetActive(oc.state == OrbitAnimating)
}

func (oc *orbitControlImpl) Detach() {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.frame != nil {
		oc.frame.Remove()
		oc.frame = nil
	}
}

// --- Camera ---

func (oc *orbitControlImpl) Position() [3]float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.position
}

func (oc *orbitControlImpl) Target() [3]float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target
}

func (oc *orbitControlImpl) Up() [3]float32 {
	return [3]float32{0, 1, 0}
}

func (oc *orbitControlImpl) ViewMatrix() [16]float32 {
	return oc.Snapshot().ViewMatrix()
}

func (oc *orbitControlImpl) ProjectionMatrix(aspect float32) [16]float32 {
	return oc.Lens().Projection(aspect)
}
