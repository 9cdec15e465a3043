package camera

import "log/slog"

// OrbitControlOption is a functional option for configuring an OrbitControl.
type OrbitControlOption func(*orbitControlImpl)

// WithTarget sets the point the camera orbits around.
//
// Parameters:
//   - x, y, z: target position components
//
// Returns:
//   - OrbitControlOption: functional option to set the target position
func WithTarget(x, y, z float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.target = [3]float32{x, y, z}
	}
}

// WithYaw sets the initial yaw in degrees.
func WithYaw(yaw float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.yaw = yaw
	}
}

// WithPitch sets the initial pitch in degrees.
func WithPitch(pitch float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.pitch = pitch
	}
}

// WithDistance sets the initial distance from the target.
func WithDistance(distance float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.distance = distance
	}
}

// WithSensitivity sets how many degrees per tick one unit of drag adds to the pan velocity.
//
// Parameters:
//   - sensitivity: degrees per input unit
//
// Returns:
//   - OrbitControlOption: functional option to set drag sensitivity
func WithSensitivity(sensitivity float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.sensitivity = sensitivity
	}
}

// WithZoomSensitivity sets how many distance units per tick one unit of magnification adds
// to the zoom velocity.
func WithZoomSensitivity(sensitivity float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.zoomSensitivity = sensitivity
	}
}

// WithFriction sets the fraction of velocity lost every tick. Values are clamped to [0.001, 1].
//
// Parameters:
//   - friction: the per-tick decay fraction
//
// Returns:
//   - OrbitControlOption: functional option to set friction
func WithFriction(friction float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.friction = friction
	}
}

// WithEpsilon sets the velocity magnitude below which the control goes idle.
func WithEpsilon(epsilon float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.epsilon = epsilon
	}
}

// WithYawBounds limits yaw to [min, max] degrees. Yaw is unbounded by default.
func WithYawBounds(min, max float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.minYaw = min
		oc.maxYaw = max
	}
}

// WithPitchBounds limits pitch to [min, max] degrees. Bounds at or beyond ±90 are pulled in
// to ±89.9.
//
// Parameters:
//   - min: minimum pitch in degrees
//   - max: maximum pitch in degrees
//
// Returns:
//   - OrbitControlOption: functional option to set pitch bounds
func WithPitchBounds(min, max float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.minPitch = min
		oc.maxPitch = max
	}
}

// WithDistanceBounds limits the distance from the target to [min, max].
func WithDistanceBounds(min, max float32) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		oc.minDistance = min
		oc.maxDistance = max
	}
}

// WithLens sets the projection lens.
func WithLens(lens Lens) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		if lens != nil {
			oc.lens = lens
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *slog.Logger) OrbitControlOption {
	return func(oc *orbitControlImpl) {
		if logger != nil {
			oc.logger = logger
		}
	}
}
