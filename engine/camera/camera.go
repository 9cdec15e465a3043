// Package camera provides the viewer camera: a value-type snapshot, projection lenses and the
// gesture-driven orbit control.
package camera

import (
	"github.com/Carmen-Shannon/oxyview/common"
)

// Camera is anything that can place a viewer in the scene.
type Camera interface {
	// Position returns the world-space eye position.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Target returns the world-space point the camera looks at.
	//
	// Returns:
	//   - [3]float32: target as (x, y, z)
	Target() [3]float32

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - [3]float32: up as (x, y, z)
	Up() [3]float32

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the 4x4 projection matrix for a viewport aspect ratio as 16 floats
	// (column-major), using the WebGPU depth range.
	//
	// Parameters:
	//   - aspect: viewport width / height
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix(aspect float32) [16]float32
}

// Lens projects view space to clip space. It is implemented only by Perspective and Orthographic.
type Lens interface {
	// Projection returns the projection matrix for a viewport aspect ratio.
	Projection(aspect float32) [16]float32

	isLens()
}

// Perspective is a pinhole lens.
type Perspective struct {
	// FovY is the vertical field of view in degrees.
	FovY float32
	Near float32
	Far  float32
}

// Projection implements Lens.
func (p Perspective) Projection(aspect float32) [16]float32 {
	var out [16]float32
	if aspect <= 0 {
		aspect = 1
	}
	common.Perspective(out[:], common.Radians(p.FovY), aspect, p.Near, p.Far)
	return out
}

func (Perspective) isLens() {}

// Orthographic is a parallel lens.
type Orthographic struct {
	// Scale is half the visible height in world units.
	Scale float32
	Near  float32
	Far   float32
}

// Projection implements Lens.
func (o Orthographic) Projection(aspect float32) [16]float32 {
	var out [16]float32
	if aspect <= 0 {
		aspect = 1
	}
	common.Orthographic(out[:], o.Scale*aspect, o.Scale, o.Near, o.Far)
	return out
}

func (Orthographic) isLens() {}

// DefaultLens is the lens cameras use when none is given.
func DefaultLens() Lens {
	return Perspective{FovY: 45, Near: 0.01, Far: 100}
}

// Fixed is a camera by value. Copying it is cheap, so coordinators replace their camera
// snapshot on every update.
type Fixed struct {
	Eye    [3]float32
	Center [3]float32

	// UpVector defaults to +Y when zero.
	UpVector [3]float32

	// Lens defaults to DefaultLens when nil.
	Lens Lens
}

var _ Camera = Fixed{}

// NewFixed creates a Fixed camera at eye looking at center with +Y up and the default lens.
func NewFixed(eye, center [3]float32) Fixed {
	return Fixed{Eye: eye, Center: center, UpVector: [3]float32{0, 1, 0}, Lens: DefaultLens()}
}

// Snapshot copies the current state of any camera into a Fixed value.
//
// Parameters:
//   - c: the camera to copy; nil yields the default view from +Z
//
// Returns:
//   - Fixed: the snapshot
func Snapshot(c Camera) Fixed {
	switch v := c.(type) {
	case nil:
		return NewFixed([3]float32{0, 0, 4}, [3]float32{})
	case Fixed:
		return v
	case *orbitControlImpl:
		return v.Snapshot()
	}
	return Fixed{Eye: c.Position(), Center: c.Target(), UpVector: c.Up(), Lens: lensOf(c)}
}

// lensOf recovers the lens of a foreign camera when it exposes one.
func lensOf(c Camera) Lens {
	if l, ok := c.(interface{ Lens() Lens }); ok {
		return l.Lens()
	}
	return DefaultLens()
}

// Equal reports whether two snapshots place the viewer identically.
func (f Fixed) Equal(other Fixed) bool {
	return f.Eye == other.Eye && f.Center == other.Center && f.Up() == other.Up() && f.lens() == other.lens()
}

func (f Fixed) Position() [3]float32 {
	return f.Eye
}

func (f Fixed) Target() [3]float32 {
	return f.Center
}

func (f Fixed) Up() [3]float32 {
	if f.UpVector == ([3]float32{}) {
		return [3]float32{0, 1, 0}
	}
	return f.UpVector
}

func (f Fixed) ViewMatrix() [16]float32 {
	return lookAt(f.Eye, f.Center, f.Up())
}

func (f Fixed) ProjectionMatrix(aspect float32) [16]float32 {
	return f.lens().Projection(aspect)
}

func (f Fixed) lens() Lens {
	if f.Lens == nil {
		return DefaultLens()
	}
	return f.Lens
}

func lookAt(eye, center, up [3]float32) [16]float32 {
	var out [16]float32
	common.LookAt(out[:], eye[0], eye[1], eye[2], center[0], center[1], center[2], up[0], up[1], up[2])
	return out
}
