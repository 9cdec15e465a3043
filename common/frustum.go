package common

import (
	"github.com/chewxy/math32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a combined projection * view
// matrix (column-major) using the Gribb/Hartmann method. The near plane uses the
// [0, 1] depth range of WebGPU clip space.
//
// Parameters:
//   - viewProj: 16 float32 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum

	// row returns row i of the matrix; M[i][j] lives at index j*4 + i.
	row := func(i int) [4]float32 {
		return [4]float32{viewProj[i], viewProj[4+i], viewProj[8+i], viewProj[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(idx int, a [4]float32, b [4]float32, sign float32) {
		p := &f.Planes[idx]
		p.Normal = [3]float32{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]}
		p.Distance = a[3] + sign*b[3]
	}

	set(FrustumLeft, r3, r0, 1)
	set(FrustumRight, r3, r0, -1)
	set(FrustumBottom, r3, r1, 1)
	set(FrustumTop, r3, r1, -1)
	set(FrustumNear, r2, [4]float32{}, 0)
	set(FrustumFar, r3, r2, -1)

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := math32.Sqrt(Dot3(p.Normal, p.Normal))
	if length > 0 {
		invLen := 1.0 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}

// IntersectsAABB reports whether the axis-aligned box [min, max] is at least partly inside the frustum.
// The test is conservative: boxes near a frustum corner may be reported visible.
//
// Parameters:
//   - min, max: box corners in the space the frustum was extracted for
//
// Returns:
//   - bool: false only when the box lies entirely outside one plane
func (f *Frustum) IntersectsAABB(min, max [3]float32) bool {
	for _, p := range f.Planes {
		// positive vertex: the box corner furthest along the plane normal
		var v [3]float32
		for i := 0; i < 3; i++ {
			if p.Normal[i] >= 0 {
				v[i] = max[i]
			} else {
				v[i] = min[i]
			}
		}
		if Dot3(p.Normal, v)+p.Distance < 0 {
			return false
		}
	}
	return true
}
