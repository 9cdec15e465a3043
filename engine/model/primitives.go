package model

import (
	"github.com/chewxy/math32"
)

// Default tessellation for generated primitives.
const (
	defaultSphereRings  = 16
	defaultSphereSlices = 16
)

// NewBoxMesh creates an axis-aligned box centered on the origin with flat-shaded faces.
//
// Parameters:
//   - size: full extent along X, Y and Z
//
// Returns:
//   - *Mesh: 24 vertices, 12 triangles
func NewBoxMesh(size [3]float32) *Mesh {
	hx, hy, hz := size[0]/2, size[1]/2, size[2]/2
	faces := [6]struct {
		n       [3]float32
		corners [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [4][3]float32{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{hx, -hy, hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}, {-hx, hy, -hz}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	m := &Mesh{Name: "box", MaterialIndex: -1}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for i, c := range f.corners {
			m.Vertices = append(m.Vertices, Vertex{Position: c, Normal: f.n, TexCoord: uvs[i], Color: [4]float32{1, 1, 1, 1}})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	m.ComputeBounds()
	return m
}

// NewPlaneMesh creates a single quad in the XZ plane facing +Y.
//
// Parameters:
//   - width: extent along X
//   - depth: extent along Z
//
// Returns:
//   - *Mesh: 4 vertices, 2 triangles
func NewPlaneMesh(width, depth float32) *Mesh {
	hw, hd := width/2, depth/2
	up := [3]float32{0, 1, 0}
	white := [4]float32{1, 1, 1, 1}
	m := &Mesh{
		Name:          "plane",
		MaterialIndex: -1,
		Vertices: []Vertex{
			{Position: [3]float32{-hw, 0, hd}, Normal: up, TexCoord: [2]float32{0, 1}, Color: white},
			{Position: [3]float32{hw, 0, hd}, Normal: up, TexCoord: [2]float32{1, 1}, Color: white},
			{Position: [3]float32{hw, 0, -hd}, Normal: up, TexCoord: [2]float32{1, 0}, Color: white},
			{Position: [3]float32{-hw, 0, -hd}, Normal: up, TexCoord: [2]float32{0, 0}, Color: white},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	m.ComputeBounds()
	return m
}

// NewSphereMesh creates a UV sphere centered on the origin.
//
// Parameters:
//   - radius: sphere radius
//   - rings: latitude bands, minimum 2 (0 selects the default)
//   - slices: longitude bands, minimum 3 (0 selects the default)
//
// Returns:
//   - *Mesh: the sphere mesh
func NewSphereMesh(radius float32, rings, slices int) *Mesh {
	if rings == 0 {
		rings = defaultSphereRings
	}
	if slices == 0 {
		slices = defaultSphereSlices
	}
	rings, slices = max(rings, 2), max(slices, 3)

	m := &Mesh{Name: "sphere", MaterialIndex: -1}
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		sinPhi, cosPhi := math32.Sincos(v * math32.Pi)
		for s := 0; s <= slices; s++ {
			u := float32(s) / float32(slices)
			sinTheta, cosTheta := math32.Sincos(u * 2 * math32.Pi)
			n := [3]float32{cosTheta * sinPhi, cosPhi, sinTheta * sinPhi}
			m.Vertices = append(m.Vertices, Vertex{
				Position: [3]float32{n[0] * radius, n[1] * radius, n[2] * radius},
				Normal:   n,
				TexCoord: [2]float32{u, v},
				Color:    [4]float32{1, 1, 1, 1},
			})
		}
	}
	stride := uint32(slices + 1)
	for r := uint32(0); r < uint32(rings); r++ {
		for s := uint32(0); s < uint32(slices); s++ {
			a := r*stride + s
			b := a + stride
			m.Indices = append(m.Indices, a, a+1, b, a+1, b+1, b)
		}
	}
	m.ComputeBounds()
	return m
}
