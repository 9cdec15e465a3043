package model

import (
	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/chewxy/math32"
)

// Transform represents a decomposed local transform.
type Transform struct {
	// Translation is the position offset.
	Translation [3]float32

	// Rotation is the orientation as a quaternion (x, y, z, w).
	Rotation [4]float32

	// Scale is the scale factor along each axis.
	Scale [3]float32
}

// IdentityTransform returns a transform with no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
}

// Matrix composes the transform as T * R * S.
//
// Returns:
//   - common.Mat4: the column-major local matrix
func (t Transform) Matrix() common.Mat4 {
	return common.ComposeTRS(t.Translation, t.Rotation, t.Scale)
}

// Vertex is a single mesh vertex in model space.
type Vertex struct {
	Position [3]float32 // vertex position in model space
	Normal   [3]float32 // vertex normal for lighting
	TexCoord [2]float32 // UV texture coordinate
	Color    [4]float32 // per-vertex RGBA color
	Tangent  [4]float32 // tangent vector (xyz) + handedness (w) for normal mapping
}

// Mesh is immutable geometry. Meshes are shared between every clone of a scene, so nothing
// may modify one after its decoder has returned it.
type Mesh struct {
	// Name is the mesh identifier.
	Name string

	// Vertices are the mesh vertices.
	Vertices []Vertex

	// Indices are the triangle indices (three per triangle).
	Indices []uint32

	// MaterialIndex references Scene.Materials, or -1 for the default material.
	MaterialIndex int

	// BoundingMin is the minimum corner of the axis-aligned bounding box.
	BoundingMin [3]float32

	// BoundingMax is the maximum corner of the axis-aligned bounding box.
	BoundingMax [3]float32
}

// ComputeBounds recalculates BoundingMin and BoundingMax from the vertex positions.
// A mesh without vertices gets zero bounds.
func (m *Mesh) ComputeBounds() {
	if len(m.Vertices) == 0 {
		m.BoundingMin, m.BoundingMax = [3]float32{}, [3]float32{}
		return
	}
	mn := [3]float32{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32}
	mx := [3]float32{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32}
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			mn[i] = min(mn[i], v.Position[i])
			mx[i] = max(mx[i], v.Position[i])
		}
	}
	m.BoundingMin, m.BoundingMax = mn, mx
}

// TriangleCount returns the number of triangles described by Indices.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// GenerateNormals computes smooth per-vertex normals by accumulating face normals.
// Used when the source format does not provide normals.
func (m *Mesh) GenerateNormals() {
	normals := make([][3]float32, len(m.Vertices))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		i0, i1, i2 := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if int(i0) >= len(m.Vertices) || int(i1) >= len(m.Vertices) || int(i2) >= len(m.Vertices) {
			continue
		}
		p0, p1, p2 := m.Vertices[i0].Position, m.Vertices[i1].Position, m.Vertices[i2].Position
		n := common.Cross3(common.Sub3(p1, p0), common.Sub3(p2, p0))
		for _, idx := range [3]uint32{i0, i1, i2} {
			normals[idx][0] += n[0]
			normals[idx][1] += n[1]
			normals[idx][2] += n[2]
		}
	}
	for i := range m.Vertices {
		n := common.Normalize3(normals[i])
		if n == ([3]float32{}) {
			n = [3]float32{0, 1, 0}
		}
		m.Vertices[i].Normal = n
	}
}

// Bounds is an axis-aligned box. The zero value is empty.
type Bounds struct {
	Min, Max [3]float32
	Valid    bool
}

// Extend grows b to include p.
func (b *Bounds) Extend(p [3]float32) {
	if !b.Valid {
		b.Min, b.Max, b.Valid = p, p, true
		return
	}
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

// Size returns the extent along each axis.
func (b Bounds) Size() [3]float32 {
	if !b.Valid {
		return [3]float32{}
	}
	return common.Sub3(b.Max, b.Min)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() [3]float32 {
	if !b.Valid {
		return [3]float32{}
	}
	return [3]float32{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2, (b.Min[2] + b.Max[2]) / 2}
}

// MaxDimension returns the largest extent of the box.
func (b Bounds) MaxDimension() float32 {
	s := b.Size()
	return max(s[0], s[1], s[2])
}

// Transformed returns the bounds of the eight corners of b after applying m.
func (b Bounds) Transformed(m common.Mat4) Bounds {
	if !b.Valid {
		return b
	}
	var out Bounds
	for i := 0; i < 8; i++ {
		corner := [3]float32{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out.Extend(common.TransformPoint(m, corner))
	}
	return out
}
