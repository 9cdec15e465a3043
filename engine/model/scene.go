// Package model holds the decoded scene graph shared between the loaders, the scene coordinator
// and the renderer.
package model

import (
	"github.com/Carmen-Shannon/oxyview/common"
)

// Scene is a decoded asset: a root node plus the materials its meshes reference.
// A Scene held by a cache is treated as read-only; viewers display clones of Root.
type Scene struct {
	// Name is the scene identifier, typically the asset's base name.
	Name string

	// Root is the top of the node tree.
	Root *Node

	// Materials are indexed by Mesh.MaterialIndex.
	Materials []common.ImportedMaterial
}

// NewScene creates a scene with an empty root node.
func NewScene(name string) *Scene {
	return &Scene{Name: name, Root: NewNode(name)}
}

// Bounds returns the bounds of all geometry in the scene.
func (s *Scene) Bounds() Bounds {
	if s == nil || s.Root == nil {
		return Bounds{}
	}
	return s.Root.Bounds()
}

// Material returns the material for index, or the default material when index is out of range.
func (s *Scene) Material(index int) common.ImportedMaterial {
	if s != nil && index >= 0 && index < len(s.Materials) {
		return s.Materials[index]
	}
	return DefaultMaterial()
}

// Stats counts the meshes and triangles reachable from the root.
//
// Returns:
//   - int: number of nodes that carry a mesh
//   - int: total triangle count
func (s *Scene) Stats() (meshes, triangles int) {
	if s == nil || s.Root == nil {
		return 0, 0
	}
	s.Root.Walk(common.IdentityMat4(), func(n *Node, _ common.Mat4) bool {
		if n.Mesh != nil {
			meshes++
			triangles += n.Mesh.TriangleCount()
		}
		return true
	})
	return meshes, triangles
}

// DefaultMaterial is used for meshes without a material: light grey, fully rough dielectric.
func DefaultMaterial() common.ImportedMaterial {
	return common.ImportedMaterial{
		Name:      "default",
		BaseColor: [4]float32{0.8, 0.8, 0.8, 1},
		Metallic:  0,
		Roughness: 1,
	}
}
