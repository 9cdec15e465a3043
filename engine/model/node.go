package model

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/jinzhu/copier"
)

// Node is one element of a scene graph. A node carries a local transform, optional geometry
// and any number of children.
type Node struct {
	// Name is the node identifier from the source file.
	Name string

	// Transform is the node's transform relative to its parent.
	Transform Transform

	// Extras holds free-form properties from the source file.
	Extras map[string]any

	// Mesh is the node's geometry. Mesh data is shared, never copied, by Clone.
	Mesh *Mesh `copier:"-"`

	// Children are the child nodes. Use AddChild so the parent link stays correct.
	Children []*Node `copier:"-"`

	parent *Node
}

// NewNode creates a node with an identity transform.
//
// Parameters:
//   - name: the node name
//
// Returns:
//   - *Node: the new node
func NewNode(name string) *Node {
	return &Node{Name: name, Transform: IdentityTransform()}
}

// AddChild appends child to n, detaching it from any previous parent.
func (n *Node) AddChild(child *Node) {
	if child == nil {
		return
	}
	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Parent returns the node this node is attached to, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Clone copies the node tree rooted at n. Fields and extras are deep-copied, meshes are shared
// and the clone has no parent.
//
// Returns:
//   - *Node: the root of the copied tree
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{}
	if err := copier.CopyWithOption(c, n, copier.Option{CaseSensitive: true, DeepCopy: true}); err != nil {
		slog.Error("model.Node.Clone", "node", n.Name, "err", err)
		c.Name, c.Transform = n.Name, n.Transform
	}
	c.Mesh = n.Mesh
	for _, child := range n.Children {
		c.AddChild(child.Clone())
	}
	return c
}

// LocalMatrix returns the node's local transform matrix.
func (n *Node) LocalMatrix() common.Mat4 {
	return n.Transform.Matrix()
}

// WorldMatrix composes the local matrices from the root down to n.
func (n *Node) WorldMatrix() common.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = common.MulMat4(p.LocalMatrix(), m)
	}
	return m
}

// Walk visits n and its descendants depth-first, passing each node's matrix relative to n's parent
// premultiplied by base. Returning false from fn skips that node's children.
//
// Parameters:
//   - base: matrix applied above n
//   - fn: visitor receiving the node and its accumulated matrix
func (n *Node) Walk(base common.Mat4, fn func(node *Node, m common.Mat4) bool) {
	if n == nil {
		return
	}
	m := common.MulMat4(base, n.LocalMatrix())
	if !fn(n, m) {
		return
	}
	for _, c := range n.Children {
		c.Walk(m, fn)
	}
}

// Bounds returns the bounds of all geometry below n, expressed in the space n's parent sees.
func (n *Node) Bounds() Bounds {
	var b Bounds
	n.Walk(common.IdentityMat4(), func(node *Node, m common.Mat4) bool {
		if node.Mesh != nil && len(node.Mesh.Vertices) > 0 {
			mb := Bounds{Min: node.Mesh.BoundingMin, Max: node.Mesh.BoundingMax, Valid: true}.Transformed(m)
			b.Extend(mb.Min)
			b.Extend(mb.Max)
		}
		return true
	})
	return b
}
