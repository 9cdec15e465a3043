package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	logger *slog.Logger
}

// gltfImporter orchestrates a full glTF/GLB import.
// It combines the parser and the extractors to produce a model.Scene.
type gltfImporter interface {
	// Import parses glTF JSON or GLB bytes and builds the scene graph.
	//
	// Parameters:
	//   - ctx: bounds reads of external buffers and images
	//   - loc: the document locator, used for naming and for resolving relative URIs
	//   - data: the document bytes
	//   - isGLB: true if data is a GLB container
	//
	// Returns:
	//   - *model.Scene: the imported scene
	//   - error: error if import fails
	Import(ctx context.Context, loc resource.Locator, data []byte, isGLB bool) (*model.Scene, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a new glTF importer.
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter(logger *slog.Logger) gltfImporter {
	return &gltfImporterImpl{logger: common.Coalesce(logger, slog.Default())}
}

func (imp *gltfImporterImpl) Import(ctx context.Context, loc resource.Locator, data []byte, isGLB bool) (*model.Scene, error) {
	parser := newGLTFParser(ctx, loc)
	if err := parser.Parse(data, isGLB); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loc, err)
	}

	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}

	materials, err := newGLTFMaterialExtractor(parser, imp.logger).ExtractAllMaterials()
	if err != nil {
		return nil, fmt.Errorf("material extraction failed: %w", err)
	}

	scene := model.NewScene(gltfExtractModelName(doc, loc))
	scene.Materials = materials

	b := &gltfSceneBuilder{
		doc:      doc,
		meshes:   newGLTFMeshExtractor(parser),
		visiting: make(map[int]bool),
	}
	for _, idx := range gltfRootNodes(doc) {
		n, err := b.buildNode(idx)
		if err != nil {
			return nil, err
		}
		scene.Root.AddChild(n)
	}

	for _, n := range scene.Root.Children {
		b.fixMaterialIndices(n, len(materials))
	}

	return scene, nil
}

// gltfSceneBuilder turns glTF nodes into model nodes.
type gltfSceneBuilder struct {
	doc      *gltfDocument
	meshes   gltfMeshExtractor
	visiting map[int]bool
}

func (b *gltfSceneBuilder) buildNode(index int) (*model.Node, error) {
	if index < 0 || index >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", index)
	}
	if b.visiting[index] {
		return nil, fmt.Errorf("node %d is its own ancestor", index)
	}
	b.visiting[index] = true
	defer delete(b.visiting, index)

	src := &b.doc.Nodes[index]
	name := src.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", index)
	}

	n := model.NewNode(name)
	n.Transform = gltfNodeTransform(src)
	if len(src.Extras) > 0 {
		n.Extras = src.Extras
	}

	if src.Mesh != nil {
		meshes, err := b.meshes.ExtractMesh(*src.Mesh)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		// One primitive sits on the node itself. More primitives each get an
		// identity child so a node never carries more than one mesh.
		if len(meshes) == 1 {
			n.Mesh = meshes[0]
		} else {
			for _, m := range meshes {
				child := model.NewNode(m.Name)
				child.Mesh = m
				n.AddChild(child)
			}
		}
	}

	for _, ci := range src.Children {
		child, err := b.buildNode(ci)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}

	return n, nil
}

// fixMaterialIndices sends out-of-range material references to the default material.
func (b *gltfSceneBuilder) fixMaterialIndices(root *model.Node, count int) {
	root.Walk(common.IdentityMat4(), func(n *model.Node, _ common.Mat4) bool {
		if n.Mesh != nil && n.Mesh.MaterialIndex >= count {
			n.Mesh.MaterialIndex = -1
		}
		return true
	})
}

// gltfNodeTransform reads a node's TRS properties, decomposing a matrix when one is given.
func gltfNodeTransform(src *gltfNode) model.Transform {
	t := model.IdentityTransform()
	if src.Matrix != nil {
		t.Translation, t.Rotation, t.Scale = common.DecomposeTRS(common.Mat4(*src.Matrix))
		return t
	}
	if src.Translation != nil {
		t.Translation = *src.Translation
	}
	if src.Rotation != nil {
		t.Rotation = *src.Rotation
	}
	if src.Scale != nil {
		t.Scale = *src.Scale
	}
	return t
}

// gltfRootNodes returns the root nodes of the default scene. Documents without scenes get
// every node that is nobody's child.
func gltfRootNodes(doc *gltfDocument) []int {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

// gltfExtractModelName derives a scene name from the default scene or the locator.
func gltfExtractModelName(doc *gltfDocument, loc resource.Locator) string {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	return common.Coalesce(loc.Base(), "unnamed_model")
}
