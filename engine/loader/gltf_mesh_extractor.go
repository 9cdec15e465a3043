package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/model"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
	cache  map[int][]*model.Mesh
}

// gltfMeshExtractor converts glTF mesh primitives into model meshes.
type gltfMeshExtractor interface {
	// ExtractMesh extracts a single mesh by index, one model.Mesh per triangle primitive.
	// Results are memoised so that nodes sharing a glTF mesh also share the model meshes.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh to extract
	//
	// Returns:
	//   - []*model.Mesh: one mesh per primitive
	//   - error: error if extraction fails
	ExtractMesh(meshIndex int) ([]*model.Mesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser, cache: make(map[int][]*model.Mesh)}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) ([]*model.Mesh, error) {
	if meshes, ok := e.cache[meshIndex]; ok {
		return meshes, nil
	}

	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	mesh := &doc.Meshes[meshIndex]
	var result []*model.Mesh

	for primIdx := range mesh.Primitives {
		prim := &mesh.Primitives[primIdx]
		if !gltfIsTriangleMode(prim.Mode) {
			// points and lines have no surface to shade
			continue
		}
		m, err := e.extractPrimitive(prim, mesh.Name, primIdx)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, primIdx, err)
		}
		result = append(result, m)
	}

	e.cache[meshIndex] = result
	return result, nil
}

func gltfIsTriangleMode(mode *int) bool {
	if mode == nil {
		return true
	}
	switch *mode {
	case gltfPrimitiveModeTriangles, gltfPrimitiveModeTriangleStrip, gltfPrimitiveModeTriangleFan:
		return true
	}
	return false
}

// extractPrimitive extracts a single primitive as a model.Mesh.
func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, meshName string, primIndex int) (*model.Mesh, error) {
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}

	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	vertexCount := len(positions)
	vertices := make([]model.Vertex, vertexCount)
	for i, pos := range positions {
		vertices[i].Position = pos
		vertices[i].Color = [4]float32{1, 1, 1, 1}
	}

	hasNormals := false
	if normalAccessor, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadVec3Accessor(normalAccessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read normals: %w", err)
		}
		for i := range min(len(normals), vertexCount) {
			vertices[i].Normal = normals[i]
		}
		hasNormals = true
	}

	if texCoordAccessor, ok := prim.Attributes["TEXCOORD_0"]; ok {
		texCoords, err := e.parser.ReadVec2Accessor(texCoordAccessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read texcoords: %w", err)
		}
		for i := range min(len(texCoords), vertexCount) {
			vertices[i].TexCoord = texCoords[i]
		}
	}

	// COLOR_0 may be VEC3 or VEC4, float or normalized; ReadVec4Accessor handles all four.
	if colorAccessor, ok := prim.Attributes["COLOR_0"]; ok {
		colors, err := e.parser.ReadVec4Accessor(colorAccessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read colors: %w", err)
		}
		for i := range min(len(colors), vertexCount) {
			vertices[i].Color = colors[i]
		}
	}

	// glTF TANGENT is VEC4: xyz = tangent direction, w = handedness (±1).
	hasTangents := false
	if tangentAccessor, ok := prim.Attributes["TANGENT"]; ok {
		tangents, err := e.parser.ReadVec4Accessor(tangentAccessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read tangents: %w", err)
		}
		for i := range min(len(tangents), vertexCount) {
			vertices[i].Tangent = tangents[i]
		}
		hasTangents = true
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = e.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		indices = make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, idx := range indices {
		if int(idx) >= vertexCount {
			return nil, fmt.Errorf("index %d out of range for %d vertices", idx, vertexCount)
		}
	}
	if prim.Mode != nil {
		indices = gltfTriangulate(*prim.Mode, indices)
	}

	name := meshName
	if name == "" {
		name = fmt.Sprintf("mesh_%d", primIndex)
	}
	if primIndex > 0 {
		name = fmt.Sprintf("%s_prim%d", name, primIndex)
	}

	materialIndex := -1
	if prim.Material != nil {
		materialIndex = *prim.Material
	}

	m := &model.Mesh{
		Name:          name,
		Vertices:      vertices,
		Indices:       indices,
		MaterialIndex: materialIndex,
	}

	// Normals first: tangents are orthonormalized against them.
	if !hasNormals && len(indices) >= 3 {
		m.GenerateNormals()
	}
	if !hasTangents && len(indices) >= 3 {
		generateTangents(m.Vertices, m.Indices)
	}
	m.ComputeBounds()

	return m, nil
}

// gltfTriangulate converts strip and fan index lists into a plain triangle list.
func gltfTriangulate(mode int, indices []uint32) []uint32 {
	if len(indices) < 3 {
		return nil
	}
	switch mode {
	case gltfPrimitiveModeTriangleStrip:
		out := make([]uint32, 0, (len(indices)-2)*3)
		for i := 0; i+2 < len(indices); i++ {
			if i%2 == 0 {
				out = append(out, indices[i], indices[i+1], indices[i+2])
			} else {
				out = append(out, indices[i+1], indices[i], indices[i+2])
			}
		}
		return out
	case gltfPrimitiveModeTriangleFan:
		out := make([]uint32, 0, (len(indices)-2)*3)
		for i := 1; i+1 < len(indices); i++ {
			out = append(out, indices[0], indices[i], indices[i+1])
		}
		return out
	default:
		return indices[:len(indices)/3*3]
	}
}

// generateTangents computes per-vertex tangent vectors from triangle topology using the
// MikkTSpace-compatible UV-gradient method. For each triangle the tangent and bitangent
// are derived from the UV coordinate differences, accumulated per-vertex, and then
// orthonormalized against the vertex normal. The W component stores handedness (±1).
//
// Parameters:
//   - vertices: the vertex slice to write tangent data into
//   - indices: the triangle index buffer (must be a multiple of 3)
func generateTangents(vertices []model.Vertex, indices []uint32) {
	n := len(vertices)
	tan := make([][3]float32, n)
	btan := make([][3]float32, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}

		p0, p1, p2 := vertices[i0].Position, vertices[i1].Position, vertices[i2].Position
		uv0, uv1, uv2 := vertices[i0].TexCoord, vertices[i1].TexCoord, vertices[i2].TexCoord

		edge1 := common.Sub3(p1, p0)
		edge2 := common.Sub3(p2, p0)

		duv1 := [2]float32{uv1[0] - uv0[0], uv1[1] - uv0[1]}
		duv2 := [2]float32{uv2[0] - uv0[0], uv2[1] - uv0[1]}

		det := duv1[0]*duv2[1] - duv1[1]*duv2[0]
		if det == 0 {
			continue
		}
		invDet := 1.0 / det

		var t, b [3]float32
		for k := 0; k < 3; k++ {
			t[k] = invDet * (duv2[1]*edge1[k] - duv1[1]*edge2[k])
			b[k] = invDet * (-duv2[0]*edge1[k] + duv1[0]*edge2[k])
		}

		for _, idx := range [3]uint32{i0, i1, i2} {
			for k := 0; k < 3; k++ {
				tan[idx][k] += t[k]
				btan[idx][k] += b[k]
			}
		}
	}

	for i := 0; i < n; i++ {
		normal := vertices[i].Normal
		t := tan[i]

		// Gram-Schmidt: T' = normalize(T - N * dot(N, T))
		nDotT := common.Dot3(normal, t)
		ortho := common.Normalize3([3]float32{
			t[0] - normal[0]*nDotT,
			t[1] - normal[1]*nDotT,
			t[2] - normal[2]*nDotT,
		})
		if ortho == ([3]float32{}) {
			vertices[i].Tangent = [4]float32{1, 0, 0, 1}
			continue
		}

		w := float32(1.0)
		if common.Dot3(common.Cross3(normal, ortho), btan[i]) < 0 {
			w = -1.0
		}

		vertices[i].Tangent = [4]float32{ortho[0], ortho[1], ortho[2], w}
	}
}
