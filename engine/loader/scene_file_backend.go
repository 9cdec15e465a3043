package loader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"gopkg.in/yaml.v3"
)

// sceneFileMarker is the top-level key that identifies a scene file.
const sceneFileMarker = "oxyscene"

// sceneFileVersion is the only version this decoder understands.
const sceneFileVersion = 1

var (
	errSceneFileVersion = errors.New("unsupported scene file version")
	errSceneFileEmpty   = errors.New("scene file has no nodes")
)

// sceneFileDoc is the YAML layout of a scene file:
//
//	oxyscene: 1
//	name: bench
//	materials:
//	  - name: red
//	    color: "#ff3030"
//	    roughness: 0.4
//	nodes:
//	  - name: base
//	    primitive: {type: box, size: [4, 0.2, 4]}
//	    material: red
//	    children:
//	      - mesh: {positions: [[0,0,0],[1,0,0],[0,1,0]], indices: [0,1,2]}
//	        translation: [0, 1, 0]
type sceneFileDoc struct {
	Version   int                 `yaml:"oxyscene"`
	Name      string              `yaml:"name,omitempty"`
	Materials []sceneFileMaterial `yaml:"materials,omitempty"`
	Nodes     []sceneFileNode     `yaml:"nodes"`
	Extras    map[string]any      `yaml:"extras,omitempty"`
}

type sceneFileMaterial struct {
	Name      string      `yaml:"name"`
	Color     string      `yaml:"color,omitempty"`
	BaseColor *[4]float32 `yaml:"base_color,omitempty"`
	Metallic  *float32    `yaml:"metallic,omitempty"`
	Roughness *float32    `yaml:"roughness,omitempty"`
	Emissive  *[3]float32 `yaml:"emissive,omitempty"`
	Texture   string      `yaml:"texture,omitempty"`
	TwoSided  bool        `yaml:"double_sided,omitempty"`
}

type sceneFileNode struct {
	Name        string          `yaml:"name,omitempty"`
	Translation *[3]float32     `yaml:"translation,omitempty"`
	Rotation    *[3]float32     `yaml:"rotation,omitempty"` // Euler degrees, applied Y then X then Z
	Quaternion  *[4]float32     `yaml:"quaternion,omitempty"`
	Scale       *[3]float32     `yaml:"scale,omitempty"`
	Primitive   *sceneFilePrim  `yaml:"primitive,omitempty"`
	Mesh        *sceneFileMesh  `yaml:"mesh,omitempty"`
	Material    string          `yaml:"material,omitempty"`
	Extras      map[string]any  `yaml:"extras,omitempty"`
	Children    []sceneFileNode `yaml:"children,omitempty"`
}

// sceneFilePrim is a generated shape, in the manner of a primitive definition file.
type sceneFilePrim struct {
	Type   string     `yaml:"type"`
	Size   [3]float32 `yaml:"size,omitempty"`
	Radius float32    `yaml:"radius,omitempty"`
}

type sceneFileMesh struct {
	Positions [][3]float32 `yaml:"positions"`
	Normals   [][3]float32 `yaml:"normals,omitempty"`
	UVs       [][2]float32 `yaml:"uvs,omitempty"`
	Colors    [][4]float32 `yaml:"colors,omitempty"`
	Indices   []uint32     `yaml:"indices,omitempty"`
}

// sceneFileBackendImpl is the generic loaderBackend: a YAML scene description with
// inline meshes and generated primitives.
type sceneFileBackendImpl struct{}

var _ loaderBackend = &sceneFileBackendImpl{}

func newSceneFileBackend() loaderBackend {
	return &sceneFileBackendImpl{}
}

func (b *sceneFileBackendImpl) Decode(ctx context.Context, loc resource.Locator, data []byte) (*model.Scene, error) {
	var doc sceneFileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scene file: %w", err)
	}
	if doc.Version != sceneFileVersion {
		return nil, fmt.Errorf("%w: %d", errSceneFileVersion, doc.Version)
	}
	if len(doc.Nodes) == 0 {
		return nil, errSceneFileEmpty
	}

	scene := model.NewScene(common.Coalesce(doc.Name, loc.Base(), "scene"))
	scene.Root.Extras = doc.Extras

	index := make(map[string]int, len(doc.Materials))
	for i, fm := range doc.Materials {
		m, err := fm.toMaterial(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		index[m.Name] = len(scene.Materials)
		scene.Materials = append(scene.Materials, m)
	}

	for i := range doc.Nodes {
		n, err := doc.Nodes[i].toNode(index, fmt.Sprintf("node_%d", i))
		if err != nil {
			return nil, err
		}
		scene.Root.AddChild(n)
	}
	return scene, nil
}

func (fm *sceneFileMaterial) toMaterial(ctx context.Context, loc resource.Locator) (common.ImportedMaterial, error) {
	m := model.DefaultMaterial()
	m.Name = fm.Name
	if m.Name == "" {
		return m, errors.New("material without a name")
	}
	if fm.Color != "" {
		c, err := parseHexColor(fm.Color)
		if err != nil {
			return m, err
		}
		m.BaseColor = c
	}
	if fm.BaseColor != nil {
		m.BaseColor = *fm.BaseColor
	}
	if fm.Metallic != nil {
		m.Metallic = *fm.Metallic
	}
	if fm.Roughness != nil {
		m.Roughness = *fm.Roughness
	}
	if fm.Emissive != nil {
		m.Emissive = *fm.Emissive
	}
	m.DoubleSided = fm.TwoSided
	if fm.Texture != "" {
		m.DiffuseTexture = mtlTexture(ctx, loc, fm.Texture)
	}
	return m, nil
}

func (fn *sceneFileNode) toNode(materials map[string]int, fallback string) (*model.Node, error) {
	n := model.NewNode(common.Coalesce(fn.Name, fallback))
	n.Extras = fn.Extras

	if fn.Translation != nil {
		n.Transform.Translation = *fn.Translation
	}
	switch {
	case fn.Quaternion != nil:
		n.Transform.Rotation = *fn.Quaternion
	case fn.Rotation != nil:
		r := *fn.Rotation
		n.Transform.Rotation = common.QuatFromEuler(common.Radians(r[0]), common.Radians(r[1]), common.Radians(r[2]))
	}
	if fn.Scale != nil {
		n.Transform.Scale = *fn.Scale
	}

	var mesh *model.Mesh
	var err error
	switch {
	case fn.Primitive != nil && fn.Mesh != nil:
		return nil, fmt.Errorf("node %q: primitive and mesh are exclusive", n.Name)
	case fn.Primitive != nil:
		mesh, err = fn.Primitive.toMesh()
	case fn.Mesh != nil:
		mesh, err = fn.Mesh.toMesh(n.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", n.Name, err)
	}

	if mesh != nil {
		mesh.MaterialIndex = -1
		if fn.Material != "" {
			idx, ok := materials[fn.Material]
			if !ok {
				return nil, fmt.Errorf("node %q: unknown material %q", n.Name, fn.Material)
			}
			mesh.MaterialIndex = idx
		}
		n.Mesh = mesh
	}

	for i := range fn.Children {
		c, err := fn.Children[i].toNode(materials, fmt.Sprintf("%s_%d", n.Name, i))
		if err != nil {
			return nil, err
		}
		n.AddChild(c)
	}
	return n, nil
}

func (p *sceneFilePrim) toMesh() (*model.Mesh, error) {
	size := p.Size
	if size == ([3]float32{}) {
		size = [3]float32{1, 1, 1}
	}
	switch strings.ToLower(p.Type) {
	case "box", "cube":
		return model.NewBoxMesh(size), nil
	case "plane":
		return model.NewPlaneMesh(size[0], size[2]), nil
	case "sphere":
		return model.NewSphereMesh(common.Coalesce(p.Radius, 0.5), 0, 0), nil
	default:
		return nil, fmt.Errorf("unknown primitive %q", p.Type)
	}
}

func (fm *sceneFileMesh) toMesh(name string) (*model.Mesh, error) {
	count := len(fm.Positions)
	if count == 0 {
		return nil, errors.New("mesh without positions")
	}
	for _, attr := range []struct {
		name string
		n    int
	}{{"normals", len(fm.Normals)}, {"uvs", len(fm.UVs)}, {"colors", len(fm.Colors)}} {
		if attr.n != 0 && attr.n != count {
			return nil, fmt.Errorf("%s: have %d, want %d", attr.name, attr.n, count)
		}
	}

	m := &model.Mesh{Name: name, Vertices: make([]model.Vertex, count)}
	for i, p := range fm.Positions {
		v := &m.Vertices[i]
		v.Position = p
		v.Color = [4]float32{1, 1, 1, 1}
		if len(fm.Normals) > 0 {
			v.Normal = fm.Normals[i]
		}
		if len(fm.UVs) > 0 {
			v.TexCoord = fm.UVs[i]
		}
		if len(fm.Colors) > 0 {
			v.Color = fm.Colors[i]
		}
	}

	m.Indices = fm.Indices
	if len(m.Indices) == 0 {
		m.Indices = make([]uint32, count)
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}
	if len(m.Indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d is not a multiple of 3", len(m.Indices))
	}
	for _, idx := range m.Indices {
		if int(idx) >= count {
			return nil, fmt.Errorf("index %d out of range for %d vertices", idx, count)
		}
	}

	if len(fm.Normals) == 0 {
		m.GenerateNormals()
	}
	m.ComputeBounds()
	return m, nil
}

// parseHexColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func parseHexColor(s string) ([4]float32, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return [4]float32{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return [4]float32{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return [4]float32{
		float32(v>>24&0xff) / 255,
		float32(v>>16&0xff) / 255,
		float32(v>>8&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}
