package loader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/chewxy/math32"
)

var errOBJNoGeometry = errors.New("obj file has no faces")

// objLoaderBackendImpl is a loaderBackend for Wavefront OBJ files with optional MTL libraries.
type objLoaderBackendImpl struct {
	logger *slog.Logger
}

var _ loaderBackend = &objLoaderBackendImpl{}

// newOBJLoaderBackend creates a new OBJ loader backend.
func newOBJLoaderBackend(logger *slog.Logger) loaderBackend {
	return &objLoaderBackendImpl{logger: common.Coalesce(logger, slog.Default())}
}

// objVertexKey identifies a unique position/uv/normal combination within one mesh.
type objVertexKey struct {
	v, vt, vn int
}

// objGroup collects the faces of one object using one material.
type objGroup struct {
	name     string
	material string
	mesh     *model.Mesh
	lookup   map[objVertexKey]uint32
	normals  bool
}

// objDecoder holds the parse state of a single OBJ document.
type objDecoder struct {
	positions [][3]float32
	normals   [][3]float32
	uvs       [][2]float32

	object   string
	material string
	groups   []*objGroup
	current  *objGroup
	libs     []string
	line     int
}

func (b *objLoaderBackendImpl) Decode(ctx context.Context, loc resource.Locator, data []byte) (*model.Scene, error) {
	dec := &objDecoder{object: common.Coalesce(loc.Base(), "obj")}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		dec.line++
		if err := dec.parseLine(sc.Text()); err != nil {
			return nil, fmt.Errorf("obj line %d: %w", dec.line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("obj read: %w", err)
	}

	materials, index := b.loadMaterials(ctx, loc, dec.libs)

	scene := model.NewScene(common.Coalesce(loc.Base(), "obj"))
	scene.Materials = materials

	for _, g := range dec.groups {
		if len(g.mesh.Indices) == 0 {
			continue
		}
		g.mesh.MaterialIndex = -1
		if i, ok := index[g.material]; ok {
			g.mesh.MaterialIndex = i
		}
		if !g.normals {
			g.mesh.GenerateNormals()
		}
		g.mesh.ComputeBounds()

		n := model.NewNode(g.name)
		n.Mesh = g.mesh
		scene.Root.AddChild(n)
	}

	if len(scene.Root.Children) == 0 {
		return nil, errOBJNoGeometry
	}
	return scene, nil
}

// parseLine dispatches a single OBJ statement.
func (d *objDecoder) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "v":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		d.positions = append(d.positions, [3]float32{v[0], v[1], v[2]})
	case "vn":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		d.normals = append(d.normals, [3]float32{v[0], v[1], v[2]})
	case "vt":
		v, err := parseFloats(args, 2)
		if err != nil {
			return err
		}
		// OBJ puts v=0 at the bottom of the image; meshes here use the glTF convention.
		d.uvs = append(d.uvs, [2]float32{v[0], 1 - v[1]})
	case "f":
		return d.parseFace(args)
	case "o", "g":
		if len(args) > 0 {
			d.object = strings.Join(args, " ")
		}
		d.current = nil
	case "usemtl":
		if len(args) > 0 {
			d.material = strings.Join(args, " ")
		}
		d.current = nil
	case "mtllib":
		d.libs = append(d.libs, args...)
	case "s", "l", "p":
		// smoothing groups, lines and points carry nothing the viewer draws
	default:
		// unsupported statements are ignored, as most readers do
	}
	return nil
}

func (d *objDecoder) group() *objGroup {
	if d.current == nil {
		d.current = &objGroup{
			name:     d.object,
			material: d.material,
			mesh:     &model.Mesh{Name: d.object},
			lookup:   make(map[objVertexKey]uint32),
		}
		d.groups = append(d.groups, d.current)
	}
	return d.current
}

// parseFace parses a face and fan-triangulates polygons:
// f v1[/vt1][/vn1] v2[/vt2][/vn2] v3[/vt3][/vn3] ...
func (d *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("face with %d vertices", len(fields))
	}

	g := d.group()
	corners := make([]uint32, len(fields))
	for i, f := range fields {
		key, err := d.parseCorner(f)
		if err != nil {
			return err
		}
		idx, ok := g.lookup[key]
		if !ok {
			v := model.Vertex{Position: d.positions[key.v], Color: [4]float32{1, 1, 1, 1}}
			if key.vt >= 0 {
				v.TexCoord = d.uvs[key.vt]
			}
			if key.vn >= 0 {
				v.Normal = d.normals[key.vn]
				g.normals = true
			}
			idx = uint32(len(g.mesh.Vertices))
			g.mesh.Vertices = append(g.mesh.Vertices, v)
			g.lookup[key] = idx
		}
		corners[i] = idx
	}

	for i := 1; i+1 < len(corners); i++ {
		g.mesh.Indices = append(g.mesh.Indices, corners[0], corners[i], corners[i+1])
	}
	return nil
}

// parseCorner parses one v/vt/vn reference. Indices are 1-based; negative values count
// back from the most recent element.
func (d *objDecoder) parseCorner(s string) (objVertexKey, error) {
	parts := strings.Split(s, "/")
	key := objVertexKey{v: -1, vt: -1, vn: -1}

	var err error
	if key.v, err = resolveOBJIndex(parts[0], len(d.positions)); err != nil {
		return key, fmt.Errorf("vertex %q: %w", s, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.vt, err = resolveOBJIndex(parts[1], len(d.uvs)); err != nil {
			return key, fmt.Errorf("texcoord %q: %w", s, err)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.vn, err = resolveOBJIndex(parts[2], len(d.normals)); err != nil {
			return key, fmt.Errorf("normal %q: %w", s, err)
		}
	}
	return key, nil
}

func resolveOBJIndex(s string, count int) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case val > 0:
		val--
	case val < 0:
		val += count
	default:
		return 0, errors.New("index 0 is invalid")
	}
	if val < 0 || val >= count {
		return 0, fmt.Errorf("index out of range (have %d)", count)
	}
	return val, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// loadMaterials reads every referenced MTL library. A missing or broken library is logged
// and the meshes that use it fall back to the default material.
func (b *objLoaderBackendImpl) loadMaterials(ctx context.Context, loc resource.Locator, libs []string) ([]common.ImportedMaterial, map[string]int) {
	var materials []common.ImportedMaterial
	index := make(map[string]int)
	for _, lib := range libs {
		libLoc := loc.Sibling(lib)
		data, err := resource.ReadAll(ctx, libLoc)
		if err != nil {
			b.logger.Warn("obj material library skipped", "locator", libLoc, "err", err)
			continue
		}
		for _, m := range parseMTL(ctx, libLoc, data) {
			if _, dup := index[m.Name]; dup {
				continue
			}
			index[m.Name] = len(materials)
			materials = append(materials, m)
		}
	}
	return materials, index
}

// parseMTL parses the subset of MTL statements that map onto a metallic-roughness material.
func parseMTL(ctx context.Context, loc resource.Locator, data []byte) []common.ImportedMaterial {
	var out []common.ImportedMaterial
	var cur *common.ImportedMaterial

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "newmtl" {
			m := model.DefaultMaterial()
			m.Name = strings.Join(fields[1:], " ")
			out = append(out, m)
			cur = &out[len(out)-1]
			continue
		}
		if cur == nil {
			continue
		}
		args := fields[1:]
		switch fields[0] {
		case "Kd":
			if v, err := parseFloats(args, 3); err == nil {
				cur.BaseColor[0], cur.BaseColor[1], cur.BaseColor[2] = v[0], v[1], v[2]
			}
		case "d":
			if v, err := parseFloats(args, 1); err == nil {
				cur.BaseColor[3] = v[0]
			}
		case "Tr":
			if v, err := parseFloats(args, 1); err == nil {
				cur.BaseColor[3] = 1 - v[0]
			}
		case "Ke":
			if v, err := parseFloats(args, 3); err == nil {
				cur.Emissive = [3]float32{v[0], v[1], v[2]}
			}
		case "Ns":
			// Phong exponent 0..1000 mapped to roughness.
			if v, err := parseFloats(args, 1); err == nil {
				cur.Roughness = common.Clamp(math32.Sqrt(2/(v[0]+2)), 0, 1)
			}
		case "Pm":
			if v, err := parseFloats(args, 1); err == nil {
				cur.Metallic = v[0]
			}
		case "Pr":
			if v, err := parseFloats(args, 1); err == nil {
				cur.Roughness = v[0]
			}
		case "map_Kd":
			if len(args) > 0 {
				cur.DiffuseTexture = mtlTexture(ctx, loc, args[len(args)-1])
			}
		case "map_Bump", "bump", "norm":
			if len(args) > 0 {
				cur.NormalTexture = mtlTexture(ctx, loc, args[len(args)-1])
			}
		}
	}
	return out
}

// mtlTexture references a texture next to the material library. Its bytes are read eagerly
// so that the scene carries everything it needs; an unreadable file keeps only the path.
func mtlTexture(ctx context.Context, lib resource.Locator, name string) *common.ImportedTexture {
	loc := lib.Sibling(name)
	tex := &common.ImportedTexture{Name: name, Path: string(loc)}
	if data, err := resource.ReadAll(ctx, loc); err == nil {
		tex.Data = data
	}
	return tex
}
