package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleBuffer holds three VEC3 positions followed by three uint16 indices, padded to 44 bytes.
func triangleBuffer() []byte {
	var buf bytes.Buffer
	for _, f := range []float32{0, 0, 0, 2, 0, 0, 0, 4, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 2, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, i)
	}
	return buf.Bytes()
}

// triangleDoc is a two-level node tree: a translated parent over a leaf carrying the triangle.
func triangleDoc(bufferURI string) map[string]any {
	buffer := map[string]any{"byteLength": 44}
	if bufferURI != "" {
		buffer["uri"] = bufferURI
	}
	return map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"scene":  0,
		"scenes": []any{map[string]any{"name": "tri", "nodes": []int{0}}},
		"nodes": []any{
			map[string]any{"name": "parent", "translation": []float32{1, 0, 0}, "children": []int{1}},
			map[string]any{"name": "leaf", "mesh": 0, "extras": map[string]any{"tag": "x"}},
		},
		"meshes": []any{map[string]any{
			"name":       "tri",
			"primitives": []any{map[string]any{"attributes": map[string]int{"POSITION": 0}, "indices": 1, "material": 0}},
		}},
		"materials": []any{map[string]any{
			"name":                 "red",
			"pbrMetallicRoughness": map[string]any{"baseColorFactor": []float32{1, 0, 0, 1}, "metallicFactor": 0},
		}},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 36, "byteLength": 6},
		},
		"buffers": []any{buffer},
	}
}

func gltfJSON(t *testing.T) []byte {
	t.Helper()
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(triangleBuffer())
	data, err := json.Marshal(triangleDoc(uri))
	require.NoError(t, err)
	return data
}

func glbBytes(t *testing.T) []byte {
	t.Helper()
	js, err := json.Marshal(triangleDoc(""))
	require.NoError(t, err)
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}
	bin := triangleBuffer()

	var out bytes.Buffer
	total := uint32(12 + 8 + len(js) + 8 + len(bin))
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: total})
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON})
	out.Write(js)
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	out.Write(bin)
	return out.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) resource.Locator {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return resource.Locator(p)
}

func assertTriangleScene(t *testing.T, s *model.Scene) {
	t.Helper()
	assert.Equal(t, "tri", s.Name)

	meshes, tris := s.Stats()
	assert.Equal(t, 1, meshes)
	assert.Equal(t, 1, tris)

	require.Len(t, s.Materials, 1)
	assert.Equal(t, "red", s.Materials[0].Name)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, s.Materials[0].BaseColor)
	assert.Equal(t, float32(0), s.Materials[0].Metallic)

	b := s.Bounds()
	require.True(t, b.Valid)
	assert.InDeltaSlice(t, []float32{1, 0, 0}, b.Min[:], 1e-5)
	assert.InDeltaSlice(t, []float32{3, 4, 0}, b.Max[:], 1e-5)

	require.Len(t, s.Root.Children, 1)
	parent := s.Root.Children[0]
	require.Len(t, parent.Children, 1)
	leaf := parent.Children[0]
	assert.Equal(t, "leaf", leaf.Name)
	assert.Equal(t, "x", leaf.Extras["tag"])
	require.NotNil(t, leaf.Mesh)
	assert.Equal(t, 0, leaf.Mesh.MaterialIndex)
	// normals are generated for a file that has none
	assert.InDeltaSlice(t, []float32{0, 0, 1}, leaf.Mesh.Vertices[0].Normal[:], 1e-5)
}

func TestDecodeGLTFWithDataURI(t *testing.T) {
	loc := writeFile(t, t.TempDir(), "tri.gltf", gltfJSON(t))

	s, err := NewLoader().Decode(context.Background(), loc)
	require.NoError(t, err)
	assertTriangleScene(t, s)
}

func TestDecodeGLTFWithExternalBuffer(t *testing.T) {
	resource.RegisterBundle("loader-test", fstest.MapFS{
		"models/tri.gltf": {Data: mustJSON(t, triangleDoc("tri.bin"))},
		"models/tri.bin":  {Data: triangleBuffer()},
	})
	defer resource.RegisterBundle("loader-test", nil)

	s, err := NewLoader().Decode(context.Background(), "bundle:loader-test/models/tri.gltf")
	require.NoError(t, err)
	assertTriangleScene(t, s)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestDecodeGLB(t *testing.T) {
	loc := writeFile(t, t.TempDir(), "tri.glb", glbBytes(t))

	s, err := NewLoader().Decode(context.Background(), loc)
	require.NoError(t, err)
	assertTriangleScene(t, s)
}

func TestDecodeSniffsContentBehindUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader()

	s, err := l.Decode(context.Background(), writeFile(t, dir, "asset.bin", glbBytes(t)))
	require.NoError(t, err)
	assertTriangleScene(t, s)

	s, err = l.Decode(context.Background(), writeFile(t, dir, "asset.dat", gltfJSON(t)))
	require.NoError(t, err)
	assertTriangleScene(t, s)
}

func TestDecodeOBJWithMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quad.mtl", []byte("newmtl green\nKd 0 1 0\nd 0.5\n"))
	obj := `# quad
mtllib quad.mtl
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl green
f 1/1 2/2 3/3 4/4
f -4/1 -2/3 -1/4
`
	loc := writeFile(t, dir, "quad.obj", []byte(obj))

	s, err := NewLoader().Decode(context.Background(), loc)
	require.NoError(t, err)

	meshes, tris := s.Stats()
	assert.Equal(t, 1, meshes)
	assert.Equal(t, 3, tris)

	require.Len(t, s.Materials, 1)
	assert.Equal(t, [4]float32{0, 1, 0, 0.5}, s.Materials[0].BaseColor)

	m := s.Root.Children[0].Mesh
	assert.Equal(t, "quad", s.Root.Children[0].Name)
	assert.Equal(t, 0, m.MaterialIndex)
	assert.Len(t, m.Vertices, 4, "shared corners are de-duplicated")
	// v flipped to the top-left origin convention
	assert.Equal(t, [2]float32{0, 1}, m.Vertices[0].TexCoord)
}

func TestDecodeOBJMissingMaterialLibraryFallsBack(t *testing.T) {
	loc := writeFile(t, t.TempDir(), "tri.obj", []byte("mtllib none.mtl\nusemtl x\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))

	s, err := NewLoader().Decode(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, -1, s.Root.Children[0].Mesh.MaterialIndex)
	assert.Equal(t, "default", s.Material(-1).Name)
}

func TestDecodeSceneFile(t *testing.T) {
	doc := `# bench
oxyscene: 1
name: bench
materials:
  - name: red
    color: "#ff0000"
    roughness: 0.25
nodes:
  - name: base
    primitive: {type: box, size: [4, 2, 2]}
    material: red
    children:
      - name: tri
        translation: [0, 5, 0]
        mesh:
          positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
`
	loc := writeFile(t, t.TempDir(), "bench.yaml", []byte(doc))

	s, err := NewLoader().Decode(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "bench", s.Name)

	meshes, tris := s.Stats()
	assert.Equal(t, 2, meshes)
	assert.Equal(t, 13, tris)

	require.Len(t, s.Materials, 1)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, s.Materials[0].BaseColor)
	assert.Equal(t, float32(0.25), s.Materials[0].Roughness)

	b := s.Bounds()
	assert.InDeltaSlice(t, []float32{-2, -1, -1}, b.Min[:], 1e-5)
	assert.InDeltaSlice(t, []float32{2, 6, 1}, b.Max[:], 1e-5)
}

func TestDecodeFallsBackToSceneFileDecoder(t *testing.T) {
	doc := `name: crate
oxyscene: 1
nodes:
  - name: box
    primitive: {type: box, size: [1, 1, 1]}
`
	loc := writeFile(t, t.TempDir(), "crate.obj", []byte(doc))

	s, err := NewLoader().Decode(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "crate", s.Name)
	meshes, _ := s.Stats()
	assert.Equal(t, 1, meshes)
}

func TestCandidatesEndWithSceneFile(t *testing.T) {
	l := NewLoader().(*loader)

	assert.Equal(t, []format{formatOBJ, formatSceneFile}, l.candidates("a.obj", []byte("name: x\n")))
	assert.Equal(t, []format{formatGLB, formatSceneFile}, l.candidates("a.glb", glbBytes(t)))
	assert.Equal(t, []format{formatSceneFile}, l.candidates("a.yaml", []byte("oxyscene: 1\n")))
	assert.Equal(t, []format{formatSceneFile}, l.candidates("a.xyz", []byte{0x00, 0x01}))
}

func TestDecodeErrorKinds(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader()

	_, err := l.Decode(context.Background(), resource.Locator(filepath.Join(dir, "missing.glb")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindNotFound, le.Kind)

	_, err = l.Decode(context.Background(), writeFile(t, dir, "broken.gltf", []byte(`{"asset": {"version": "1.0"}}`)))
	assert.ErrorIs(t, err, ErrDecode)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = l.Decode(context.Background(), writeFile(t, dir, "noise.xyz", []byte{0x00, 0x01, 0x02, 0xff}))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = l.Decode(context.Background(), writeFile(t, dir, "bad.obj", []byte("v 0 0 0\nf 1 2 3\n")))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify("a", nil))
	assert.ErrorIs(t, Classify("a", resource.ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, Classify("a", errors.New("boom")), ErrDecode)

	le := &LoadError{Kind: KindCosmetic, Locator: "sky.png"}
	assert.Same(t, le, Classify("other", le))
	assert.ErrorIs(t, Cosmetic("sky.png", errors.New("x")), ErrCosmeticAsset)
}

type panicBackend struct{}

func (panicBackend) Decode(context.Context, resource.Locator, []byte) (*model.Scene, error) {
	panic("decoder bug")
}

func TestActionThroughAsyncLoader(t *testing.T) {
	exec := &resource.ManualExecutor{}
	scenes := resource.NewAsyncLoader[resource.Locator, model.Scene](resource.WithExecutor(exec))
	l := NewLoader()
	loc := writeFile(t, t.TempDir(), "tri.glb", glbBytes(t))

	f1 := scenes.Request(loc, l.Action(context.Background()))
	f2 := scenes.Request(loc, l.Action(context.Background()))
	assert.Equal(t, 1, exec.Pending())
	assert.True(t, f1.Shares(f2))

	exec.Drain()
	s1, err := f1.Result()
	require.NoError(t, err)
	s2, err := f2.Result()
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assertTriangleScene(t, s1)
}

func TestActionRecoversDecoderPanic(t *testing.T) {
	exec := &resource.ManualExecutor{}
	scenes := resource.NewAsyncLoader[resource.Locator, model.Scene](resource.WithExecutor(exec))
	l := NewLoader().(*loader)
	l.backends[formatSceneFile] = panicBackend{}
	loc := writeFile(t, t.TempDir(), "scene.txt", []byte("oxyscene: 1\n"))

	f := scenes.Request(loc, l.Action(context.Background()))
	exec.Drain()

	_, err := f.Result()
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, resource.ErrActionPanicked)
	assert.Equal(t, 0, scenes.InFlight())
}

func TestSharedScenesIsSingleton(t *testing.T) {
	assert.Same(t, SharedScenes(), SharedScenes())
	assert.Same(t, Default(), Default())
}

func TestTriangulateStripAndFan(t *testing.T) {
	assert.Equal(t, []uint32{0, 1, 2, 2, 1, 3}, gltfTriangulate(gltfPrimitiveModeTriangleStrip, []uint32{0, 1, 2, 3}))
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, gltfTriangulate(gltfPrimitiveModeTriangleFan, []uint32{0, 1, 2, 3}))
}
