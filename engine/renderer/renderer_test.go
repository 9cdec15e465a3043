package renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/camera"
	"github.com/Carmen-Shannon/oxyview/engine/coordinator"
	"github.com/Carmen-Shannon/oxyview/engine/light"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 64
	testHeight = 48
)

func boxScene(mat common.ImportedMaterial) *model.Scene {
	s := model.NewScene("box")
	s.Materials = []common.ImportedMaterial{mat}
	n := model.NewNode("box")
	n.Mesh = model.NewBoxMesh([3]float32{1, 1, 1})
	n.Mesh.MaterialIndex = 0
	s.Root.AddChild(n)
	return s
}

func frameFor(s *model.Scene) *coordinator.FrameState {
	cam := camera.NewFixed([3]float32{0, 0, 4}, [3]float32{})
	f := &coordinator.FrameState{
		Viewport:       [2]int{testWidth, testHeight},
		View:           cam.ViewMatrix(),
		Projection:     cam.ProjectionMatrix(float32(testWidth) / testHeight),
		Model:          common.IdentityMat4(),
		CameraPosition: cam.Position(),
		KeyLight:       light.NewKeyLight(),
	}
	if s != nil {
		f.Scene = s
		f.Content = s.Root
	}
	return f
}

func newHeadless(t *testing.T, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeHeadless, nil, options...)
	require.NoError(t, err)
	return r
}

func TestRenderDrawsContentOverBackground(t *testing.T) {
	red := model.DefaultMaterial()
	red.BaseColor = [4]float32{1, 0, 0, 1}

	r := newHeadless(t, WithSupersample(2))
	r.Render(frameFor(nil))
	empty := r.Image()
	require.NotNil(t, empty)

	r.Render(frameFor(boxScene(red)))
	img := r.Image()
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, testWidth, testHeight), img.Bounds())

	center := img.NRGBAAt(testWidth/2, testHeight/2)
	assert.Greater(t, int(center.R), int(center.G)+50, "front face should be lit red")
	assert.Less(t, int(center.G), 10)
	assert.Equal(t, uint8(255), center.A)

	assert.Equal(t, empty.NRGBAAt(1, 1), img.NRGBAAt(1, 1), "corners show the background")

	stats := r.Stats()
	assert.Equal(t, 1, stats.Meshes)
	assert.Equal(t, 2, stats.Triangles, "only the face toward the camera survives culling")
	assert.Positive(t, stats.Fragments)
}

func TestBackfaceCullingCanBeDisabled(t *testing.T) {
	r := newHeadless(t, WithSupersample(1), WithBackfaceCulling(false))
	r.Render(frameFor(boxScene(model.DefaultMaterial())))
	assert.Equal(t, 12, r.Stats().Triangles)
}

func TestDoubleSidedMaterialsSkipCulling(t *testing.T) {
	mat := model.DefaultMaterial()
	mat.DoubleSided = true
	r := newHeadless(t, WithSupersample(1))
	r.Render(frameFor(boxScene(mat)))
	assert.Equal(t, 12, r.Stats().Triangles)
}

func TestFrustumCullsOffscreenMeshes(t *testing.T) {
	r := newHeadless(t, WithSupersample(1))
	f := frameFor(boxScene(model.DefaultMaterial()))
	f.Model = common.Translation(100, 0, 0)
	r.Render(f)

	stats := r.Stats()
	assert.Equal(t, 1, stats.CulledMeshes)
	assert.Zero(t, stats.Meshes)
	assert.Zero(t, stats.Fragments)
}

func TestTexturedMaterial(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 4; i++ {
		src.SetNRGBA(i%2, i/2, color.NRGBA{G: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	mat := model.DefaultMaterial()
	mat.BaseColor = [4]float32{1, 1, 1, 1}
	mat.DiffuseTexture = &common.ImportedTexture{Name: "green.png", Data: buf.Bytes()}

	r := newHeadless(t, WithSupersample(1))
	r.Render(frameFor(boxScene(mat)))
	center := r.Image().NRGBAAt(testWidth/2, testHeight/2)
	assert.Greater(t, int(center.G), int(center.R)+50)
	assert.Greater(t, int(center.G), int(center.B)+50)
}

func TestBrokenTextureFallsBackToFlatColor(t *testing.T) {
	mat := model.DefaultMaterial()
	mat.BaseColor = [4]float32{0, 0, 1, 1}
	mat.DiffuseTexture = &common.ImportedTexture{Name: "broken.png", Data: []byte("not an image")}

	r := newHeadless(t, WithSupersample(1))
	r.Render(frameFor(boxScene(mat)))
	center := r.Image().NRGBAAt(testWidth/2, testHeight/2)
	assert.Greater(t, int(center.B), int(center.R)+50)
}

func TestSnapshot(t *testing.T) {
	r := newHeadless(t, WithSupersample(1))

	var buf bytes.Buffer
	assert.ErrorIs(t, r.Snapshot(&buf), ErrNoFrame)

	r.Render(frameFor(boxScene(model.DefaultMaterial())))
	require.NoError(t, r.Snapshot(&buf))
	data := buf.Bytes()
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))
}

func TestRenderIgnoresNilFrame(t *testing.T) {
	r := newHeadless(t)
	assert.NotPanics(t, func() { r.Render(nil) })
	assert.Nil(t, r.Image())
}

func TestNewRendererRejectsMissingWindow(t *testing.T) {
	_, err := NewRenderer(BackendTypeWGPU, nil)
	assert.Error(t, err)

	_, err = NewRenderer(RendererBackendType(99), nil)
	assert.Error(t, err)
}

type recordingBackend struct {
	presented []*image.NRGBA
	sizes     [][2]int
	mode      PresentMode
	released  bool
}

func (b *recordingBackend) Configure(width, height int) {
	b.sizes = append(b.sizes, [2]int{width, height})
}

func (b *recordingBackend) SetPresentMode(mode PresentMode) { b.mode = mode }

func (b *recordingBackend) Release() { b.released = true }

func (b *recordingBackend) Present(img *image.NRGBA) error {
	b.presented = append(b.presented, img)
	return nil
}

func TestBackendReceivesFrames(t *testing.T) {
	b := &recordingBackend{}
	r := newHeadless(t, WithSupersample(1), WithBackend(b))

	r.Resize(320, 200)
	r.SetPresentMode(PresentModeUncapped)
	r.Render(frameFor(nil))
	r.Release()

	require.Len(t, b.presented, 1)
	assert.Same(t, r.Image(), b.presented[0])
	assert.Equal(t, [][2]int{{320, 200}}, b.sizes)
	assert.Equal(t, PresentModeUncapped, b.mode)
	assert.True(t, b.released)
}

func TestClipNear(t *testing.T) {
	in := [3]clipVertex{
		{pos: [4]float32{0, 0, 1, 1}},
		{pos: [4]float32{1, 0, 1, 1}},
		{pos: [4]float32{0, 1, -1, 1}},
	}
	var out [4]clipVertex
	require.Equal(t, 4, clipNear(in, &out))
	for _, v := range out {
		assert.GreaterOrEqual(t, v.pos[2], float32(0))
	}

	behind := [3]clipVertex{
		{pos: [4]float32{0, 0, -1, 1}},
		{pos: [4]float32{1, 0, -1, 1}},
		{pos: [4]float32{0, 1, -1, 1}},
	}
	assert.Zero(t, clipNear(behind, &out))
}

func TestDepthTestKeepsNearestTriangle(t *testing.T) {
	fb := newFrameBuffer(8, 8)
	tri := func(z float32) (screenVertex, screenVertex, screenVertex) {
		return screenVertex{x: 0, y: 0, z: z, invW: 1},
			screenVertex{x: 8, y: 0, z: z, invW: 1},
			screenVertex{x: 0, y: 8, z: z, invW: 1}
	}

	a, b, c := tri(0.2)
	assert.Positive(t, rasterizeTriangle(fb, a, b, c, [3]uint8{255, 0, 0}, nil))
	a, b, c = tri(0.5)
	assert.Zero(t, rasterizeTriangle(fb, a, b, c, [3]uint8{0, 255, 0}, nil))

	assert.Equal(t, uint8(255), fb.color[0])
	assert.Equal(t, uint8(0), fb.color[1])
}
