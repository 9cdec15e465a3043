// Package renderer draws coordinator frames on the CPU: flat-lit, z-buffered triangles over
// the environment background, supersampled and then filtered down to the viewport. Finished
// frames are kept in memory and may be presented on a window surface or written as WebP.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/coordinator"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/texture"
	"github.com/Carmen-Shannon/oxyview/engine/window"
)

// ErrNoFrame is returned when a snapshot is requested before anything was rendered.
var ErrNoFrame = errors.New("renderer: no frame rendered yet")

// FrameStats describes the most recent Render call.
type FrameStats struct {
	// Meshes is the number of meshes drawn.
	Meshes int

	// CulledMeshes is the number of meshes skipped by the frustum test.
	CulledMeshes int

	// Triangles is the number of triangles submitted after back-face culling.
	Triangles int

	// Fragments is the number of pixels written by geometry.
	Fragments int

	// Elapsed is the time spent in Render.
	Elapsed time.Duration
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu     *sync.Mutex
	logger *slog.Logger

	backendType RendererBackendType
	backend     RendererBackend

	supersample int
	exposure    float32
	cullBack    bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode

	fb    *frameBuffer
	last  *image.NRGBA
	stats FrameStats

	// textures caches decoded material textures for the current scene; nil marks a failure.
	scene    *model.Scene
	textures map[*common.ImportedTexture]*image.NRGBA

	// scratch buffers reused between meshes
	worldPos [][3]float32
	clipPos  [][4]float32
}

// Renderer draws coordinator frames.
//
// The Renderer rasterizes on the CPU so it runs anywhere, including without a display. A
// backend, when present, shows each finished frame on a window surface.
type Renderer interface {
	coordinator.Renderer

	// Image returns the most recent frame at viewport size, or nil before the first Render.
	// The image is not modified afterwards.
	//
	// Returns:
	//   - *image.NRGBA: the last frame
	Image() *image.NRGBA

	// Stats returns statistics of the most recent Render call.
	//
	// Returns:
	//   - FrameStats: the frame statistics
	Stats() FrameStats

	// Snapshot writes the most recent frame as lossless WebP.
	//
	// Parameters:
	//   - w: the destination
	//
	// Returns:
	//   - error: ErrNoFrame before the first Render, or the encoder's error
	Snapshot(w io.Writer) error

	// Resize reconfigures the presentation surface. Headless renderers ignore it.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode changes the presentation mode of the backend.
	//
	// Parameters:
	//   - mode: the desired PresentMode
	SetPresentMode(mode PresentMode)

	// Release frees the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer.
//
// Parameters:
//   - backendType: BackendTypeHeadless, or BackendTypeWGPU to present on win
//   - win: the window to present on; ignored by headless renderers
//   - options: a variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the configured renderer
//   - error: error if the presentation backend could not be created
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		logger:      slog.Default(),
		backendType: backendType,
		supersample: 2,
		exposure:    1,
		cullBack:    true,
		textures:    make(map[*common.ImportedTexture]*image.NRGBA),
	}
	for _, option := range options {
		option(r)
	}

	switch backendType {
	case BackendTypeHeadless:
	case BackendTypeWGPU:
		if win == nil {
			return nil, errors.New("renderer: wgpu backend needs a window")
		}
		b, err := newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter)
		if err != nil {
			return nil, err
		}
		if r.pendingPresentMode != nil {
			b.SetPresentMode(*r.pendingPresentMode)
		}
		b.Configure(win.Width(), win.Height())
		r.backend = b
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}
	return r, nil
}

func (r *renderer) Render(frame *coordinator.FrameState) {
	if frame == nil {
		return
	}
	start := time.Now()

	r.mu.Lock()
	img := r.draw(frame)
	r.last = img
	r.stats.Elapsed = time.Since(start)
	stats := r.stats
	backend := r.backend
	r.mu.Unlock()

	if frame.ShowDebugStats {
		r.logger.Debug("frame rendered",
			"meshes", stats.Meshes,
			"culled", stats.CulledMeshes,
			"triangles", stats.Triangles,
			"fragments", stats.Fragments,
			"elapsed", stats.Elapsed,
		)
	}

	if backend != nil {
		if err := backend.Present(img); err != nil {
			r.logger.Warn("present failed", "err", err)
		}
	}
}

// draw renders frame into a new viewport-sized image.
func (r *renderer) draw(frame *coordinator.FrameState) *image.NRGBA {
	vw, vh := max(frame.Viewport[0], 1), max(frame.Viewport[1], 1)
	ss := max(r.supersample, 1)
	w, h := vw*ss, vh*ss
	if r.fb == nil || r.fb.width != w || r.fb.height != h {
		r.fb = newFrameBuffer(w, h)
	} else {
		r.fb.clearDepth()
	}
	r.stats = FrameStats{}

	if frame.Scene != r.scene {
		r.scene = frame.Scene
		clear(r.textures)
	}

	viewProj := common.MulMat4(frame.Projection, frame.View)
	var inv common.Mat4
	if !common.Invert4(inv[:], viewProj[:]) {
		inv = common.IdentityMat4()
	}
	r.fb.fillBackground(frame.Environment.Background, inv)

	if frame.Content != nil {
		frustum := common.ExtractFrustumFromMatrix(viewProj[:])
		frame.Content.Walk(frame.Model, func(n *model.Node, world common.Mat4) bool {
			if n.Mesh == nil || len(n.Mesh.Vertices) == 0 {
				return true
			}
			b := model.Bounds{Min: n.Mesh.BoundingMin, Max: n.Mesh.BoundingMax, Valid: true}.Transformed(world)
			if !frustum.IntersectsAABB(b.Min, b.Max) {
				r.stats.CulledMeshes++
				return true
			}
			r.drawMesh(frame, n.Mesh, world, viewProj)
			r.stats.Meshes++
			return true
		})
	}

	return downsample(r.fb.image(), vw, vh)
}

// drawMesh transforms and rasterizes one mesh.
func (r *renderer) drawMesh(frame *coordinator.FrameState, mesh *model.Mesh, world, viewProj common.Mat4) {
	mat := frame.Scene.Material(mesh.MaterialIndex)
	tex := r.texture(mat.DiffuseTexture)

	n := len(mesh.Vertices)
	r.worldPos = grow(r.worldPos, n)
	r.clipPos = grow(r.clipPos, n)
	for i, v := range mesh.Vertices {
		p := common.TransformPoint(world, v.Position)
		r.worldPos[i] = p
		r.clipPos[i] = common.TransformVec4(viewProj, [4]float32{p[0], p[1], p[2], 1})
	}

	for t := 0; t+2 < len(mesh.Indices); t += 3 {
		i0, i1, i2 := int(mesh.Indices[t]), int(mesh.Indices[t+1]), int(mesh.Indices[t+2])
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}
		p0, p1, p2 := r.worldPos[i0], r.worldPos[i1], r.worldPos[i2]

		normal := common.Cross3(common.Sub3(p1, p0), common.Sub3(p2, p0))
		if common.Dot3(normal, normal) < 1e-20 {
			continue
		}
		normal = common.Normalize3(normal)

		if common.Dot3(normal, common.Sub3(frame.CameraPosition, p0)) < 0 {
			if r.cullBack && !mat.DoubleSided {
				continue
			}
			normal = [3]float32{-normal[0], -normal[1], -normal[2]}
		}
		r.stats.Triangles++

		s := r.surface(frame, mat, mesh, [3]int{i0, i1, i2}, normal, tex)
		flat := s.flatColor()
		shade := s.shader()

		tri := [3]clipVertex{
			{pos: r.clipPos[i0], uv: mesh.Vertices[i0].TexCoord},
			{pos: r.clipPos[i1], uv: mesh.Vertices[i1].TexCoord},
			{pos: r.clipPos[i2], uv: mesh.Vertices[i2].TexCoord},
		}
		var poly [4]clipVertex
		count := clipNear(tri, &poly)
		if count == 0 {
			continue
		}

		var screen [4]screenVertex
		ok := true
		for k := 0; k < count && ok; k++ {
			screen[k], ok = toScreen(poly[k], r.fb.width, r.fb.height)
		}
		if !ok {
			continue
		}
		for k := 1; k+1 < count; k++ {
			r.stats.Fragments += rasterizeTriangle(r.fb, screen[0], screen[k], screen[k+1], flat, shade)
		}
	}
}

// surface gathers the flat shading inputs of one triangle.
func (r *renderer) surface(frame *coordinator.FrameState, mat common.ImportedMaterial, mesh *model.Mesh, idx [3]int, normal [3]float32, tex *image.NRGBA) *surface {
	var vc [4]float32
	for _, i := range idx {
		c := mesh.Vertices[i].Color
		for k := range vc {
			vc[k] += c[k] / 3
		}
	}

	p0, p1, p2 := r.worldPos[idx[0]], r.worldPos[idx[1]], r.worldPos[idx[2]]
	centroid := [3]float32{(p0[0] + p1[0] + p2[0]) / 3, (p0[1] + p1[1] + p2[1]) / 3, (p0[2] + p1[2] + p2[2]) / 3}

	incoming := frame.Environment.Ambient(normal)
	if frame.KeyLight != nil {
		direct := frame.KeyLight.Irradiance(centroid, normal)
		for k := range incoming {
			incoming[k] += direct[k]
		}
	}

	return &surface{
		albedo: [4]float32{
			mat.BaseColor[0] * vc[0],
			mat.BaseColor[1] * vc[1],
			mat.BaseColor[2] * vc[2],
			mat.BaseColor[3] * vc[3],
		},
		light:    incoming,
		emissive: mat.Emissive,
		exposure: r.exposure,
		texture:  tex,
	}
}

// texture decodes a material texture once per scene.
func (r *renderer) texture(t *common.ImportedTexture) *image.NRGBA {
	if t == nil {
		return nil
	}
	if img, ok := r.textures[t]; ok {
		return img
	}
	img, err := texture.FromImported(t)
	if err != nil {
		r.logger.Debug("material texture unavailable", "texture", common.Coalesce(t.Path, t.Name), "err", err)
		r.textures[t] = nil
		return nil
	}
	r.textures[t] = img.Pixels
	return img.Pixels
}

func (r *renderer) Image() *image.NRGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *renderer) Stats() FrameStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) Snapshot(w io.Writer) error {
	img := r.Image()
	if img == nil {
		return ErrNoFrame
	}
	return WriteSnapshot(w, img)
}

func (r *renderer) Resize(width, height int) {
	if r.backend != nil {
		r.backend.Configure(width, height)
	}
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	if r.backend != nil {
		r.backend.SetPresentMode(mode)
		return
	}
	r.pendingPresentMode = &mode
}

func (r *renderer) Release() {
	if r.backend != nil {
		r.backend.Release()
		r.backend = nil
	}
}

// grow returns s resized to n elements, reusing its storage when possible.
func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
