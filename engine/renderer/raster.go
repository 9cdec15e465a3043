package renderer

import (
	"image"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/chewxy/math32"
)

// frameBuffer holds the render target as flat slices for cache locality.
type frameBuffer struct {
	width  int
	height int
	color  []uint8   // RGBA interleaved, len = w*h*4
	depth  []float32 // NDC depth per pixel, cleared to +Inf
}

// newFrameBuffer allocates a w×h target.
func newFrameBuffer(w, h int) *frameBuffer {
	fb := &frameBuffer{
		width:  w,
		height: h,
		color:  make([]uint8, w*h*4),
		depth:  make([]float32, w*h),
	}
	fb.clearDepth()
	return fb
}

func (fb *frameBuffer) clearDepth() {
	inf := math32.Inf(1)
	for i := range fb.depth {
		fb.depth[i] = inf
	}
}

// image copies the color buffer into a new NRGBA image.
func (fb *frameBuffer) image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.width, fb.height))
	copy(img.Pix, fb.color)
	return img
}

// clipVertex is a vertex after the view-projection transform.
type clipVertex struct {
	pos [4]float32
	uv  [2]float32
}

func lerpClip(a, b clipVertex, t float32) clipVertex {
	var out clipVertex
	for i := range out.pos {
		out.pos[i] = a.pos[i] + (b.pos[i]-a.pos[i])*t
	}
	out.uv[0] = a.uv[0] + (b.uv[0]-a.uv[0])*t
	out.uv[1] = a.uv[1] + (b.uv[1]-a.uv[1])*t
	return out
}

// clipNear clips a triangle against the near plane (clip z >= 0). A triangle crossing the
// plane becomes a quad.
//
// Returns:
//   - int: the number of vertices written to out (0, 3 or 4)
func clipNear(in [3]clipVertex, out *[4]clipVertex) int {
	n := 0
	for i := 0; i < 3; i++ {
		a, b := in[i], in[(i+1)%3]
		da, db := a.pos[2], b.pos[2]
		if da >= 0 {
			out[n] = a
			n++
		}
		if (da >= 0) != (db >= 0) {
			out[n] = lerpClip(a, b, da/(da-db))
			n++
		}
	}
	if n < 3 {
		return 0
	}
	return n
}

// screenVertex is a vertex in pixel space. u and v are divided by w for perspective-correct
// interpolation.
type screenVertex struct {
	x, y, z float32
	invW    float32
	u, v    float32
}

// toScreen runs the perspective divide and viewport transform. It reports false for vertices
// on or behind the eye plane.
func toScreen(c clipVertex, width, height int) (screenVertex, bool) {
	if c.pos[3] <= 1e-6 {
		return screenVertex{}, false
	}
	invW := 1 / c.pos[3]
	return screenVertex{
		x:    (c.pos[0]*invW*0.5 + 0.5) * float32(width),
		y:    (0.5 - c.pos[1]*invW*0.5) * float32(height),
		z:    c.pos[2] * invW,
		invW: invW,
		u:    c.uv[0] * invW,
		v:    c.uv[1] * invW,
	}, true
}

// fragmentShader colors a covered pixel. It returns false to discard the fragment.
type fragmentShader func(u, v float32) (r, g, b uint8, ok bool)

// rasterizeTriangle fills a screen-space triangle with depth testing. Either winding is
// accepted; culling happens before this point. A nil shade writes the flat color.
func rasterizeTriangle(fb *frameBuffer, a, b, c screenVertex, flat [3]uint8, shade fragmentShader) int {
	area := (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
	if area > -1e-8 && area < 1e-8 {
		return 0
	}
	invArea := 1 / area

	minX := max(int(math32.Floor(min(a.x, b.x, c.x))), 0)
	maxX := min(int(math32.Ceil(max(a.x, b.x, c.x))), fb.width-1)
	minY := max(int(math32.Floor(min(a.y, b.y, c.y))), 0)
	maxY := min(int(math32.Ceil(max(a.y, b.y, c.y))), fb.height-1)
	if minX > maxX || minY > maxY {
		return 0
	}

	written := 0
	for py := minY; py <= maxY; py++ {
		y := float32(py) + 0.5
		row := py * fb.width
		for px := minX; px <= maxX; px++ {
			x := float32(px) + 0.5

			w0 := ((b.x-x)*(c.y-y) - (b.y-y)*(c.x-x)) * invArea
			w1 := ((c.x-x)*(a.y-y) - (c.y-y)*(a.x-x)) * invArea
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*a.z + w1*b.z + w2*c.z
			idx := row + px
			if z < 0 || z > 1 || z >= fb.depth[idx] {
				continue
			}

			r, g, bl := flat[0], flat[1], flat[2]
			if shade != nil {
				iw := w0*a.invW + w1*b.invW + w2*c.invW
				u := (w0*a.u + w1*b.u + w2*c.u) / iw
				v := (w0*a.v + w1*b.v + w2*c.v) / iw
				var ok bool
				if r, g, bl, ok = shade(u, v); !ok {
					continue
				}
			}

			fb.depth[idx] = z
			o := idx * 4
			fb.color[o] = r
			fb.color[o+1] = g
			fb.color[o+2] = bl
			fb.color[o+3] = 255
			written++
		}
	}
	return written
}

// unproject maps an NDC point back to world space through the inverse view-projection.
func unproject(inv common.Mat4, x, y, z float32) [3]float32 {
	p := common.TransformVec4(inv, [4]float32{x, y, z, 1})
	if p[3] == 0 {
		return [3]float32{p[0], p[1], p[2]}
	}
	return [3]float32{p[0] / p[3], p[1] / p[3], p[2] / p[3]}
}

// viewRays returns the world-space ray directions through the four NDC corners, in the order
// top-left, top-right, bottom-left, bottom-right.
func viewRays(inv common.Mat4) [4][3]float32 {
	corners := [4][2]float32{{-1, 1}, {1, 1}, {-1, -1}, {1, -1}}
	var out [4][3]float32
	for i, c := range corners {
		near := unproject(inv, c[0], c[1], 0)
		far := unproject(inv, c[0], c[1], 1)
		out[i] = common.Normalize3(common.Sub3(far, near))
	}
	return out
}

func lerp3(a, b [3]float32, t float32) [3]float32 {
	return [3]float32{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t, a[2] + (b[2]-a[2])*t}
}

// fillBackground writes the environment background seen along each pixel's view ray.
func (fb *frameBuffer) fillBackground(background func(dir [3]float32) [3]float32, inv common.Mat4) {
	rays := viewRays(inv)
	for py := 0; py < fb.height; py++ {
		ty := (float32(py) + 0.5) / float32(fb.height)
		left := lerp3(rays[0], rays[2], ty)
		right := lerp3(rays[1], rays[3], ty)
		row := py * fb.width * 4
		for px := 0; px < fb.width; px++ {
			tx := (float32(px) + 0.5) / float32(fb.width)
			c := background(lerp3(left, right, tx))
			o := row + px*4
			fb.color[o] = clamp255(c[0] * 255)
			fb.color[o+1] = clamp255(c[1] * 255)
			fb.color[o+2] = clamp255(c[2] * 255)
			fb.color[o+3] = 255
		}
	}
}

func clamp255(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
