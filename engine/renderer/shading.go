package renderer

import (
	"image"

	"github.com/chewxy/math32"
)

// srgbToLinear decodes 8-bit sRGB texels.
var srgbToLinear [256]float32

func init() {
	for i := range srgbToLinear {
		srgbToLinear[i] = math32.Pow(float32(i)/255, 2.2)
	}
}

// acesTonemap applies the ACES filmic curve to a linear value.
func acesTonemap(x float32) float32 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

// encode tonemaps a linear color and returns it gamma encoded.
func encode(c [3]float32, exposure float32) [3]uint8 {
	var out [3]uint8
	for i := range c {
		t := acesTonemap(max(c[i]*exposure, 0))
		out[i] = clamp255(math32.Pow(t, 1/2.2) * 255)
	}
	return out
}

// surface is the per-triangle shading input: a flat-lit face of one material.
type surface struct {
	albedo   [4]float32 // linear base color × vertex color
	light    [3]float32 // ambient + direct irradiance at the face
	emissive [3]float32
	exposure float32
	texture  *image.NRGBA
}

// flatColor is the encoded color of an untextured face.
func (s *surface) flatColor() [3]uint8 {
	return encode(s.lit(s.albedo[0], s.albedo[1], s.albedo[2]), s.exposure)
}

func (s *surface) lit(r, g, b float32) [3]float32 {
	return [3]float32{
		r*s.light[0] + s.emissive[0],
		g*s.light[1] + s.emissive[1],
		b*s.light[2] + s.emissive[2],
	}
}

// shader returns the fragment shader for a textured face, or nil for a flat one.
func (s *surface) shader() fragmentShader {
	if s.texture == nil {
		return nil
	}
	return func(u, v float32) (uint8, uint8, uint8, bool) {
		tr, tg, tb, ta := sampleTexture(s.texture, u, v)
		// skip transparent texels
		if ta < 8 || s.albedo[3] <= 0 {
			return 0, 0, 0, false
		}
		c := encode(s.lit(
			s.albedo[0]*srgbToLinear[tr],
			s.albedo[1]*srgbToLinear[tg],
			s.albedo[2]*srgbToLinear[tb],
		), s.exposure)
		return c[0], c[1], c[2], true
	}
}

// sampleTexture performs bilinear filtering with UV wrapping.
func sampleTexture(tex *image.NRGBA, u, v float32) (r, g, b, a uint8) {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()
	if w == 0 || h == 0 {
		return 0, 0, 0, 0
	}

	u -= math32.Floor(u)
	v -= math32.Floor(v)

	fx := u * float32(w-1)
	fy := v * float32(h-1)
	x0 := int(fx)
	y0 := int(fy)
	x1 := (x0 + 1) % w
	y1 := (y0 + 1) % h
	dx := fx - float32(x0)
	dy := fy - float32(y0)

	stride := tex.Stride
	pix := tex.Pix
	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	mix := func(o int) uint8 {
		return uint8(float32(pix[i00+o])*w00 + float32(pix[i10+o])*w10 + float32(pix[i01+o])*w01 + float32(pix[i11+o])*w11 + 0.5)
	}
	return mix(0), mix(1), mix(2), mix(3)
}
