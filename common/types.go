// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"image"
	"image/draw"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a texture pending upload to whatever backend draws it.
// Environment maps and material textures are both staged in this form.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// NewTextureStagingData stages the pixels of an NRGBA image. The pixel slice is shared, not copied.
func NewTextureStagingData(img *image.NRGBA) TextureStagingData {
	if img == nil {
		return TextureStagingData{}
	}
	b := img.Bounds()
	return TextureStagingData{Pixels: img.Pix, Width: uint32(b.Dx()), Height: uint32(b.Dy())}
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// DefaultSampler returns linear filtering with repeat addressing.
func DefaultSampler() SamplerStagingData {
	return SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

// EnvironmentSampler returns the sampler used for skyboxes and IBL maps: clamped, linear.
func EnvironmentSampler() SamplerStagingData {
	s := DefaultSampler()
	s.AddressModeU = wgpu.AddressModeClampToEdge
	s.AddressModeV = wgpu.AddressModeClampToEdge
	s.AddressModeW = wgpu.AddressModeClampToEdge
	return s
}

// ImportedMaterial represents material properties from an imported model file.
type ImportedMaterial struct {
	// Name is the material identifier.
	Name string

	// BaseColor is the albedo/diffuse color (RGBA).
	BaseColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// Emissive is the emitted light color (RGB), added after lighting.
	Emissive [3]float32

	// DoubleSided disables back-face culling for meshes using this material.
	DoubleSided bool

	// DiffuseTexture holds the base color texture (embedded or external), if any.
	DiffuseTexture *ImportedTexture

	// NormalTexture holds the normal map, if any.
	NormalTexture *ImportedTexture

	// MetallicRoughnessTexture holds metallic/roughness data, if any.
	MetallicRoughnessTexture *ImportedTexture
}

// ImportedTexture represents texture data extracted from a model file.
// For embedded textures (GLB, data URIs), the Data field contains raw image bytes.
// For external textures, the Path field contains the file path.
type ImportedTexture struct {
	// Name is an identifier for this texture (e.g., "diffuse", "normal").
	Name string

	// Path is the file path for external textures (empty for embedded).
	Path string

	// Data contains raw image bytes for embedded textures.
	Data []byte

	// MimeType indicates the image format (e.g., "image/png", "image/jpeg").
	MimeType string

	// SamplerData holds sampler parameters extracted from the model file.
	// When nil, DefaultSampler applies.
	SamplerData *SamplerStagingData
}

// ToNRGBA converts any image to *image.NRGBA with its origin at (0, 0).
// Images that already are NRGBA at the origin are returned as-is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
