package loader

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/resource"

	"github.com/cogentcore/webgpu/wgpu"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser gltfParser
	logger *slog.Logger
}

// gltfMaterialExtractor defines the interface for extracting material and texture data
// from a parsed glTF document into ImportedMaterial values.
type gltfMaterialExtractor interface {
	// ExtractMaterial extracts a single material by index, including any referenced texture bytes.
	// A texture that cannot be read is logged and left out; the material itself still succeeds.
	//
	// Parameters:
	//   - materialIndex: the index of the material in the document
	//
	// Returns:
	//   - common.ImportedMaterial: the extracted material
	//   - error: error if the index is invalid
	ExtractMaterial(materialIndex int) (common.ImportedMaterial, error)

	// ExtractAllMaterials extracts all materials from the document, in document order.
	//
	// Returns:
	//   - []common.ImportedMaterial: all extracted materials
	//   - error: error if extraction fails
	ExtractAllMaterials() ([]common.ImportedMaterial, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//   - logger: receives warnings about textures that could not be loaded
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(parser gltfParser, logger *slog.Logger) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{parser: parser, logger: common.Coalesce(logger, slog.Default())}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (common.ImportedMaterial, error) {
	doc := e.parser.Document()
	if doc == nil {
		return common.ImportedMaterial{}, fmt.Errorf("no document loaded")
	}
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return common.ImportedMaterial{}, fmt.Errorf("material index %d out of range", materialIndex)
	}

	mat := &doc.Materials[materialIndex]

	// glTF defaults: white, fully metallic, fully rough.
	result := common.ImportedMaterial{
		Name:        mat.Name,
		BaseColor:   [4]float32{1, 1, 1, 1},
		Metallic:    1.0,
		Roughness:   1.0,
		DoubleSided: mat.DoubleSided,
	}
	if result.Name == "" {
		result.Name = fmt.Sprintf("material_%d", materialIndex)
	}
	if mat.EmissiveFactor != nil {
		result.Emissive = *mat.EmissiveFactor
	}

	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			result.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			result.Metallic = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			result.Roughness = *pbr.RoughnessFactor
		}
		if pbr.BaseColorTexture != nil {
			result.DiffuseTexture = e.texture(result.Name, "baseColor", pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			result.MetallicRoughnessTexture = e.texture(result.Name, "metallicRoughness", pbr.MetallicRoughnessTexture.Index)
		}
	}

	if mat.NormalTexture != nil {
		result.NormalTexture = e.texture(result.Name, "normal", mat.NormalTexture.Index)
	}

	return result, nil
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() ([]common.ImportedMaterial, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	materials := make([]common.ImportedMaterial, len(doc.Materials))
	for i := range doc.Materials {
		mat, err := e.ExtractMaterial(i)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		materials[i] = mat
	}

	return materials, nil
}

// texture loads a texture and logs instead of failing. A model with a broken texture is
// still displayable.
func (e *gltfMaterialExtractorImpl) texture(material, slot string, index int) *common.ImportedTexture {
	tex, err := e.loadTexture(index)
	if err != nil {
		e.logger.Warn("gltf texture skipped", "locator", e.parser.Locator(), "material", material, "slot", slot, "err", err)
		return nil
	}
	return tex
}

// loadTexture resolves a glTF texture index into an ImportedTexture with loaded image bytes.
// Embedded images come from a buffer view or data URI. External URIs are resolved relative
// to the document locator.
func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int) (*common.ImportedTexture, error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}

	tex := &doc.Textures[textureIndex]
	if tex.Source == nil {
		return nil, fmt.Errorf("texture %d has no source", textureIndex)
	}

	var samplerData *common.SamplerStagingData
	if tex.Sampler != nil {
		samplerIdx := *tex.Sampler
		if samplerIdx >= 0 && samplerIdx < len(doc.Samplers) {
			samplerData = gltfSamplerToStagingData(&doc.Samplers[samplerIdx])
		}
	}

	imageIndex := *tex.Source
	if imageIndex < 0 || imageIndex >= len(doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", imageIndex)
	}

	img := &doc.Images[imageIndex]

	result := &common.ImportedTexture{
		Name:        img.Name,
		MimeType:    img.MimeType,
		SamplerData: samplerData,
	}

	switch {
	case img.BufferView != nil:
		data, err := e.readBufferViewRaw(*img.BufferView)
		if err != nil {
			return nil, fmt.Errorf("failed to read image buffer view: %w", err)
		}
		result.Data = data

	case strings.HasPrefix(img.URI, "data:"):
		data, mimeType, err := gltfDecodeDataURI(img.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data URI: %w", err)
		}
		result.Data = data
		result.MimeType = common.Coalesce(result.MimeType, mimeType)

	case img.URI != "":
		loc := e.parser.Locator().Sibling(img.URI)
		result.Path = string(loc)
		data, err := resource.ReadAll(e.parser.Context(), loc)
		if err != nil {
			return nil, err
		}
		result.Data = data

	default:
		return nil, fmt.Errorf("image %d has neither bufferView nor uri", imageIndex)
	}

	return result, nil
}

// readBufferViewRaw reads raw bytes from a buffer view by index (not through an accessor).
// This is used for image data which is stored directly in buffer views without accessor interpretation.
func (e *gltfMaterialExtractorImpl) readBufferViewRaw(bufferViewIndex int) ([]byte, error) {
	doc := e.parser.Document()
	if bufferViewIndex < 0 || bufferViewIndex >= len(doc.BufferViews) {
		return nil, fmt.Errorf("bufferView index %d out of range", bufferViewIndex)
	}

	bv := &doc.BufferViews[bufferViewIndex]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}

	buf := &doc.Buffers[bv.Buffer]
	start := bv.ByteOffset
	end := start + bv.ByteLength

	if start < 0 || end > len(buf.Data) {
		return nil, fmt.Errorf("bufferView exceeds buffer bounds: offset=%d length=%d bufSize=%d", start, bv.ByteLength, len(buf.Data))
	}

	data := make([]byte, bv.ByteLength)
	copy(data, buf.Data[start:end])
	return data, nil
}

// gltfSamplerToStagingData converts a glTF sampler definition into SamplerStagingData.
// Any unset fields in the glTF sampler fall back to the glTF defaults (linear filtering, repeat wrapping).
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-sampler
//
// Parameters:
//   - s: the glTF sampler to convert
//
// Returns:
//   - *common.SamplerStagingData: the converted sampler staging data
func gltfSamplerToStagingData(s *gltfSampler) *common.SamplerStagingData {
	result := common.DefaultSampler()

	if s.MagFilter != nil {
		switch *s.MagFilter {
		case gltfFilterNearest:
			result.MagFilter = wgpu.FilterModeNearest
		case gltfFilterLinear:
			result.MagFilter = wgpu.FilterModeLinear
		}
	}

	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterNearestMipmapNearest, gltfFilterNearestMipmapLinear:
			result.MinFilter = wgpu.FilterModeNearest
		case gltfFilterLinear, gltfFilterLinearMipmapNearest, gltfFilterLinearMipmapLinear:
			result.MinFilter = wgpu.FilterModeLinear
		}
		switch *s.MinFilter {
		case gltfFilterNearestMipmapNearest, gltfFilterLinearMipmapNearest:
			result.MipmapFilter = wgpu.MipmapFilterModeNearest
		case gltfFilterNearestMipmapLinear, gltfFilterLinearMipmapLinear:
			result.MipmapFilter = wgpu.MipmapFilterModeLinear
		case gltfFilterNearest, gltfFilterLinear:
			result.MipmapFilter = wgpu.MipmapFilterModeNearest
		}
	}

	if s.WrapS != nil {
		result.AddressModeU = gltfWrapToAddressMode(*s.WrapS)
	}
	if s.WrapT != nil {
		result.AddressModeV = gltfWrapToAddressMode(*s.WrapT)
	}

	return &result
}

// gltfWrapToAddressMode converts a glTF wrap mode constant to a wgpu AddressMode.
func gltfWrapToAddressMode(wrap int) wgpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
