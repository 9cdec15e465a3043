package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// Common errors returned by the parser
var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
	errAccessorBounds     = errors.New("accessor exceeds buffer bounds")
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	ctx            context.Context
	locator        resource.Locator
	document       *gltfDocument
	glbBinaryChunk []byte
}

// gltfParser defines the interface for parsing glTF/GLB data.
// It handles JSON deserialization, buffer resolution, and typed accessor reads.
// This is internal to the loader package.
type gltfParser interface {
	// Parse parses glTF JSON or GLB binary data.
	//
	// Parameters:
	//   - data: the file contents
	//   - isGLB: true if the data is in GLB format
	//
	// Returns:
	//   - error: error if parsing fails
	Parse(data []byte, isGLB bool) error

	// Document returns the parsed glTF document.
	// Returns nil if Parse has not been called successfully.
	//
	// Returns:
	//   - *gltfDocument: the parsed document or nil
	Document() *gltfDocument

	// Locator returns the locator the document was loaded from.
	// Used for resolving relative URIs to external resources.
	//
	// Returns:
	//   - resource.Locator: the document locator
	Locator() resource.Locator

	// Context returns the context bounding external resource reads.
	Context() context.Context

	// ReadAccessorData reads the raw, tightly packed bytes of an accessor with sparse
	// substitutions applied.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []byte: the raw data
	//   - error: error if reading fails
	ReadAccessorData(accessorIndex int) ([]byte, error)

	// ReadVec2Accessor reads an accessor as vec2 float data. Normalized integer
	// components are converted to [0, 1] or [-1, 1].
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][2]float32: the vec2 data
	//   - error: error if reading fails
	ReadVec2Accessor(accessorIndex int) ([][2]float32, error)

	// ReadVec3Accessor reads an accessor as vec3 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][3]float32: the vec3 data
	//   - error: error if reading fails
	ReadVec3Accessor(accessorIndex int) ([][3]float32, error)

	// ReadVec4Accessor reads an accessor as vec4 float data. VEC3 accessors are widened
	// with a fourth component of 1.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]float32: the vec4 data
	//   - error: error if reading fails
	ReadVec4Accessor(accessorIndex int) ([][4]float32, error)

	// ReadIndicesAccessor reads an accessor as index data (uint32).
	// Handles UNSIGNED_BYTE, UNSIGNED_SHORT, and UNSIGNED_INT component types.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []uint32: the index data (converted to uint32)
	//   - error: error if reading fails
	ReadIndicesAccessor(accessorIndex int) ([]uint32, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser for data read from loc.
//
// Parameters:
//   - ctx: bounds reads of external buffers
//   - loc: the document locator, used to resolve relative buffer and image URIs
//
// Returns:
//   - gltfParser: a new parser instance
func newGLTFParser(ctx context.Context, loc resource.Locator) gltfParser {
	if ctx == nil {
		ctx = context.Background()
	}
	return &gltfParserImpl{ctx: ctx, locator: loc}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) Locator() resource.Locator {
	return p.locator
}

func (p *gltfParserImpl) Context() context.Context {
	return p.ctx
}

func (p *gltfParserImpl) Parse(data []byte, isGLB bool) error {
	if isGLB || matchGLB(data) {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

// parseGLTF parses a glTF JSON file.
func (p *gltfParserImpl) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}

	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}

	if err := p.loadBuffers(&doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}

	p.document = &doc
	return nil
}

// parseGLB parses a GLB binary file.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParserImpl) parseGLB(data []byte) error {
	if len(data) < 12 {
		return errors.New("GLB file too small")
	}

	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read GLB header: %w", err)
	}

	if header.Magic != gltfGLBMagic {
		return errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return errInvalidGLBVersion
	}

	var jsonData []byte
	var binData []byte

	for {
		var chunkHeader gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunkHeader); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunkHeader.ChunkLength) > int64(r.Len()) {
			return fmt.Errorf("chunk length %d exceeds remaining %d bytes", chunkHeader.ChunkLength, r.Len())
		}

		chunkData := make([]byte, chunkHeader.ChunkLength)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return fmt.Errorf("failed to read chunk data: %w", err)
		}

		switch chunkHeader.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = chunkData
		case gltfGLBChunkBIN:
			binData = chunkData
		}
	}

	if jsonData == nil {
		return errMissingJSONChunk
	}

	p.glbBinaryChunk = binData
	return p.parseGLTF(jsonData)
}

// loadBuffers loads all buffer data (from URIs, embedded data, or GLB binary chunk).
func (p *gltfParserImpl) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		if buf.URI == "" {
			if i == 0 && p.glbBinaryChunk != nil {
				buf.Data = p.glbBinaryChunk
				if len(buf.Data) < buf.ByteLength {
					return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
				}
				continue
			}
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		}

		data, err := p.loadBufferURI(buf.URI)
		if err != nil {
			return fmt.Errorf("buffer %d: %w", i, err)
		}
		buf.Data = data

		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}

	return nil
}

// loadBufferURI loads buffer data from a data: URI or a locator relative to the document.
func (p *gltfParserImpl) loadBufferURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		data, _, err := gltfDecodeDataURI(uri)
		return data, err
	}

	data, err := resource.ReadAll(p.ctx, p.locator.Sibling(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer %q: %w", uri, err)
	}
	return data, nil
}

// gltfDecodeDataURI decodes a base64 data URI into raw bytes and extracts the MIME type.
// Format: data:[<mediatype>][;base64],<data>
func gltfDecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", errInvalidBufferURI
	}

	header, encoded, ok := strings.Cut(uri[5:], ",")
	if !ok {
		return nil, "", errInvalidBufferURI
	}

	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("unsupported data URI encoding: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}

	return data, mimeType, nil
}

// --- Accessor Data Reading ---

func (p *gltfParserImpl) accessor(accessorIndex int) (*gltfAccessor, error) {
	if p.document == nil {
		return nil, errors.New("no document loaded")
	}
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", accessorIndex)
	}
	return &p.document.Accessors[accessorIndex], nil
}

// bufferViewBytes returns the bytes of a buffer view starting at offset.
func (p *gltfParserImpl) bufferViewBytes(viewIndex, offset int) ([]byte, *gltfBufferView, error) {
	doc := p.document
	if viewIndex < 0 || viewIndex >= len(doc.BufferViews) {
		return nil, nil, fmt.Errorf("bufferView index %d out of range", viewIndex)
	}
	bv := &doc.BufferViews[viewIndex]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}
	buf := doc.Buffers[bv.Buffer].Data
	start, end := bv.ByteOffset+offset, bv.ByteOffset+bv.ByteLength
	if start < 0 || end > len(buf) || start > end {
		return nil, nil, errAccessorBounds
	}
	return buf[start:end], bv, nil
}

func (p *gltfParserImpl) ReadAccessorData(accessorIndex int) ([]byte, error) {
	acc, err := p.accessor(accessorIndex)
	if err != nil {
		return nil, err
	}

	componentSize := gltfComponentTypeSize(acc.ComponentType)
	componentCount := gltfAccessorTypeComponentCount(acc.Type)
	elementSize := componentSize * componentCount
	if elementSize == 0 || acc.Count < 0 {
		return nil, fmt.Errorf("accessor %d has invalid type %s/%d", accessorIndex, acc.Type, acc.ComponentType)
	}

	result := make([]byte, acc.Count*elementSize)

	// An accessor without a bufferView is all zeros, possibly patched by sparse values.
	if acc.BufferView != nil {
		view, bv, err := p.bufferViewBytes(*acc.BufferView, acc.ByteOffset)
		if err != nil {
			return nil, fmt.Errorf("accessor %d: %w", accessorIndex, err)
		}
		stride := elementSize
		if bv.ByteStride != nil && *bv.ByteStride > 0 {
			stride = *bv.ByteStride
		}
		if acc.Count > 0 && (acc.Count-1)*stride+elementSize > len(view) {
			return nil, fmt.Errorf("accessor %d: %w", accessorIndex, errAccessorBounds)
		}
		for i := 0; i < acc.Count; i++ {
			copy(result[i*elementSize:(i+1)*elementSize], view[i*stride:i*stride+elementSize])
		}
	}

	if acc.Sparse != nil {
		if err := p.applySparse(acc, result, elementSize); err != nil {
			return nil, fmt.Errorf("accessor %d sparse: %w", accessorIndex, err)
		}
	}

	return result, nil
}

// applySparse overwrites the elements named by the sparse index array.
func (p *gltfParserImpl) applySparse(acc *gltfAccessor, dst []byte, elementSize int) error {
	sp := acc.Sparse
	idxSize := gltfComponentTypeSize(sp.Indices.ComponentType)
	if idxSize == 0 || idxSize == 1 && sp.Indices.ComponentType != gltfComponentTypeUnsignedByte {
		return fmt.Errorf("invalid sparse index component type %d", sp.Indices.ComponentType)
	}
	indices, _, err := p.bufferViewBytes(sp.Indices.BufferView, sp.Indices.ByteOffset)
	if err != nil {
		return err
	}
	values, _, err := p.bufferViewBytes(sp.Values.BufferView, sp.Values.ByteOffset)
	if err != nil {
		return err
	}
	if len(indices) < sp.Count*idxSize || len(values) < sp.Count*elementSize {
		return errAccessorBounds
	}

	for i := 0; i < sp.Count; i++ {
		var target int
		switch sp.Indices.ComponentType {
		case gltfComponentTypeUnsignedByte:
			target = int(indices[i])
		case gltfComponentTypeUnsignedShort:
			target = int(binary.LittleEndian.Uint16(indices[i*2:]))
		default:
			target = int(binary.LittleEndian.Uint32(indices[i*4:]))
		}
		if target < 0 || target >= acc.Count {
			return fmt.Errorf("sparse index %d out of range", target)
		}
		copy(dst[target*elementSize:(target+1)*elementSize], values[i*elementSize:(i+1)*elementSize])
	}
	return nil
}

// readFloats reads an accessor as float components, converting normalized integers.
func (p *gltfParserImpl) readFloats(accessorIndex int) ([]float32, *gltfAccessor, error) {
	acc, err := p.accessor(accessorIndex)
	if err != nil {
		return nil, nil, err
	}
	if acc.ComponentType != gltfComponentTypeFloat && !acc.Normalized {
		return nil, nil, fmt.Errorf("accessor is neither FLOAT nor normalized: type=%s, componentType=%d", acc.Type, acc.ComponentType)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, nil, err
	}

	n := acc.Count * gltfAccessorTypeComponentCount(acc.Type)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		switch acc.ComponentType {
		case gltfComponentTypeFloat:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		case gltfComponentTypeUnsignedByte:
			out[i] = float32(data[i]) / 255
		case gltfComponentTypeByte:
			out[i] = max(float32(int8(data[i]))/127, -1)
		case gltfComponentTypeUnsignedShort:
			out[i] = float32(binary.LittleEndian.Uint16(data[i*2:])) / 65535
		case gltfComponentTypeShort:
			out[i] = max(float32(int16(binary.LittleEndian.Uint16(data[i*2:])))/32767, -1)
		default:
			return nil, nil, fmt.Errorf("unsupported normalized component type: %d", acc.ComponentType)
		}
	}
	return out, acc, nil
}

func (p *gltfParserImpl) ReadVec2Accessor(accessorIndex int) ([][2]float32, error) {
	flat, acc, err := p.readFloats(accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeVec2 {
		return nil, fmt.Errorf("accessor is not VEC2: type=%s", acc.Type)
	}

	result := make([][2]float32, acc.Count)
	for i := range result {
		copy(result[i][:], flat[i*2:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec3Accessor(accessorIndex int) ([][3]float32, error) {
	flat, acc, err := p.readFloats(accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeVec3 {
		return nil, fmt.Errorf("accessor is not VEC3: type=%s", acc.Type)
	}

	result := make([][3]float32, acc.Count)
	for i := range result {
		copy(result[i][:], flat[i*3:])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec4Accessor(accessorIndex int) ([][4]float32, error) {
	flat, acc, err := p.readFloats(accessorIndex)
	if err != nil {
		return nil, err
	}

	result := make([][4]float32, acc.Count)
	switch acc.Type {
	case gltfAccessorTypeVec4:
		for i := range result {
			copy(result[i][:], flat[i*4:])
		}
	case gltfAccessorTypeVec3:
		for i := range result {
			result[i] = [4]float32{flat[i*3], flat[i*3+1], flat[i*3+2], 1}
		}
	default:
		return nil, fmt.Errorf("accessor is not VEC3/VEC4: type=%s", acc.Type)
	}
	return result, nil
}

func (p *gltfParserImpl) ReadIndicesAccessor(accessorIndex int) ([]uint32, error) {
	acc, err := p.accessor(accessorIndex)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor is not SCALAR: type=%s", acc.Type)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, err
	}

	result := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range result {
			result[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := range result {
			result[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range result {
			result[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}

	return result, nil
}

// --- Helper Functions ---

// gltfComponentTypeSize returns the byte size of a component type.
func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorTypeComponentCount returns the number of components for an accessor type.
func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4, gltfAccessorTypeMat2:
		return 4
	case gltfAccessorTypeMat3:
		return 9
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
