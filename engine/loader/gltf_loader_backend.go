package loader

import (
	"context"
	"log/slog"

	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct {
	importer gltfImporter
	isGLB    bool
}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB files.
// It delegates to the gltfImporter for parsing and extraction.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Parameters:
//   - isGLB: true for the binary container; GLB magic is also detected from content
//   - logger: receives texture warnings
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend(isGLB bool, logger *slog.Logger) gltfLoaderBackend {
	return &gltfLoaderBackendImpl{
		importer: newGLTFImporter(logger),
		isGLB:    isGLB,
	}
}

func (b *gltfLoaderBackendImpl) Decode(ctx context.Context, loc resource.Locator, data []byte) (*model.Scene, error) {
	return b.importer.Import(ctx, loc, data, b.isGLB)
}
