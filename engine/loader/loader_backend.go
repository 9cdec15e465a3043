package loader

import (
	"context"

	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// loaderBackend decodes one file format into a scene.
// Concrete implementations (gltfLoaderBackend, objLoaderBackend, sceneFileBackend) handle format-specific details.
type loaderBackend interface {
	// Decode builds a scene from the complete contents of an asset.
	//
	// Parameters:
	//   - ctx: bounds reads of any companion files (external buffers, material libraries)
	//   - loc: the asset locator, used for naming and for resolving relative references
	//   - data: the asset bytes
	//
	// Returns:
	//   - *model.Scene: the decoded scene
	//   - error: error if decoding fails
	Decode(ctx context.Context, loc resource.Locator, data []byte) (*model.Scene, error)
}
