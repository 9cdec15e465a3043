package coordinator

import (
	"fmt"

	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// SceneSource names the asset a coordinator displays: either a scene the caller already
// holds or a locator to load. The zero value is a path source with no locator.
type SceneSource struct {
	scene   *model.Scene
	loc     resource.Locator
	isRef   bool
	present bool
}

// SourceReference wraps a caller-owned scene. Reference sources bypass the scene cache.
//
// Parameters:
//   - scene: the scene to display
//
// Returns:
//   - SceneSource: the source
func SourceReference(scene *model.Scene) SceneSource {
	return SceneSource{scene: scene, isRef: true}
}

// SourcePath names an asset to load through the shared scene loader.
//
// Parameters:
//   - loc: the asset locator
//
// Returns:
//   - SceneSource: the source
func SourcePath(loc resource.Locator) SceneSource {
	return SceneSource{loc: loc, present: true}
}

// SourceNone is a path source without a locator. Applying it fails immediately with NotFound.
func SourceNone() SceneSource {
	return SceneSource{}
}

// Equal reports whether two sources name the same asset. Path sources compare by locator,
// with two absent locators equal. Reference sources compare by scene identity, so two
// distinct scenes with identical content are not equal. A reference never equals a path.
func (s SceneSource) Equal(other SceneSource) bool {
	if s.isRef != other.isRef {
		return false
	}
	if s.isRef {
		return s.scene == other.scene
	}
	return s.present == other.present && s.loc == other.loc
}

// IsReference reports whether the source wraps an in-memory scene.
func (s SceneSource) IsReference() bool {
	return s.isRef
}

// Scene returns the wrapped scene of a reference source.
func (s SceneSource) Scene() *model.Scene {
	return s.scene
}

// Locator returns the locator of a path source and whether one is present.
func (s SceneSource) Locator() (resource.Locator, bool) {
	return s.loc, s.present
}

// String implements fmt.Stringer.
func (s SceneSource) String() string {
	switch {
	case s.isRef && s.scene == nil:
		return "reference(nil)"
	case s.isRef:
		return fmt.Sprintf("reference(%s@%p)", s.scene.Name, s.scene)
	case s.present:
		return fmt.Sprintf("path(%s)", s.loc)
	default:
		return "path(none)"
	}
}
