package coordinator

import (
	"context"
	"log/slog"

	"github.com/Carmen-Shannon/oxyview/engine/light"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/Carmen-Shannon/oxyview/engine/texture"
)

// CoordinatorBuilderOption is a function that configures a Coordinator during construction.
type CoordinatorBuilderOption func(*coordinatorImpl)

// WithLogger sets the logger for load and environment diagnostics.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the logger option
func WithLogger(logger *slog.Logger) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContext sets the context image reads and the default scene action run under.
func WithContext(ctx context.Context) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.ctx = ctx
	}
}

// WithSceneLoader sets the scene loader path sources are requested through. The default is
// the process-wide loader.SharedScenes.
//
// Parameters:
//   - scenes: the async scene loader
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the scene loader option
func WithSceneLoader(scenes *resource.AsyncLoader[resource.Locator, model.Scene]) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.scenes = scenes
	}
}

// WithSceneAction sets the load action run for path sources. The default decodes with
// the process-wide loader.Loader.
func WithSceneAction(action resource.LoadAction[resource.Locator, model.Scene]) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.action = action
	}
}

// WithImageCache sets the cache skybox and IBL images are read through. The default is
// texture.SharedCache.
func WithImageCache(cache *texture.Cache) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.images = cache
	}
}

// WithWatcher enables hot reload: when the file behind a path source changes, the cached
// scene is forgotten and the source is loaded again.
//
// Parameters:
//   - watcher: the file watcher to register with
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the watcher option
func WithWatcher(watcher *resource.Watcher) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.watcher = watcher
	}
}

// WithRenderer sets the renderer each frame is passed to.
func WithRenderer(renderer Renderer) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.renderer = renderer
	}
}

// WithNormalizationFudge multiplies the normalization scale. 1 fits the content's longest
// axis exactly to a span of 2; smaller values leave a margin.
//
// Parameters:
//   - fudge: the multiplier, ignored unless positive
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the fudge option
func WithNormalizationFudge(fudge float32) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		if fudge > 0 {
			c.fudge = fudge
		}
	}
}

// WithKeyLight replaces the default directional key light.
func WithKeyLight(l light.Light) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		if l != nil {
			c.keyLight = l
		}
	}
}

// WithViewport sets the initial frame size used by the attached frame callback.
func WithViewport(width, height int) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.viewport = [2]int{max(width, 1), max(height, 1)}
	}
}

// WithDebugStatsHandler sets a function called whenever the debug stats flag changes.
func WithDebugStatsHandler(fn func(show bool)) CoordinatorBuilderOption {
	return func(c *coordinatorImpl) {
		c.onDebugStats = fn
	}
}
