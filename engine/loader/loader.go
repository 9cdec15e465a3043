// Package loader turns asset bytes into model.Scene values. Decoders are picked by locator
// extension with a content-sniffing fallback, and every failure is reported as a *LoadError.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// loader is the implementation of the Loader interface.
type loader struct {
	logger  *slog.Logger
	timeout time.Duration

	backends map[format]loaderBackend
}

// Loader decodes scene assets. It holds no cache of its own: de-duplication and sharing
// happen in the AsyncLoader that runs its Action.
type Loader interface {
	// Decode reads the asset at loc and decodes it. The decoder is chosen by extension
	// (.gltf/.glb, .obj); when that decoder fails, or the extension is unknown, the
	// content is sniffed and the matching decoder tried, ending with the scene-file decoder.
	//
	// Parameters:
	//   - ctx: bounds every read, including companion files
	//   - loc: the asset locator
	//
	// Returns:
	//   - *model.Scene: the decoded scene
	//   - error: a *LoadError of kind KindNotFound or KindDecode
	Decode(ctx context.Context, loc resource.Locator) (*model.Scene, error)

	// DecodeBytes decodes already-read asset bytes. loc is used for decoder choice, naming
	// and resolving relative references.
	//
	// Parameters:
	//   - ctx: bounds reads of companion files
	//   - loc: the asset locator
	//   - data: the asset bytes
	//
	// Returns:
	//   - *model.Scene: the decoded scene
	//   - error: a *LoadError
	DecodeBytes(ctx context.Context, loc resource.Locator, data []byte) (*model.Scene, error)

	// Action adapts Decode to an AsyncLoader load action. Panics inside a decoder are
	// recovered and rejected as KindDecode.
	//
	// Parameters:
	//   - ctx: the context every decode started by the action runs under
	//
	// Returns:
	//   - resource.LoadAction[resource.Locator, model.Scene]: the action
	Action(ctx context.Context) resource.LoadAction[resource.Locator, model.Scene]
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the glTF, OBJ and scene-file decoders installed.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the configured loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		logger: slog.Default(),
	}
	for _, option := range options {
		option(l)
	}

	l.backends = map[format]loaderBackend{
		formatGLTF:      newGLTFLoaderBackend(false, l.logger),
		formatGLB:       newGLTFLoaderBackend(true, l.logger),
		formatOBJ:       newOBJLoaderBackend(l.logger),
		formatSceneFile: newSceneFileBackend(),
	}
	return l
}

func (l *loader) Decode(ctx context.Context, loc resource.Locator) (*model.Scene, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	data, err := resource.ReadAll(ctx, loc)
	if err != nil {
		return nil, Classify(loc, err)
	}
	return l.DecodeBytes(ctx, loc, data)
}

func (l *loader) DecodeBytes(ctx context.Context, loc resource.Locator, data []byte) (*model.Scene, error) {
	start := time.Now()

	var errs []error
	for _, f := range l.candidates(loc, data) {
		scene, err := l.backends[f].Decode(ctx, loc, data)
		if err == nil {
			meshes, tris := scene.Stats()
			l.logger.Debug("scene decoded", "locator", loc, "format", f, "meshes", meshes, "triangles", tris, "elapsed", time.Since(start))
			return scene, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", f, err))
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no decoder recognises this content"))
	}
	return nil, &LoadError{Kind: KindDecode, Locator: loc, Err: errors.Join(errs...)}
}

// candidates lists the decoders to try in order, without repeats.
func (l *loader) candidates(loc resource.Locator, data []byte) []format {
	var out []format
	add := func(f format) {
		if f == formatUnknown {
			return
		}
		for _, have := range out {
			if have == f {
				return
			}
		}
		out = append(out, f)
	}

	add(formatForExt(loc.Ext()))
	add(sniff(data))
	add(formatSceneFile)
	return out
}

func (l *loader) Action(ctx context.Context) resource.LoadAction[resource.Locator, model.Scene] {
	if ctx == nil {
		ctx = context.Background()
	}
	return func(loc resource.Locator, done resource.Completion[model.Scene]) {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("scene decoder panicked", "locator", loc, "panic", r)
				done.Reject(&LoadError{Kind: KindDecode, Locator: loc, Err: fmt.Errorf("%w: %v", resource.ErrActionPanicked, r)})
			}
		}()

		scene, err := l.Decode(ctx, loc)
		if err != nil {
			l.logger.Warn("scene load failed", "locator", loc, "err", err)
			done.Reject(err)
			return
		}
		done.Resolve(scene)
	}
}

var (
	defaultLoader     Loader
	defaultLoaderOnce sync.Once

	sharedScenes     *resource.AsyncLoader[resource.Locator, model.Scene]
	sharedScenesOnce sync.Once
)

// Default returns the process-wide Loader.
func Default() Loader {
	defaultLoaderOnce.Do(func() {
		defaultLoader = NewLoader()
	})
	return defaultLoader
}

// Decode decodes loc with the process-wide Loader.
//
// Parameters:
//   - ctx: bounds every read
//   - loc: the asset locator
//
// Returns:
//   - *model.Scene: the decoded scene
//   - error: a *LoadError
func Decode(ctx context.Context, loc resource.Locator) (*model.Scene, error) {
	return Default().Decode(ctx, loc)
}

// SceneAction is the process-wide Loader's action for scene AsyncLoaders.
func SceneAction(ctx context.Context) resource.LoadAction[resource.Locator, model.Scene] {
	return Default().Action(ctx)
}

// SharedScenes returns the process-wide scene AsyncLoader, keyed by locator and run on the
// default background executor. Every coordinator shares it, so two views of the same asset
// trigger a single decode.
func SharedScenes() *resource.AsyncLoader[resource.Locator, model.Scene] {
	sharedScenesOnce.Do(func() {
		sharedScenes = resource.NewAsyncLoader[resource.Locator, model.Scene](resource.WithLoaderName("scenes"))
	})
	return sharedScenes
}
