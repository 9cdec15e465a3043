// Package coordinator ties asset loads to render state. A Coordinator diffs declarative
// parameters against what it last applied, loads scenes through the shared scene loader,
// applies completions on the main thread and produces per-frame camera and content transforms.
package coordinator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/camera"
	"github.com/Carmen-Shannon/oxyview/engine/light"
	"github.com/Carmen-Shannon/oxyview/engine/loader"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/Carmen-Shannon/oxyview/engine/texture"
)

// loadHandler is one registered load observer.
type loadHandler struct {
	id int
	fn func(LoadState)
}

// coordinatorImpl is the implementation of the Coordinator interface. Every field is owned by
// the main thread; background completions re-enter through the dispatcher.
type coordinatorImpl struct {
	ctx    context.Context
	logger *slog.Logger

	dispatcher common.Dispatcher
	scenes     *resource.AsyncLoader[resource.Locator, model.Scene]
	action     resource.LoadAction[resource.Locator, model.Scene]
	images     *texture.Cache
	watcher    *resource.Watcher
	renderer   Renderer
	fudge      float32

	// source state
	hasSource bool
	source    SceneSource
	state     State
	pending   *resource.Future[model.Scene]
	unwatch   func()

	// content state
	scene   *model.Scene
	content *model.Node
	norm    float32
	center  [3]float32

	// declarative state
	cam          camera.Fixed
	transform    model.Transform
	iblSet       bool
	ibl          *light.IBLSettings
	skyboxSet    bool
	skybox       *resource.Locator
	environment  *light.Environment
	keyLight     light.Light
	debugStats   bool
	viewport     [2]int
	frame        common.FrameHandle
	handlers     []loadHandler
	nextHandler  int
	closed       bool
	closeOnce    sync.Once
	onDebugStats func(bool)
}

// Coordinator owns one asset slot and the render state derived from it. All methods must be
// called on the main thread.
type Coordinator interface {
	// Update applies a full set of declarative parameters in a fixed order: source, camera,
	// transform, IBL, skybox, debug stats. Unchanged values are no-ops.
	//
	// Parameters:
	//   - params: the parameters for this update cycle
	Update(params Params)

	// SetSource switches the displayed asset. A source equal to the current one is a no-op.
	// Reference sources apply immediately; path sources load through the shared scene loader
	// and move the coordinator to StateLoading; a path without a locator fails immediately.
	//
	// Parameters:
	//   - source: the new source
	SetSource(source SceneSource)

	// SetCamera stores a snapshot of cam. It is independent of the load state.
	SetCamera(cam camera.Camera)

	// SetTransform replaces the content transform. It applies whether or not content is loaded.
	SetTransform(t model.Transform)

	// SetIBL switches the image-based lighting panorama. Failures clear the lighting to the
	// default and are never reported to load handlers.
	SetIBL(settings *light.IBLSettings)

	// SetSkybox switches the background panorama. Failures clear the background.
	SetSkybox(loc *resource.Locator)

	// SetShowDebugStats toggles frame statistics.
	SetShowDebugStats(show bool)

	// SetViewport sets the frame size used by the attached frame callback.
	SetViewport(width, height int)

	// OnLoad registers fn to receive every load outcome from now on.
	//
	// Parameters:
	//   - fn: the handler
	//
	// Returns:
	//   - func(): removes the handler
	OnLoad(fn func(LoadState)) func()

	// State returns the load state of the asset slot.
	State() State

	// Source returns the source last applied.
	Source() SceneSource

	// Scene returns the scene behind the displayed content, or nil.
	Scene() *model.Scene

	// Content returns the coordinator's own copy of the scene root, or nil.
	Content() *model.Node

	// NormalizationScale returns the uniform scale that fits the content's longest axis to a span of 2.
	NormalizationScale() float32

	// ModelMatrix returns T(translation) * R(rotation) * S(scale * normalization) * T(-center).
	ModelMatrix() common.Mat4

	// Camera returns the current camera snapshot.
	Camera() camera.Fixed

	// Environment returns the current background and lighting.
	Environment() *light.Environment

	// Frame builds the render state for one frame and passes it to the renderer, if any.
	//
	// Parameters:
	//   - viewport: the target size in pixels
	//
	// Returns:
	//   - *FrameState: the frame
	Frame(viewport [2]int) *FrameState

	// Attach registers a per-frame callback that calls Frame with the current viewport.
	//
	// Parameters:
	//   - frames: the scheduler to register with
	Attach(frames common.FrameScheduler)

	// Close detaches the frame callback, discards any pending load and stops file watching.
	// A load still running completes into the shared cache but is not applied.
	Close()
}

var _ Coordinator = &coordinatorImpl{}

// NewCoordinator creates a coordinator that re-enters the main thread through dispatcher.
//
// Parameters:
//   - dispatcher: hops load completions onto the main thread
//   - options: a variadic list of CoordinatorBuilderOption functions
//
// Returns:
//   - Coordinator: the new coordinator in StateEmpty
func NewCoordinator(dispatcher common.Dispatcher, options ...CoordinatorBuilderOption) Coordinator {
	c := &coordinatorImpl{
		logger:      slog.Default(),
		dispatcher:  dispatcher,
		fudge:       1,
		norm:        1,
		cam:         camera.Snapshot(nil),
		transform:   model.IdentityTransform(),
		environment: &light.Environment{Sampler: common.EnvironmentSampler()},
		keyLight:    light.NewKeyLight(),
		viewport:    [2]int{800, 600},
	}
	for _, option := range options {
		option(c)
	}

	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.scenes == nil {
		c.scenes = loader.SharedScenes()
	}
	if c.action == nil {
		c.action = loader.SceneAction(c.ctx)
	}
	if c.images == nil {
		c.images = texture.SharedCache()
	}
	return c
}

func (c *coordinatorImpl) Update(params Params) {
	c.SetSource(params.Source)
	c.SetCamera(params.Camera)
	c.SetTransform(params.Transform)
	c.SetIBL(params.IBL)
	c.SetSkybox(params.Skybox)
	c.SetShowDebugStats(params.ShowDebugStats)
}

func (c *coordinatorImpl) SetSource(source SceneSource) {
	if c.closed {
		return
	}
	if c.hasSource && c.source.Equal(source) {
		return
	}
	c.hasSource = true
	c.source = source
	c.dropPending()
	c.logger.Debug("scene source changed", "source", source)

	if source.IsReference() {
		scene := source.Scene()
		if scene == nil {
			c.fail(source, &loader.LoadError{Kind: loader.KindNotFound, Err: loader.ErrNotFound})
			return
		}
		c.apply(source, scene)
		return
	}

	loc, ok := source.Locator()
	if !ok || loc == "" {
		c.fail(source, &loader.LoadError{Kind: loader.KindNotFound, Locator: loc, Err: resource.ErrNotFound})
		return
	}
	c.watch(loc)
	c.request(source, loc)
}

// request starts or joins the load of loc and routes its outcome back to the main thread.
func (c *coordinatorImpl) request(source SceneSource, loc resource.Locator) {
	c.state = StateLoading
	future := c.scenes.Request(loc, c.action)
	c.pending = future
	future.Observe(func(scene *model.Scene, err error) {
		c.dispatcher.RunOnMain(func() {
			c.complete(source, future, scene, err)
		})
	})
}

// complete applies a finished load unless it has been superseded.
func (c *coordinatorImpl) complete(source SceneSource, future *resource.Future[model.Scene], scene *model.Scene, err error) {
	if c.closed || c.pending != future || !c.source.Equal(source) {
		c.logger.Debug("stale scene load discarded", "source", source)
		return
	}
	c.pending = nil
	if err != nil {
		c.fail(source, err)
		return
	}
	c.apply(source, scene)
}

// apply clones the scene root into coordinator-owned content and normalizes it.
func (c *coordinatorImpl) apply(source SceneSource, scene *model.Scene) {
	bounds := scene.Bounds()
	c.scene = scene
	c.content = scene.Root.Clone()
	c.center = bounds.Center()
	c.norm = 1
	if d := bounds.MaxDimension(); d > 0 {
		c.norm = 2 / d * c.fudge
	}
	c.state = StateReady

	meshes, tris := scene.Stats()
	c.logger.Debug("scene applied", "source", source, "meshes", meshes, "triangles", tris, "scale", c.norm)
	c.notify(LoadState{Source: source, State: StateReady, Scene: scene})
}

// fail records a primary load failure. Existing content stays in place.
func (c *coordinatorImpl) fail(source SceneSource, err error) {
	if loc, ok := source.Locator(); ok {
		err = loader.Classify(loc, err)
	}
	c.state = StateFailed
	c.logger.Warn("scene load failed", "source", source, "err", err)
	c.notify(LoadState{Source: source, State: StateFailed, Err: err})
}

func (c *coordinatorImpl) notify(ls LoadState) {
	for _, h := range slices.Clone(c.handlers) {
		h.fn(ls)
	}
}

// dropPending stops observing the current load and stops watching its file.
func (c *coordinatorImpl) dropPending() {
	if c.pending != nil {
		c.pending.Detach()
		c.pending = nil
	}
	if c.unwatch != nil {
		c.unwatch()
		c.unwatch = nil
	}
}

// watch reloads the source when its local file changes.
func (c *coordinatorImpl) watch(loc resource.Locator) {
	if c.watcher == nil {
		return
	}
	source := c.source
	cancel, err := c.watcher.Watch(loc, func(resource.Locator) {
		c.dispatcher.RunOnMain(func() {
			if c.closed || !c.source.Equal(source) {
				return
			}
			c.logger.Info("scene file changed, reloading", "locator", loc)
			c.scenes.Forget(loc)
			if c.pending != nil {
				c.pending.Detach()
			}
			c.request(source, loc)
		})
	})
	if err != nil {
		c.logger.Debug("scene not watched", "locator", loc, "err", err)
		return
	}
	c.unwatch = cancel
}

func (c *coordinatorImpl) SetCamera(cam camera.Camera) {
	if cam == nil {
		return
	}
	c.cam = camera.Snapshot(cam)
}

func (c *coordinatorImpl) SetTransform(t model.Transform) {
	if t == (model.Transform{}) {
		t = model.IdentityTransform()
	}
	c.transform = t
}

func (c *coordinatorImpl) SetIBL(settings *light.IBLSettings) {
	if c.iblSet && c.ibl.Equal(settings) {
		return
	}
	c.iblSet = true
	c.ibl = nil
	if settings != nil {
		s := *settings
		c.ibl = &s
	}

	env := *c.environment
	env.IBL = nil
	if c.ibl != nil {
		ibl, err := light.LoadIBL(c.ctx, c.images, *c.ibl)
		if err != nil {
			c.logger.Debug("ibl unavailable, using default lighting", "locator", c.ibl.Locator, "err", err)
		} else {
			env.IBL = ibl
		}
	}
	c.environment = &env
}

func (c *coordinatorImpl) SetSkybox(loc *resource.Locator) {
	if c.skyboxSet && equalLocator(c.skybox, loc) {
		return
	}
	c.skyboxSet = true
	c.skybox = nil
	if loc != nil {
		l := *loc
		c.skybox = &l
	}

	env := *c.environment
	env.Skybox = nil
	if c.skybox != nil {
		img, err := light.LoadSkybox(c.ctx, c.images, *c.skybox)
		if err != nil {
			c.logger.Debug("skybox unavailable, using default background", "locator", *c.skybox, "err", err)
		} else {
			env.Skybox = img
		}
	}
	c.environment = &env
}

func equalLocator(a, b *resource.Locator) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c *coordinatorImpl) SetShowDebugStats(show bool) {
	if c.debugStats == show {
		return
	}
	c.debugStats = show
	if c.onDebugStats != nil {
		c.onDebugStats(show)
	}
}

func (c *coordinatorImpl) SetViewport(width, height int) {
	c.viewport = [2]int{max(width, 1), max(height, 1)}
}

func (c *coordinatorImpl) OnLoad(fn func(LoadState)) func() {
	id := c.nextHandler
	c.nextHandler++
	c.handlers = append(c.handlers, loadHandler{id: id, fn: fn})
	return func() {
		c.handlers = slices.DeleteFunc(c.handlers, func(h loadHandler) bool { return h.id == id })
	}
}

func (c *coordinatorImpl) State() State {
	return c.state
}

func (c *coordinatorImpl) Source() SceneSource {
	return c.source
}

func (c *coordinatorImpl) Scene() *model.Scene {
	return c.scene
}

func (c *coordinatorImpl) Content() *model.Node {
	return c.content
}

func (c *coordinatorImpl) NormalizationScale() float32 {
	return c.norm
}

func (c *coordinatorImpl) ModelMatrix() common.Mat4 {
	t := c.transform
	s := [3]float32{t.Scale[0] * c.norm, t.Scale[1] * c.norm, t.Scale[2] * c.norm}
	trs := common.ComposeTRS(t.Translation, t.Rotation, s)
	return common.MulMat4(trs, common.Translation(-c.center[0], -c.center[1], -c.center[2]))
}

func (c *coordinatorImpl) Camera() camera.Fixed {
	return c.cam
}

func (c *coordinatorImpl) Environment() *light.Environment {
	return c.environment
}

func (c *coordinatorImpl) Frame(viewport [2]int) *FrameState {
	aspect := float32(1)
	if viewport[1] > 0 {
		aspect = float32(viewport[0]) / float32(viewport[1])
	}
	fs := &FrameState{
		Viewport:       viewport,
		View:           c.cam.ViewMatrix(),
		Projection:     c.cam.ProjectionMatrix(aspect),
		Model:          c.ModelMatrix(),
		CameraPosition: c.cam.Position(),
		Content:        c.content,
		Scene:          c.scene,
		Environment:    c.environment,
		KeyLight:       c.keyLight,
		State:          c.state,
		ShowDebugStats: c.debugStats,
	}
	if c.renderer != nil {
		c.renderer.Render(fs)
	}
	return fs
}

func (c *coordinatorImpl) Attach(frames common.FrameScheduler) {
	if c.frame != nil {
		c.frame.Remove()
		c.frame = nil
	}
	if frames == nil || c.closed {
		return
	}
	c.frame = frames.OnFrame(true, func(time.Duration) {
		c.Frame(c.viewport)
	})
}

func (c *coordinatorImpl) Close() {
	c.closeOnce.Do(func() {
		c.closed = true
		if c.frame != nil {
			c.frame.Remove()
			c.frame = nil
		}
		c.dropPending()
		c.handlers = nil
	})
}
