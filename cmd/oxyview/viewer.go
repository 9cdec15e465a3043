package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/config"
	"github.com/Carmen-Shannon/oxyview/engine"
	"github.com/Carmen-Shannon/oxyview/engine/camera"
	"github.com/Carmen-Shannon/oxyview/engine/coordinator"
	"github.com/Carmen-Shannon/oxyview/engine/light"
	"github.com/Carmen-Shannon/oxyview/engine/loader"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/renderer"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/Carmen-Shannon/oxyview/engine/window"
)

// errNoModel is returned when neither the config file nor the flags name a model.
var errNoModel = errors.New("oxyview: no model given (use -model)")

// idlePoll is how long the headless wait sleeps when the main queue is empty.
const idlePoll = 5 * time.Millisecond

// stack is the set of components shared by both viewer modes.
type stack struct {
	executor resource.Executor
	scenes   *resource.AsyncLoader[resource.Locator, model.Scene]
	action   resource.LoadAction[resource.Locator, model.Scene]
	orbit    camera.OrbitControl
}

func newStack(ctx context.Context, cfg config.Config, logger *slog.Logger) *stack {
	executor := resource.NewPoolExecutor(cfg.Workers)
	scenes := resource.NewAsyncLoader[resource.Locator, model.Scene](
		resource.WithExecutor(executor),
		resource.WithLoaderName("scenes"),
		resource.WithLoaderLogger(logger),
	)
	l := loader.NewLoader(
		loader.WithLogger(logger),
		loader.WithTimeout(cfg.LoadTimeout()),
	)
	orbit := camera.NewOrbitControl(
		camera.WithYaw(cfg.Orbit.Yaw),
		camera.WithPitch(cfg.Orbit.Pitch),
		camera.WithDistance(cfg.Orbit.Distance),
		camera.WithDistanceBounds(cfg.Orbit.MinDistance, cfg.Orbit.MaxDistance),
		camera.WithSensitivity(cfg.Orbit.Sensitivity),
		camera.WithZoomSensitivity(cfg.Orbit.ZoomSensitivity),
		camera.WithFriction(cfg.Orbit.Friction),
		camera.WithEpsilon(cfg.Orbit.Epsilon),
		camera.WithLogger(logger),
	)
	return &stack{executor: executor, scenes: scenes, action: l.Action(ctx), orbit: orbit}
}

// coordinatorOptions returns the options shared by both modes.
func (s *stack) coordinatorOptions(ctx context.Context, cfg config.Config, logger *slog.Logger, r renderer.Renderer) []coordinator.CoordinatorBuilderOption {
	return []coordinator.CoordinatorBuilderOption{
		coordinator.WithContext(ctx),
		coordinator.WithLogger(logger),
		coordinator.WithSceneLoader(s.scenes),
		coordinator.WithSceneAction(s.action),
		coordinator.WithRenderer(r),
		coordinator.WithNormalizationFudge(cfg.NormalizationFudge),
		coordinator.WithViewport(cfg.Width, cfg.Height),
	}
}

// params builds the declarative coordinator input from cfg.
func params(cfg config.Config, cam camera.Camera, showSkybox, debug bool) coordinator.Params {
	p := coordinator.Params{
		Source:         coordinator.SourcePath(resource.Locator(cfg.Model)),
		Camera:         cam,
		Transform:      model.IdentityTransform(),
		ShowDebugStats: debug,
	}
	if cfg.IBL != "" {
		p.IBL = &light.IBLSettings{Locator: resource.Locator(cfg.IBL), Intensity: cfg.IBLIntensity}
	}
	if cfg.Skybox != "" && showSkybox {
		loc := resource.Locator(cfg.Skybox)
		p.Skybox = &loc
	}
	return p
}

func rendererOptions(cfg config.Config, logger *slog.Logger) []renderer.RendererBuilderOption {
	return []renderer.RendererBuilderOption{
		renderer.WithSupersample(cfg.Supersample),
		renderer.WithExposure(cfg.Exposure),
		renderer.WithLogger(logger),
	}
}

// renderHeadless loads the model, renders a single frame and writes it to cfg.Output. A failed
// load still writes the frame, showing the background, and returns the load error.
func renderHeadless(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Model == "" {
		return errNoModel
	}
	s := newStack(ctx, cfg, logger)

	eng := engine.NewEngine(
		engine.WithLogger(logger),
		engine.WithBackgroundExecutor(s.executor),
		engine.WithProfiling(cfg.Debug),
	)
	r, err := renderer.NewRenderer(renderer.BackendTypeHeadless, nil, rendererOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	defer r.Release()

	coord := coordinator.NewCoordinator(eng, s.coordinatorOptions(ctx, cfg, logger, r)...)
	defer coord.Close()

	var loadErr error
	coord.OnLoad(func(st coordinator.LoadState) {
		if st.State == coordinator.StateFailed {
			loadErr = st.Err
		}
	})
	coord.Update(params(cfg, s.orbit, true, cfg.Debug))

	for coord.State() == coordinator.StateLoading {
		if eng.Step(0) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idlePoll):
		}
	}

	fs := coord.Frame([2]int{cfg.Width, cfg.Height})
	if err := renderer.SaveSnapshot(cfg.Output, r.Image()); err != nil {
		return fmt.Errorf("oxyview: write %s: %w", cfg.Output, err)
	}
	stats := r.Stats()
	logger.Info("snapshot written",
		"path", cfg.Output,
		"state", fs.State,
		"meshes", stats.Meshes,
		"triangles", stats.Triangles,
		"elapsed", stats.Elapsed,
	)
	return loadErr
}

// runWindowed opens a window and runs the viewer until it is closed or ctx ends.
func runWindowed(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Model == "" {
		return errNoModel
	}
	s := newStack(ctx, cfg, logger)

	win, err := window.NewWindow(
		window.WithTitle("oxyview - "+filepath.Base(cfg.Model)),
		window.WithWidth(cfg.Width),
		window.WithHeight(cfg.Height),
	)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithLogger(logger),
		engine.WithBackgroundExecutor(s.executor),
		engine.WithRenderFrameLimit(cfg.FrameLimit),
		engine.WithProfiling(cfg.Debug),
	)

	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win, rendererOptions(cfg, logger)...)
	if err != nil {
		_ = win.Close()
		return err
	}
	defer r.Release()

	opts := s.coordinatorOptions(ctx, cfg, logger, r)
	opts = append(opts, coordinator.WithDebugStatsHandler(func(show bool) {
		if show {
			eng.EnableProfiler()
		} else {
			eng.DisableProfiler()
		}
	}))
	if cfg.Watch {
		watcher, err := resource.NewWatcher(resource.WithWatcherLogger(logger))
		if err != nil {
			logger.Warn("file watching unavailable", "err", err)
		} else {
			defer watcher.Close()
			opts = append(opts, coordinator.WithWatcher(watcher))
		}
	}
	coord := coordinator.NewCoordinator(eng, opts...)
	defer coord.Close()

	v := &windowedViewer{
		cfg:        cfg,
		logger:     logger,
		eng:        eng,
		win:        win,
		renderer:   r,
		coord:      coord,
		orbit:      s.orbit,
		viewport:   [2]int{win.Width(), win.Height()},
		showSkybox: true,
		debug:      cfg.Debug,
	}
	v.attach()
	coord.Update(params(cfg, s.orbit, v.showSkybox, v.debug))

	go func() {
		select {
		case <-ctx.Done():
			eng.Quit()
		case <-eng.Done():
		}
	}()
	eng.Run()
	return nil
}

// windowedViewer routes window input to the orbit control and redraws only when something
// changed, so an untouched viewer lets the window loop sleep.
type windowedViewer struct {
	cfg      config.Config
	logger   *slog.Logger
	eng      engine.Engine
	win      window.Window
	renderer renderer.Renderer
	coord    coordinator.Coordinator
	orbit    camera.OrbitControl

	redraw     common.FrameHandle
	viewport   [2]int
	showSkybox bool
	debug      bool
}

func (v *windowedViewer) attach() {
	v.orbit.Attach(v.eng)
	v.redraw = v.eng.OnFrame(true, v.frame)
	v.coord.OnLoad(func(st coordinator.LoadState) {
		if st.State == coordinator.StateFailed {
			v.logger.Warn("model failed to load", "source", st.Source, "err", st.Err)
		}
		v.invalidate()
	})

	v.win.SetDragCallback(func(button window.MouseButton, dx, dy float32) {
		if button != window.MouseButtonLeft {
			return
		}
		v.orbit.Drag(dx, dy)
		v.invalidate()
	})
	v.win.SetDragEndCallback(func(window.MouseButton) {
		v.orbit.EndGesture()
	})
	v.win.SetScrollCallback(func(delta float32) {
		v.orbit.Magnify(delta)
		v.invalidate()
	})
	v.win.SetResizeCallback(func(width, height int) {
		v.viewport = [2]int{max(width, 1), max(height, 1)}
		v.renderer.Resize(width, height)
		v.coord.SetViewport(width, height)
		v.invalidate()
	})
	v.win.SetKeyDownCallback(v.keyDown)
}

// frame runs after the orbit control's tick and stays active while the orbit is moving.
func (v *windowedViewer) frame(time.Duration) {
	v.coord.SetCamera(v.orbit)
	v.coord.Frame(v.viewport)
	v.redraw.SetActive(v.orbit.State() == camera.OrbitAnimating)
}

func (v *windowedViewer) invalidate() {
	v.redraw.SetActive(true)
}

func (v *windowedViewer) keyDown(key uint32) {
	switch key {
	case common.KeyR:
		v.orbit.Reset()
	case common.KeySpace:
		v.orbit.Stop()
	case common.KeyH:
		v.showSkybox = !v.showSkybox
		v.coord.Update(params(v.cfg, v.orbit, v.showSkybox, v.debug))
	case common.KeyF3:
		v.debug = !v.debug
		v.coord.SetShowDebugStats(v.debug)
	case common.KeyP:
		v.snapshot()
		return
	default:
		return
	}
	v.invalidate()
}

// snapshot encodes the last frame on a background worker. Frames are never modified after
// Render returns, so the image can be shared.
func (v *windowedViewer) snapshot() {
	img := v.renderer.Image()
	if img == nil {
		return
	}
	path := v.cfg.Output
	v.eng.RunOnBackground(func() {
		if err := renderer.SaveSnapshot(path, img); err != nil {
			v.logger.Warn("snapshot failed", "path", path, "err", err)
			return
		}
		v.logger.Info("snapshot written", "path", path)
	})
}
