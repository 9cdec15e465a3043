package coordinator

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/camera"
	"github.com/Carmen-Shannon/oxyview/engine/light"
	"github.com/Carmen-Shannon/oxyview/engine/loader"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/Carmen-Shannon/oxyview/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mainQueue is a Dispatcher whose main thread is the test goroutine.
type mainQueue struct {
	mu   sync.Mutex
	jobs []func()
}

func (q *mainQueue) RunOnMain(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, fn)
}

func (q *mainQueue) RunOnBackground(fn func()) { go fn() }

func (q *mainQueue) drain() int {
	n := 0
	for {
		q.mu.Lock()
		jobs := q.jobs
		q.jobs = nil
		q.mu.Unlock()
		if len(jobs) == 0 {
			return n
		}
		for _, job := range jobs {
			job()
			n++
		}
	}
}

// manualScenes holds load completions until the test resolves them.
type manualScenes struct {
	mu    sync.Mutex
	calls map[resource.Locator]int
	done  map[resource.Locator]resource.Completion[model.Scene]
}

func newManualScenes() *manualScenes {
	return &manualScenes{
		calls: make(map[resource.Locator]int),
		done:  make(map[resource.Locator]resource.Completion[model.Scene]),
	}
}

func (m *manualScenes) action(loc resource.Locator, done resource.Completion[model.Scene]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[loc]++
	m.done[loc] = done
}

func (m *manualScenes) resolve(loc resource.Locator, scene *model.Scene) {
	m.mu.Lock()
	done := m.done[loc]
	m.mu.Unlock()
	done.Resolve(scene)
}

func (m *manualScenes) reject(loc resource.Locator, err error) {
	m.mu.Lock()
	done := m.done[loc]
	m.mu.Unlock()
	done.Reject(err)
}

type fixture struct {
	main   *mainQueue
	exec   *resource.ManualExecutor
	scenes *resource.AsyncLoader[resource.Locator, model.Scene]
	loads  *manualScenes
	coord  Coordinator
	states []LoadState
}

func newFixture(t *testing.T, options ...CoordinatorBuilderOption) *fixture {
	t.Helper()
	f := &fixture{
		main:  &mainQueue{},
		exec:  &resource.ManualExecutor{},
		loads: newManualScenes(),
	}
	f.scenes = resource.NewAsyncLoader[resource.Locator, model.Scene](resource.WithExecutor(f.exec))
	options = append([]CoordinatorBuilderOption{
		WithSceneLoader(f.scenes),
		WithSceneAction(f.loads.action),
		WithImageCache(resource.NewWeakCache[resource.Locator, texture.Image]()),
	}, options...)
	f.coord = NewCoordinator(f.main, options...)
	f.coord.OnLoad(func(ls LoadState) { f.states = append(f.states, ls) })
	t.Cleanup(f.coord.Close)
	return f
}

// boxScene is a scene with one cube of the given edge length centered at offset.
func boxScene(name string, edge float32, offset [3]float32) *model.Scene {
	s := model.NewScene(name)
	n := model.NewNode("box")
	n.Mesh = model.NewBoxMesh([3]float32{edge, edge, edge})
	n.Transform.Translation = offset
	s.Root.AddChild(n)
	return s
}

func TestSourceEquality(t *testing.T) {
	a := boxScene("a", 1, [3]float32{})
	b := boxScene("a", 1, [3]float32{})

	assert.True(t, SourceNone().Equal(SourceNone()))
	assert.True(t, SourceNone().Equal(SceneSource{}))
	assert.True(t, SourcePath("duck.glb").Equal(SourcePath("duck.glb")))
	assert.False(t, SourcePath("duck.glb").Equal(SourcePath("cube.obj")))
	assert.False(t, SourcePath("duck.glb").Equal(SourceNone()))
	assert.True(t, SourceReference(a).Equal(SourceReference(a)))
	assert.False(t, SourceReference(a).Equal(SourceReference(b)))
	assert.False(t, SourceReference(nil).Equal(SourceNone()))
}

func TestLoadAppliesOnMainThread(t *testing.T) {
	f := newFixture(t)
	scene := boxScene("cube", 4, [3]float32{})

	f.coord.SetSource(SourcePath("cube.obj"))
	assert.Equal(t, StateLoading, f.coord.State())
	require.Equal(t, 1, f.exec.Drain())

	f.loads.resolve("cube.obj", scene)
	assert.Equal(t, StateLoading, f.coord.State(), "completion must wait for the main thread")
	assert.Nil(t, f.coord.Content())

	require.Equal(t, 1, f.main.drain())
	assert.Equal(t, StateReady, f.coord.State())
	assert.Same(t, scene, f.coord.Scene())
	require.NotNil(t, f.coord.Content())
	assert.NotSame(t, scene.Root, f.coord.Content())
	assert.InDelta(t, 0.5, f.coord.NormalizationScale(), 1e-6)

	require.Len(t, f.states, 1)
	assert.Equal(t, StateReady, f.states[0].State)
	assert.True(t, f.states[0].Source.Equal(SourcePath("cube.obj")))
}

func TestIdempotentUpdate(t *testing.T) {
	f := newFixture(t)
	params := Params{Source: SourcePath("duck.glb")}

	f.coord.Update(params)
	f.coord.Update(params)
	f.coord.SetSource(SourcePath("duck.glb"))
	assert.Equal(t, 1, f.exec.Drain())
	assert.Equal(t, 1, f.loads.calls["duck.glb"])
}

func TestSharedLoadAcrossCoordinators(t *testing.T) {
	f := newFixture(t)
	other := NewCoordinator(f.main, WithSceneLoader(f.scenes), WithSceneAction(f.loads.action))
	defer other.Close()

	f.coord.SetSource(SourcePath("duck.glb"))
	other.SetSource(SourcePath("duck.glb"))
	f.exec.Drain()
	f.loads.resolve("duck.glb", boxScene("duck", 2, [3]float32{}))
	f.main.drain()

	assert.Equal(t, 1, f.loads.calls["duck.glb"])
	assert.Same(t, f.coord.Scene(), other.Scene())
	assert.NotSame(t, f.coord.Content(), other.Content())
}

func TestStaleCompletionDiscarded(t *testing.T) {
	f := newFixture(t)
	sceneA := boxScene("a", 1, [3]float32{})
	sceneB := boxScene("b", 2, [3]float32{})

	f.coord.SetSource(SourcePath("a.glb"))
	f.coord.SetSource(SourcePath("b.glb"))
	f.exec.Drain()

	f.loads.resolve("b.glb", sceneB)
	f.main.drain()
	f.loads.resolve("a.glb", sceneA)
	f.main.drain()

	assert.Equal(t, StateReady, f.coord.State())
	assert.Same(t, sceneB, f.coord.Scene())
	require.Len(t, f.states, 1)
	assert.Same(t, sceneB, f.states[0].Scene)

	// the superseded load still landed in the shared cache
	cached, ok := f.scenes.Get("a.glb")
	require.True(t, ok)
	assert.Same(t, sceneA, cached)
}

func TestStaleCompletionQueuedBeforeSwitch(t *testing.T) {
	f := newFixture(t)
	f.coord.SetSource(SourcePath("a.glb"))
	f.exec.Drain()
	f.loads.resolve("a.glb", boxScene("a", 1, [3]float32{}))

	// A's completion is queued on main, then B supersedes it before the queue runs.
	f.coord.SetSource(SourcePath("b.glb"))
	f.main.drain()

	assert.Equal(t, StateLoading, f.coord.State())
	assert.Nil(t, f.coord.Scene())
	assert.Empty(t, f.states)
}

func TestFailureKeepsStaleContent(t *testing.T) {
	f := newFixture(t)
	f.coord.SetSource(SourcePath("good.glb"))
	f.exec.Drain()
	f.loads.resolve("good.glb", boxScene("good", 1, [3]float32{}))
	f.main.drain()
	content := f.coord.Content()

	f.coord.SetSource(SourcePath("broken.glb"))
	f.exec.Drain()
	f.loads.reject("broken.glb", &loader.LoadError{Kind: loader.KindDecode, Locator: "broken.glb"})
	f.main.drain()

	assert.Equal(t, StateFailed, f.coord.State())
	assert.Same(t, content, f.coord.Content())
	require.Len(t, f.states, 2)
	assert.Equal(t, StateFailed, f.states[1].State)
	assert.ErrorIs(t, f.states[1].Err, loader.ErrDecode)

	// a failed source is retried only when a different source comes in
	f.coord.SetSource(SourcePath("broken.glb"))
	assert.Equal(t, 0, f.exec.Pending())
}

func TestFailureFromPlainErrorIsClassified(t *testing.T) {
	f := newFixture(t)
	f.coord.SetSource(SourcePath("gone.glb"))
	f.exec.Drain()
	f.loads.reject("gone.glb", resource.ErrNotFound)
	f.main.drain()

	require.Len(t, f.states, 1)
	assert.ErrorIs(t, f.states[0].Err, loader.ErrNotFound)
	var le *loader.LoadError
	require.ErrorAs(t, f.states[0].Err, &le)
	assert.Equal(t, resource.Locator("gone.glb"), le.Locator)
}

func TestAbsentLocatorFailsImmediately(t *testing.T) {
	f := newFixture(t)
	f.coord.SetSource(SourceNone())

	assert.Equal(t, StateFailed, f.coord.State())
	assert.Equal(t, 0, f.exec.Pending())
	require.Len(t, f.states, 1)
	assert.ErrorIs(t, f.states[0].Err, loader.ErrNotFound)
	assert.Nil(t, f.coord.Content())
}

func TestReferenceBypassesLoader(t *testing.T) {
	f := newFixture(t)
	scene := boxScene("mem", 8, [3]float32{})

	f.coord.SetSource(SourceReference(scene))
	assert.Equal(t, 0, f.exec.Pending())
	assert.Equal(t, StateReady, f.coord.State())
	assert.NotSame(t, scene.Root, f.coord.Content())
	assert.InDelta(t, 0.25, f.coord.NormalizationScale(), 1e-6)
	_, cached := f.scenes.Get("mem")
	assert.False(t, cached)
}

func TestNormalizationFudge(t *testing.T) {
	f := newFixture(t, WithNormalizationFudge(0.8))
	f.coord.SetSource(SourceReference(boxScene("cube", 4, [3]float32{})))
	assert.InDelta(t, 0.4, f.coord.NormalizationScale(), 1e-6)
}

func TestModelMatrixNormalizesAboutCenter(t *testing.T) {
	f := newFixture(t)
	f.coord.SetTransform(model.Transform{
		Translation: [3]float32{0, 1, 0},
		Rotation:    [4]float32{0, 0, 0, 1},
		Scale:       [3]float32{2, 2, 2},
	})
	// the transform is kept while nothing is loaded and applied once content arrives
	f.coord.SetSource(SourceReference(boxScene("cube", 4, [3]float32{10, 0, 0})))

	m := f.coord.ModelMatrix()
	face := common.TransformPoint(m, [3]float32{12, 0, 0})
	assert.InDeltaSlice(t, []float32{2, 1, 0}, face[:], 1e-5)
	center := common.TransformPoint(m, [3]float32{10, 0, 0})
	assert.InDeltaSlice(t, []float32{0, 1, 0}, center[:], 1e-5)
}

func TestZeroTransformIsIdentity(t *testing.T) {
	f := newFixture(t)
	f.coord.SetTransform(model.Transform{})
	assert.Equal(t, common.IdentityMat4(), f.coord.ModelMatrix())
}

func TestCameraIndependentOfLoad(t *testing.T) {
	f := newFixture(t)
	f.coord.SetSource(SourcePath("slow.glb"))

	orbit := camera.NewOrbitControl(camera.WithDistance(3))
	f.coord.SetCamera(orbit)
	assert.Equal(t, orbit.Position(), f.coord.Camera().Position())

	frame := f.coord.Frame([2]int{4, 2})
	assert.Equal(t, StateLoading, frame.State)
	assert.Equal(t, orbit.ViewMatrix(), frame.View)
	assert.Equal(t, orbit.ProjectionMatrix(2), frame.Projection)
	assert.Nil(t, frame.Content)
}

func TestCosmeticFailureIsolation(t *testing.T) {
	f := newFixture(t)
	f.coord.SetSource(SourceReference(boxScene("cube", 1, [3]float32{})))
	require.Len(t, f.states, 1)

	missing := resource.Locator("bundle:coordinator-none/sky.png")
	f.coord.SetIBL(&light.IBLSettings{Locator: missing, Intensity: 1})
	f.coord.SetSkybox(&missing)

	assert.Nil(t, f.coord.Environment().IBL)
	assert.Nil(t, f.coord.Environment().Skybox)
	assert.Equal(t, StateReady, f.coord.State())
	assert.Len(t, f.states, 1)
}

func TestEnvironmentUpdatesOnlyOnChange(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 4))))
	resource.RegisterBundle("coordinator-test", fstest.MapFS{"sky.png": {Data: buf.Bytes()}})
	defer resource.RegisterBundle("coordinator-test", nil)

	f := newFixture(t)
	sky := resource.Locator("bundle:coordinator-test/sky.png")
	f.coord.SetIBL(&light.IBLSettings{Locator: sky, Intensity: 1})
	f.coord.SetSkybox(&sky)
	env := f.coord.Environment()
	require.NotNil(t, env.IBL)
	require.NotNil(t, env.Skybox)

	same := sky
	f.coord.SetIBL(&light.IBLSettings{Locator: sky, Intensity: 1})
	f.coord.SetSkybox(&same)
	assert.Same(t, env, f.coord.Environment())

	f.coord.SetIBL(&light.IBLSettings{Locator: sky, Intensity: 2})
	assert.NotSame(t, env, f.coord.Environment())
	assert.Equal(t, float32(2), f.coord.Environment().IBL.Settings.Intensity)
	assert.NotNil(t, f.coord.Environment().Skybox)

	f.coord.SetSkybox(nil)
	assert.Nil(t, f.coord.Environment().Skybox)
	assert.NotNil(t, f.coord.Environment().IBL)
}

func TestCloseDiscardsPendingLoad(t *testing.T) {
	f := newFixture(t)
	f.coord.SetSource(SourcePath("late.glb"))
	f.coord.Close()

	f.exec.Drain()
	scene := boxScene("late", 1, [3]float32{})
	f.loads.resolve("late.glb", scene)
	f.main.drain()

	assert.Nil(t, f.coord.Content())
	assert.Empty(t, f.states)
	cached, ok := f.scenes.Get("late.glb")
	require.True(t, ok)
	assert.Same(t, scene, cached)
}

type recordingRenderer struct {
	frames []*FrameState
}

func (r *recordingRenderer) Render(frame *FrameState) {
	r.frames = append(r.frames, frame)
}

type handle struct {
	active, removed bool
	fn              common.FrameFunc
}

func (h *handle) SetActive(active bool) { h.active = active }
func (h *handle) Active() bool          { return h.active }
func (h *handle) Remove()               { h.removed = true }

type scheduler struct {
	handles []*handle
}

func (s *scheduler) OnFrame(active bool, fn common.FrameFunc) common.FrameHandle {
	h := &handle{active: active, fn: fn}
	s.handles = append(s.handles, h)
	return h
}

func TestAttachRendersFrames(t *testing.T) {
	r := &recordingRenderer{}
	f := newFixture(t, WithRenderer(r), WithViewport(320, 240))
	f.coord.SetSource(SourceReference(boxScene("cube", 2, [3]float32{})))
	f.coord.SetShowDebugStats(true)

	frames := &scheduler{}
	f.coord.Attach(frames)
	require.Len(t, frames.handles, 1)
	h := frames.handles[0]
	assert.True(t, h.active)

	h.fn(0)
	require.Len(t, r.frames, 1)
	assert.Equal(t, [2]int{320, 240}, r.frames[0].Viewport)
	assert.NotNil(t, r.frames[0].Content)
	assert.True(t, r.frames[0].ShowDebugStats)
	assert.NotNil(t, r.frames[0].KeyLight)

	f.coord.Close()
	assert.True(t, h.removed)
}

func TestDebugStatsHandler(t *testing.T) {
	var got []bool
	f := newFixture(t, WithDebugStatsHandler(func(show bool) { got = append(got, show) }))
	f.coord.Update(Params{ShowDebugStats: true})
	f.coord.Update(Params{ShowDebugStats: true})
	f.coord.Update(Params{})
	assert.Equal(t, []bool{true, false}, got)
}

func TestLoadsThroughSceneDecoder(t *testing.T) {
	resource.RegisterBundle("coordinator-scenes", fstest.MapFS{
		"cube.oxy": {Data: []byte("oxyscene: 1\nnodes:\n  - primitive: {type: box, size: [4, 1, 2]}\n")},
	})
	defer resource.RegisterBundle("coordinator-scenes", nil)

	main := &mainQueue{}
	exec := &resource.ManualExecutor{}
	coord := NewCoordinator(main,
		WithSceneLoader(resource.NewAsyncLoader[resource.Locator, model.Scene](resource.WithExecutor(exec))),
		WithSceneAction(loader.NewLoader().Action(context.Background())),
	)
	defer coord.Close()

	coord.SetSource(SourcePath("bundle:coordinator-scenes/cube.oxy"))
	exec.Drain()
	main.drain()

	require.Equal(t, StateReady, coord.State())
	assert.InDelta(t, 0.5, coord.NormalizationScale(), 1e-6)
}
