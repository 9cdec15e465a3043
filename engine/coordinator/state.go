package coordinator

import (
	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/camera"
	"github.com/Carmen-Shannon/oxyview/engine/light"
	"github.com/Carmen-Shannon/oxyview/engine/model"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// State is the load state of a coordinator's asset slot.
type State int

const (
	// StateEmpty means no source has been applied yet.
	StateEmpty State = iota
	// StateLoading means a path source is being decoded.
	StateLoading
	// StateReady means the current source is displayed.
	StateReady
	// StateFailed means the current source could not be loaded. Earlier content stays visible.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// LoadState is delivered to load handlers when a source finishes loading.
type LoadState struct {
	Source SceneSource

	// State is StateReady or StateFailed.
	State State

	// Err is the failure, a *loader.LoadError, when State is StateFailed.
	Err error

	// Scene is the loaded scene when State is StateReady.
	Scene *model.Scene
}

// Params is the full declarative input of a coordinator for one update cycle.
type Params struct {
	Source SceneSource

	// Camera is copied by value on every update. Nil keeps the default view.
	Camera camera.Camera

	// Transform is applied to the normalized content: scale, then rotate, then translate.
	Transform model.Transform

	// IBL selects the image-based lighting panorama. Nil clears it.
	IBL *light.IBLSettings

	// Skybox selects the background panorama. Nil clears it.
	Skybox *resource.Locator

	ShowDebugStats bool
}

// FrameState is everything a renderer needs to draw one frame.
type FrameState struct {
	// Viewport is the target size in pixels.
	Viewport [2]int

	View       common.Mat4
	Projection common.Mat4

	// Model places Content in the world, normalization included.
	Model common.Mat4

	CameraPosition [3]float32

	// Content is the coordinator's own copy of the scene root; nil until a load succeeds.
	Content *model.Node

	// Scene supplies the materials Content refers to.
	Scene *model.Scene

	Environment *light.Environment
	KeyLight    light.Light

	State          State
	ShowDebugStats bool
}

// Renderer draws frames produced by a coordinator.
type Renderer interface {
	// Render draws one frame. It is called on the main thread.
	Render(frame *FrameState)
}
