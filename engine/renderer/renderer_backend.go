package renderer

import "image"

// RendererBackendType identifies where the Renderer presents finished frames.
type RendererBackendType int

const (
	// BackendTypeHeadless keeps frames in memory only; use Image or Snapshot to read them.
	BackendTypeHeadless RendererBackendType = iota

	// BackendTypeWGPU presents frames to a window surface through WebGPU.
	BackendTypeWGPU
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// RendererBackend shows finished frames on a display.
type RendererBackend interface {
	// Configure sizes the presentation surface.
	//
	// Parameters:
	//   - width: surface width in pixels
	//   - height: surface height in pixels
	Configure(width, height int)

	// SetPresentMode selects vsync or uncapped presentation. Takes effect on the next Configure.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Present uploads img and shows it. Images whose size differs from the surface are
	// stretched to fill it.
	//
	// Parameters:
	//   - img: the frame to show
	//
	// Returns:
	//   - error: error if the surface could not be acquired or the upload failed
	Present(img *image.NRGBA) error

	// Release frees every GPU resource held by the backend.
	Release()
}
