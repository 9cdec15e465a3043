package renderer

import "log/slog"

// RendererBuilderOption is a functional option for configuring a Renderer.
type RendererBuilderOption func(*renderer)

// WithSupersample sets how many samples per axis each output pixel is rendered with.
// Values below 1 are treated as 1. The default is 2.
//
// Parameters:
//   - factor: samples per axis
//
// Returns:
//   - RendererBuilderOption: a function that applies the supersample option to a renderer
func WithSupersample(factor int) RendererBuilderOption {
	return func(r *renderer) {
		r.supersample = max(factor, 1)
	}
}

// WithExposure scales lit colors before tone mapping. The default is 1.
//
// Parameters:
//   - exposure: the linear exposure multiplier
//
// Returns:
//   - RendererBuilderOption: a function that applies the exposure option to a renderer
func WithExposure(exposure float32) RendererBuilderOption {
	return func(r *renderer) {
		if exposure > 0 {
			r.exposure = exposure
		}
	}
}

// WithBackfaceCulling enables or disables culling of back faces for single-sided materials.
// Enabled by default.
func WithBackfaceCulling(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.cullBack = enabled
	}
}

// WithPresentMode sets the presentation mode for the backend.
// This is applied when the backend is created.
//
// Parameters:
//   - mode: the PresentMode to use (PresentModeVSync or PresentModeUncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces the wgpu backend onto a fallback (software) adapter.
//
// Parameters:
//   - force: if true, requests a fallback adapter
//
// Returns:
//   - RendererBuilderOption: a function that applies the adapter option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithBackend presents frames through b instead of a backend created from the window.
func WithBackend(b RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = b
	}
}

// WithLogger sets the logger used for present failures and debug frame statistics.
func WithLogger(logger *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
