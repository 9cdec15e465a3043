package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyR     = 82  // R key (ASCII), resets the orbit
	KeyP     = 80  // P key (ASCII), writes a snapshot
	KeyH     = 72  // H key (ASCII), toggles the skybox
	KeySpace = 32  // Spacebar (ASCII), stops orbit inertia
	KeyF3    = 292 // F3 key (GLFW), toggles debug stats
)
