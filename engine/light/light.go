// Package light holds the lighting a viewer draws a scene with: punctual key lights and the
// skybox and image-based-lighting environment.
package light

import (
	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/chewxy/math32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction, such as the sun.
	// It affects all fragments uniformly with no distance attenuation.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// It attenuates with distance up to a configurable range.
	LightTypePoint
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType  LightType
	position   [3]float32
	direction  [3]float32
	color      [3]float32
	intensity  float32
	lightRange float32
	enabled    bool
}

// Light is a punctual light source. Viewers usually carry a single directional key light
// on top of the environment's ambient term.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type
	Type() LightType

	// Position returns the world-space position of the light. Meaningless for directional lights.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Direction returns the normalized direction the light travels in. Meaningless for point lights.
	//
	// Returns:
	//   - [3]float32: normalized direction as (x, y, z)
	Direction() [3]float32

	// Color returns the RGB color of the light.
	Color() [3]float32

	// Intensity returns the scalar intensity multiplier for the light.
	Intensity() float32

	// Range returns the distance at which a point light stops contributing.
	Range() float32

	// Enabled returns whether this light contributes to shading.
	Enabled() bool

	// SetDirection sets the direction of the light and normalizes it.
	//
	// Parameters:
	//   - x, y, z: direction components (will be normalized)
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color of the light.
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar intensity multiplier.
	SetIntensity(intensity float32)

	// SetEnabled enables or disables the light.
	SetEnabled(enabled bool)

	// Irradiance returns the Lambertian contribution of the light at a surface point.
	//
	// Parameters:
	//   - pos: world-space surface position
	//   - normal: normalized world-space surface normal
	//
	// Returns:
	//   - [3]float32: the RGB contribution, zero when the surface faces away or the light is disabled
	Irradiance(pos, normal [3]float32) [3]float32
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied.
//
// Parameters:
//   - lightType: the kind of light to create
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:  lightType,
		direction:  [3]float32{0, -1, 0},
		color:      [3]float32{1, 1, 1},
		intensity:  1.0,
		lightRange: 10.0,
		enabled:    true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewKeyLight creates the directional light a viewer uses by default: white, from the upper
// front left.
func NewKeyLight(opts ...LightBuilderOption) Light {
	return NewLight(LightTypeDirectional, append([]LightBuilderOption{WithDirection(0.4, -1, -0.6)}, opts...)...)
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() [3]float32 {
	return l.position
}

func (l *lightImpl) Direction() [3]float32 {
	return l.direction
}

func (l *lightImpl) Color() [3]float32 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.direction = common.Normalize3([3]float32{x, y, z})
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.color = [3]float32{r, g, b}
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}

func (l *lightImpl) Irradiance(pos, normal [3]float32) [3]float32 {
	if !l.enabled {
		return [3]float32{}
	}

	var toLight [3]float32
	atten := float32(1)
	switch l.lightType {
	case LightTypePoint:
		d := common.Sub3(l.position, pos)
		dist := math32.Sqrt(common.Dot3(d, d))
		if dist >= l.lightRange || dist == 0 {
			return [3]float32{}
		}
		toLight = [3]float32{d[0] / dist, d[1] / dist, d[2] / dist}
		// smooth window falloff reaching zero at the range
		f := 1 - dist/l.lightRange
		atten = f * f
	default:
		toLight = [3]float32{-l.direction[0], -l.direction[1], -l.direction[2]}
	}

	ndotl := common.Dot3(normal, toLight)
	if ndotl <= 0 {
		return [3]float32{}
	}
	k := ndotl * l.intensity * atten
	return [3]float32{l.color[0] * k, l.color[1] * k, l.color[2] * k}
}
