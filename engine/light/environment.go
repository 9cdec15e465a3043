package light

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/loader"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/Carmen-Shannon/oxyview/engine/texture"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/transform"
	"github.com/chewxy/math32"
)

// Irradiance maps are prefiltered to this equirectangular size.
const (
	irradianceWidth  = 64
	irradianceHeight = 32
	irradianceBlur   = 6.0
)

// defaultAmbient is the ambient term used when no IBL image is set.
var defaultAmbient = [3]float32{0.25, 0.25, 0.28}

// IBLSettings selects the panorama used for image-based lighting.
type IBLSettings struct {
	// Locator is the equirectangular panorama.
	Locator resource.Locator

	// Intensity scales the ambient contribution. Negative values are treated as zero.
	Intensity float32
}

// Equal reports whether two optional settings select the same lighting. Two nil settings are equal.
func (s *IBLSettings) Equal(other *IBLSettings) bool {
	if s == nil || other == nil {
		return s == other
	}
	return *s == *other
}

// IBL is a loaded image-based lighting environment.
type IBL struct {
	Settings IBLSettings

	// Source is the full-resolution panorama.
	Source *texture.Image

	// Irradiance is a small, blurred copy of Source sampled for diffuse ambient light.
	Irradiance *image.NRGBA

	// Staging holds Irradiance in upload form.
	Staging common.TextureStagingData
}

// Ambient returns the diffuse ambient light arriving at a surface with the given normal.
func (i *IBL) Ambient(normal [3]float32) [3]float32 {
	if i == nil || i.Irradiance == nil {
		return defaultAmbient
	}
	c := sampleEquirect(i.Irradiance, normal)
	k := max(i.Settings.Intensity, 0)
	return [3]float32{c[0] * k, c[1] * k, c[2] * k}
}

// Environment is the background and lighting a scene is drawn with. The zero value draws
// the default background with the default ambient term.
type Environment struct {
	Skybox *texture.Image
	IBL    *IBL

	// Sampler is the sampler both images are read with.
	Sampler common.SamplerStagingData
}

// Background returns the sky color seen along a view direction.
func (e *Environment) Background(dir [3]float32) [3]float32 {
	if e == nil || e.Skybox == nil || e.Skybox.Pixels == nil {
		// vertical gradient from horizon grey to a darker zenith
		t := common.Clamp(dir[1]*0.5+0.5, 0, 1)
		return [3]float32{0.32 - 0.14*t, 0.34 - 0.12*t, 0.38 - 0.08*t}
	}
	return sampleEquirect(e.Skybox.Pixels, dir)
}

// Ambient returns the ambient term for a surface normal.
func (e *Environment) Ambient(normal [3]float32) [3]float32 {
	if e == nil {
		return defaultAmbient
	}
	return e.IBL.Ambient(normal)
}

// LoadSkybox loads a skybox panorama through cache.
//
// Parameters:
//   - ctx: bounds the read on a cache miss
//   - cache: the image cache; nil selects texture.SharedCache
//   - loc: the panorama locator
//
// Returns:
//   - *texture.Image: the decoded panorama
//   - error: a KindCosmetic *loader.LoadError
func LoadSkybox(ctx context.Context, cache *texture.Cache, loc resource.Locator) (*texture.Image, error) {
	img, err := texture.Load(ctx, cache, loc)
	if err != nil {
		return nil, loader.Cosmetic(loc, err)
	}
	return img, nil
}

// LoadIBL loads the panorama named by settings and prefilters its irradiance map. Irradiance
// maps are shared through their own weak cache so repeated loads of the same panorama
// filter once.
//
// Parameters:
//   - ctx: bounds the read on a cache miss
//   - cache: the image cache; nil selects texture.SharedCache
//   - settings: the panorama and intensity
//
// Returns:
//   - *IBL: the lighting environment
//   - error: a KindCosmetic *loader.LoadError
func LoadIBL(ctx context.Context, cache *texture.Cache, settings IBLSettings) (*IBL, error) {
	src, err := texture.Load(ctx, cache, settings.Locator)
	if err != nil {
		return nil, loader.Cosmetic(settings.Locator, err)
	}
	irr, err := irradianceCache().GetOrCreate(settings.Locator, func(resource.Locator) (*image.NRGBA, error) {
		return Prefilter(src.Pixels)
	})
	if err != nil {
		return nil, loader.Cosmetic(settings.Locator, err)
	}
	return &IBL{
		Settings:   settings,
		Source:     src,
		Irradiance: irr,
		Staging:    common.NewTextureStagingData(irr),
	}, nil
}

// Prefilter downsamples a panorama and blurs it into a diffuse irradiance approximation.
//
// Parameters:
//   - src: the equirectangular panorama
//
// Returns:
//   - *image.NRGBA: the irradiance map
//   - error: error if src is empty
func Prefilter(src *image.NRGBA) (*image.NRGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("light: empty panorama")
	}
	small := transform.Resize(src, irradianceWidth, irradianceHeight, transform.Linear)
	return common.ToNRGBA(blur.Gaussian(small, irradianceBlur)), nil
}

var (
	sharedIrradiance     *resource.WeakCache[resource.Locator, image.NRGBA]
	sharedIrradianceOnce sync.Once
)

func irradianceCache() *resource.WeakCache[resource.Locator, image.NRGBA] {
	sharedIrradianceOnce.Do(func() {
		sharedIrradiance = resource.NewWeakCache[resource.Locator, image.NRGBA](resource.WithCacheName("irradiance"))
	})
	return sharedIrradiance
}

// sampleEquirect reads an equirectangular image along a direction with nearest filtering.
// +Y is up and -Z maps to the horizontal center.
func sampleEquirect(img *image.NRGBA, dir [3]float32) [3]float32 {
	d := common.Normalize3(dir)
	u := 0.5 + math32.Atan2(d[0], -d[2])/(2*math32.Pi)
	v := math32.Acos(common.Clamp(d[1], -1, 1)) / math32.Pi

	b := img.Bounds()
	x := b.Min.X + common.Clamp(int(u*float32(b.Dx())), 0, b.Dx()-1)
	y := b.Min.Y + common.Clamp(int(v*float32(b.Dy())), 0, b.Dy()-1)
	c := img.NRGBAAt(x, y)
	return [3]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
}
