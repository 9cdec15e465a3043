package light

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxyview/engine/loader"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/Carmen-Shannon/oxyview/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDirectionalIrradiance(t *testing.T) {
	l := NewLight(LightTypeDirectional, WithDirection(0, -2, 0), WithIntensity(2))

	assert.InDeltaSlice(t, []float32{0, -1, 0}, l.Direction()[:], 1e-6)
	assert.Equal(t, [3]float32{2, 2, 2}, l.Irradiance([3]float32{}, [3]float32{0, 1, 0}))
	assert.Equal(t, [3]float32{}, l.Irradiance([3]float32{}, [3]float32{0, -1, 0}))

	l.SetEnabled(false)
	assert.Equal(t, [3]float32{}, l.Irradiance([3]float32{}, [3]float32{0, 1, 0}))
}

func TestPointIrradianceFallsOffToRange(t *testing.T) {
	l := NewLight(LightTypePoint, WithPosition(0, 2, 0), WithRange(4), WithColor(1, 0, 0))

	near := l.Irradiance([3]float32{0, 1, 0}, [3]float32{0, 1, 0})
	far := l.Irradiance([3]float32{0, -1, 0}, [3]float32{0, 1, 0})
	assert.Greater(t, near[0], far[0])
	assert.Zero(t, near[1])
	assert.Equal(t, [3]float32{}, l.Irradiance([3]float32{0, -3, 0}, [3]float32{0, 1, 0}))
}

func TestIBLSettingsEqual(t *testing.T) {
	a := &IBLSettings{Locator: "sky.png", Intensity: 1}
	b := &IBLSettings{Locator: "sky.png", Intensity: 1}
	c := &IBLSettings{Locator: "sky.png", Intensity: 0.5}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
	assert.True(t, (*IBLSettings)(nil).Equal(nil))
}

func TestPrefilter(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 256, 128))
	irr, err := Prefilter(src)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, irradianceWidth, irradianceHeight), irr.Bounds())

	_, err = Prefilter(nil)
	assert.Error(t, err)
}

func TestLoadIBL(t *testing.T) {
	resource.RegisterBundle("light-test", fstest.MapFS{
		"studio.png": {Data: solidPNG(t, 32, 16, color.NRGBA{R: 255, G: 255, B: 255, A: 255})},
	})
	defer resource.RegisterBundle("light-test", nil)

	cache := resource.NewWeakCache[resource.Locator, texture.Image]()
	ibl, err := LoadIBL(context.Background(), cache, IBLSettings{Locator: "bundle:light-test/studio.png", Intensity: 0.5})
	require.NoError(t, err)

	amb := ibl.Ambient([3]float32{0, 1, 0})
	assert.InDelta(t, 0.5, amb[0], 0.01)
	assert.Equal(t, uint32(irradianceWidth), ibl.Staging.Width)

	env := &Environment{IBL: ibl}
	assert.Equal(t, amb, env.Ambient([3]float32{0, 1, 0}))
}

func TestLoadFailuresAreCosmetic(t *testing.T) {
	_, err := LoadIBL(context.Background(), nil, IBLSettings{Locator: "bundle:light-none/missing.png", Intensity: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrCosmeticAsset)
	assert.ErrorIs(t, err, resource.ErrNotFound)

	_, err = LoadSkybox(context.Background(), nil, "bundle:light-none/missing.png")
	assert.ErrorIs(t, err, loader.ErrCosmeticAsset)
}

func TestEnvironmentDefaults(t *testing.T) {
	var env *Environment
	assert.Equal(t, defaultAmbient, env.Ambient([3]float32{0, 1, 0}))

	env = &Environment{}
	up := env.Background([3]float32{0, 1, 0})
	down := env.Background([3]float32{0, -1, 0})
	assert.NotEqual(t, up, down)
}
