package texture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// tgaBytes builds an uncompressed 24-bit bottom-up TGA.
func tgaBytes(w, h int, b, g, r byte) []byte {
	hdr := make([]byte, 18)
	hdr[2] = 2
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = 24
	out := append([]byte{}, hdr...)
	for i := 0; i < w*h; i++ {
		out = append(out, b, g, r)
	}
	return out
}

func TestDecodeBytesPNG(t *testing.T) {
	img, err := DecodeBytes("sky.png", pngBytes(t, 4, 2, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)

	assert.Equal(t, "png", img.Format)
	w, h := img.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.Pixels.NRGBAAt(3, 1))
	assert.Equal(t, uint32(4), img.Staging.Width)
	assert.Equal(t, uint32(2), img.Staging.Height)
}

func TestDecodeBytesTGAByExtension(t *testing.T) {
	data := tgaBytes(2, 2, 0, 0, 255)

	img, err := DecodeBytes("env.tga", data)
	require.NoError(t, err)
	assert.Equal(t, "tga", img.Format)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.Pixels.NRGBAAt(0, 0))

	_, err = DecodeBytes("env.bin", data)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestDecodeBytesRejectsNonImage(t *testing.T) {
	_, err := DecodeBytes("notes.png", []byte("definitely not pixels"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestDecodeMissing(t *testing.T) {
	_, err := Decode(context.Background(), "bundle:texture-none/sky.png")
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestFromImported(t *testing.T) {
	tex := &common.ImportedTexture{Name: "albedo", Data: pngBytes(t, 1, 1, color.NRGBA{G: 255, A: 255})}
	img, err := FromImported(tex)
	require.NoError(t, err)
	assert.Equal(t, resource.Locator("albedo"), img.Locator)

	_, err = FromImported(&common.ImportedTexture{Name: "empty"})
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestLoadSharesCachedImage(t *testing.T) {
	resource.RegisterBundle("texture-test", fstest.MapFS{
		"sky.png": {Data: pngBytes(t, 2, 2, color.NRGBA{B: 255, A: 255})},
	})
	defer resource.RegisterBundle("texture-test", nil)

	cache := resource.NewWeakCache[resource.Locator, Image]()
	a, err := Load(context.Background(), cache, "bundle:texture-test/sky.png")
	require.NoError(t, err)
	b, err := Load(context.Background(), cache, "bundle:texture-test/sky.png")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Len())

	_, err = Load(context.Background(), cache, "bundle:texture-test/missing.png")
	assert.ErrorIs(t, err, resource.ErrNotFound)
	assert.Equal(t, 1, cache.Len())
}

func TestSharedCacheSingleton(t *testing.T) {
	assert.Same(t, SharedCache(), SharedCache())
}
