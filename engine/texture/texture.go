// Package texture decodes images for skyboxes and image-based lighting and shares them through
// a process-wide weak cache.
package texture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"sync"

	"github.com/Carmen-Shannon/oxyview/common"
	"github.com/Carmen-Shannon/oxyview/engine/resource"

	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// decoders maps filetype extensions to image decoders. Dispatch is explicit because TGA
// registers with the image package under an empty magic string.
var decoders = map[string]func(io.Reader) (image.Image, error){
	"png":  png.Decode,
	"jpg":  jpeg.Decode,
	"gif":  gif.Decode,
	"bmp":  bmp.Decode,
	"tif":  tiff.Decode,
	"webp": webp.Decode,
	"tga":  tga.Decode,
}

// ErrNotImage is returned for content that no registered image decoder recognises.
var ErrNotImage = errors.New("texture: not an image")

// Image is a decoded image ready for upload.
type Image struct {
	// Locator is where the image was read from.
	Locator resource.Locator

	// Format is the detected file extension without the dot ("png", "jpg", "tga").
	Format string

	// Pixels holds the decoded pixels with the origin at (0, 0).
	Pixels *image.NRGBA

	// Staging shares Pixels in upload form.
	Staging common.TextureStagingData
}

// Size returns the image dimensions.
func (i *Image) Size() (width, height int) {
	if i == nil || i.Pixels == nil {
		return 0, 0
	}
	b := i.Pixels.Bounds()
	return b.Dx(), b.Dy()
}

// Decode reads and decodes the image at loc.
//
// Parameters:
//   - ctx: bounds the read
//   - loc: the image locator
//
// Returns:
//   - *Image: the decoded image
//   - error: resource.ErrNotFound when loc does not resolve, ErrNotImage or a decoder error otherwise
func Decode(ctx context.Context, loc resource.Locator) (*Image, error) {
	data, err := resource.ReadAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(loc, data)
}

// DecodeBytes decodes image bytes read from loc. TGA has no magic number, so it is only
// accepted when loc carries the .tga extension.
//
// Parameters:
//   - loc: the locator the bytes came from
//   - data: the encoded image
//
// Returns:
//   - *Image: the decoded image
//   - error: ErrNotImage or a decoder error
func DecodeBytes(loc resource.Locator, data []byte) (*Image, error) {
	format := "tga"
	if loc.Ext() != ".tga" {
		kind, _ := filetype.Image(data)
		format = kind.Extension
	}
	decode, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, loc)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", loc, err)
	}

	px := common.ToNRGBA(img)
	return &Image{
		Locator: loc,
		Format:  format,
		Pixels:  px,
		Staging: common.NewTextureStagingData(px),
	}, nil
}

// FromImported decodes an image embedded in, or referenced by, a model material.
//
// Parameters:
//   - tex: the imported texture
//
// Returns:
//   - *Image: the decoded image
//   - error: error if the texture has no data or does not decode
func FromImported(tex *common.ImportedTexture) (*Image, error) {
	if tex == nil || len(tex.Data) == 0 {
		return nil, fmt.Errorf("%w: texture has no data", ErrNotImage)
	}
	return DecodeBytes(resource.Locator(common.Coalesce(tex.Path, tex.Name)), tex.Data)
}

// Cache is a weak image cache keyed by locator.
type Cache = resource.WeakCache[resource.Locator, Image]

var (
	sharedCache     *Cache
	sharedCacheOnce sync.Once
)

// SharedCache returns the process-wide image cache. Images stay cached while any viewer
// holds them.
func SharedCache() *Cache {
	sharedCacheOnce.Do(func() {
		sharedCache = resource.NewWeakCache[resource.Locator, Image](resource.WithCacheName("images"))
	})
	return sharedCache
}

// Load returns the image at loc from cache, decoding it on a miss. Decoding runs on the
// calling goroutine.
//
// Parameters:
//   - ctx: bounds the read on a miss
//   - cache: the cache to use; nil selects SharedCache
//   - loc: the image locator
//
// Returns:
//   - *Image: the image
//   - error: the decode error; failures are not cached
func Load(ctx context.Context, cache *Cache, loc resource.Locator) (*Image, error) {
	if cache == nil {
		cache = SharedCache()
	}
	return cache.GetOrCreate(loc, func(key resource.Locator) (*Image, error) {
		return Decode(ctx, key)
	})
}
