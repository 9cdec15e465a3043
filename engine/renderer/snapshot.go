package renderer

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
)

// WriteSnapshot encodes img as lossless WebP.
//
// Parameters:
//   - w: the destination
//   - img: the image to encode
//
// Returns:
//   - error: the encoder's error
func WriteSnapshot(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

// SaveSnapshot writes img to path as WebP, replacing any existing file.
func SaveSnapshot(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteSnapshot(f, img)
}

// downsample filters a supersampled frame down to the viewport with CatmullRom. Frames are
// fully opaque, so no alpha premultiplication is needed.
func downsample(img *image.NRGBA, width, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
