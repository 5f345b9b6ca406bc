package media

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
)

// blurHashSize bounds the thumbnail the hash is computed from; the hash is a
// low-frequency placeholder so a larger source adds cost without detail.
const blurHashSize = 64

// BlurHash encodes img as a 4x3 component BlurHash.
func BlurHash(img image.Image) (string, error) {
	hash, err := blurhash.Encode(4, 3, thumbnail(img, blurHashSize))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// thumbnail scales img down with nearest-neighbour sampling so neither side
// exceeds size. Smaller images are returned as is.
func thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= size && h <= size {
		return img
	}

	dw, dh := size, size
	if w > h {
		dh = max(1, h*size/w)
	} else {
		dw = max(1, w*size/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := range dh {
		for x := range dw {
			dst.Set(x, y, img.At(b.Min.X+x*w/dw, b.Min.Y+y*h/dh))
		}
	}
	return dst
}
