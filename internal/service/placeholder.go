package service

import (
	"bytes"
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"github.com/nfnt/resize"
)

// placeholderSize bounds the thumbnail the blurhash is computed from.
const placeholderSize = 64

// computeBlurHash returns a 4x3 component blurhash for the encoded image.
// Formats without a registered decoder (svg) return an error.
func computeBlurHash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > placeholderSize || b.Dy() > placeholderSize {
		img = resize.Thumbnail(placeholderSize, placeholderSize, img, resize.NearestNeighbor)
	}

	hash, err := blurhash.Encode(4, 3, img)
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}
