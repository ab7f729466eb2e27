// Package refimage normalizes reference photos attached to saved sessions.
package refimage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math/bits"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for data no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ContentType of every normalized image.
const ContentType = "image/png"

// Image is a normalized reference image.
type Image struct {
	Data   []byte
	Width  int
	Height int
	// Source is the decoder that accepted the upload (png, jpeg, gif, webp).
	Source string
	// Hash is a 64-bit difference hash of the picture.
	Hash uint64
}

// Normalize decodes data, scales it down so the longest edge is at most
// maxSize pixels (keeping aspect ratio) and re-encodes it as PNG. Images
// already within bounds are re-encoded at their size. maxSize <= 0 disables
// scaling.
func Normalize(data []byte, maxSize int) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("decode image: empty %dx%d picture", width, height)
	}

	if maxSize > 0 && (width > maxSize || height > maxSize) {
		if width > height {
			height = max(1, height*maxSize/width)
			width = maxSize
		} else {
			width = max(1, width*maxSize/height)
			height = maxSize
		}
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &Image{
		Data:   buf.Bytes(),
		Width:  width,
		Height: height,
		Source: format,
		Hash:   dHash(img),
	}, nil
}

// dHash compares horizontally adjacent pixels of a 9x8 grayscale thumbnail.
func dHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// Distance is the Hamming distance between two image hashes. Small values
// (under ~10) mean the pictures are near duplicates.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// HashOf hashes an already normalized image.
func HashOf(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return 0, ErrUnsupportedFormat
	}
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return dHash(img), nil
}
