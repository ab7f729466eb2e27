package refimage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// gradient is darker towards the right, so every dHash bit is set.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255 - 255*x/(w-1))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func encode(t *testing.T, format string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		w, h    int
		maxSize int
		wantW   int
		wantH   int
	}{
		{"landscape png downscaled", "png", 2000, 1000, 1024, 1024, 512},
		{"portrait jpeg downscaled", "jpeg", 600, 1200, 300, 150, 300},
		{"small gif kept", "gif", 120, 80, 1024, 120, 80},
		{"scaling disabled", "png", 300, 200, 0, 300, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(encode(t, tt.format, gradient(tt.w, tt.h)), tt.maxSize)
			if err != nil {
				t.Fatalf("Normalize() error: %v", err)
			}
			if got.Width != tt.wantW || got.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", got.Width, got.Height, tt.wantW, tt.wantH)
			}
			if got.Source != tt.format {
				t.Errorf("source = %q, want %q", got.Source, tt.format)
			}

			cfg, format, err := image.DecodeConfig(bytes.NewReader(got.Data))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if format != "png" {
				t.Errorf("output format = %q, want png", format)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("encoded size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestNormalize_Unsupported(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image"), []byte("%PDF-1.7")} {
		if _, err := Normalize(data, 1024); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Normalize(%q) error = %v, want ErrUnsupportedFormat", data, err)
		}
	}
}

func TestHash(t *testing.T) {
	big, err := Normalize(encode(t, "png", gradient(900, 600)), 1024)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	small, err := Normalize(encode(t, "png", gradient(900, 600)), 200)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if big.Hash != ^uint64(0) {
		t.Errorf("hash of a left-to-right dark gradient = %016x, want all bits set", big.Hash)
	}
	if d := Distance(big.Hash, small.Hash); d != 0 {
		t.Errorf("Distance(resized copies) = %d, want 0", d)
	}

	h, err := HashOf(small.Data)
	if err != nil {
		t.Fatalf("HashOf() error: %v", err)
	}
	if h != small.Hash {
		t.Errorf("HashOf() = %016x, want %016x", h, small.Hash)
	}

	if got := Distance(0, 0xff); got != 8 {
		t.Errorf("Distance(0, 0xff) = %d, want 8", got)
	}
}
