package imagecodec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), uint8(x + y), 255})
		}
	}
	return img
}

func TestFitKeepsAspectRatio(t *testing.T) {
	out := Fit(gradient(4000, 3000), MaxDimension)
	if b := out.Bounds(); b.Dx() != 1024 || b.Dy() != 768 {
		t.Fatalf("expected 1024x768, got %dx%d", b.Dx(), b.Dy())
	}
	out = Fit(gradient(300, 2048), MaxDimension)
	if b := out.Bounds(); b.Dx() != 150 || b.Dy() != 1024 {
		t.Fatalf("expected 150x1024, got %dx%d", b.Dx(), b.Dy())
	}
	small := gradient(200, 100)
	if Fit(small, MaxDimension) != image.Image(small) {
		t.Fatal("small images should not be resampled")
	}
}

func TestEncodeFromPNG(t *testing.T) {
	var src bytes.Buffer
	if err := png.Encode(&src, gradient(2048, 1536)); err != nil {
		t.Fatal(err)
	}
	out, err := Encode(src.Bytes())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(out) > MaxBytes {
		t.Fatalf("expected at most %d bytes, got %d", MaxBytes, len(out))
	}
	img, err := Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1024 || b.Dy() != 768 {
		t.Fatalf("expected 1024x768, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestEncodeNoisyImageStaysUnderLimit(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, 1024, 1024))
	r.Read(img.Pix)
	out, err := EncodeImage(img)
	if err != nil && err != ErrTooLarge {
		t.Fatalf("encode: %v", err)
	}
	if err == nil && len(out) > MaxBytes {
		t.Fatalf("expected at most %d bytes, got %d", MaxBytes, len(out))
	}
	if len(out) == 0 {
		t.Fatal("expected some output even when too large")
	}
}

func TestEncodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	var src bytes.Buffer
	_ = png.Encode(&src, gradient(64, 64))
	if err := os.WriteFile(path, src.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := EncodeFile(path, 0); err != nil {
		t.Fatalf("encode file: %v", err)
	}
	if _, err := EncodeFile(filepath.Join(t.TempDir(), "missing.png"), 0); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if _, err := Encode([]byte("not an image")); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestEncodeLimitReportsTooLarge(t *testing.T) {
	var src bytes.Buffer
	if err := png.Encode(&src, gradient(256, 256)); err != nil {
		t.Fatal(err)
	}
	out, err := EncodeLimit(src.Bytes(), 64)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if len(out) <= 64 {
		t.Fatalf("expected the smallest attempt back, got %d bytes", len(out))
	}
}
