// Package imagecodec shrinks photos to a size that fits the wire.
package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxDimension   = 1024
	MaxBytes       = 500 * 1024
	InitialQuality = 70
	QualityStep    = 10
	MinQuality     = 10
)

var ErrTooLarge = errors.New("imagecodec: image does not fit even at minimum quality")

// Encode decodes src (JPEG, PNG or WebP), scales it so the longest side is at
// most MaxDimension and re-encodes it as JPEG, lowering the quality until the
// result fits MaxBytes. When even MinQuality is too big the smallest encoding
// is returned together with ErrTooLarge.
func Encode(src []byte) ([]byte, error) {
	return EncodeLimit(src, MaxBytes)
}

// EncodeLimit is Encode with a byte budget other than MaxBytes.
func EncodeLimit(src []byte, limit int) ([]byte, error) {
	img, err := Decode(src)
	if err != nil {
		return nil, err
	}
	return encodeImage(img, limit)
}

func EncodeImage(img image.Image) ([]byte, error) {
	return encodeImage(img, MaxBytes)
}

func encodeImage(img image.Image, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = MaxBytes
	}
	img = Fit(img, MaxDimension)
	var buf bytes.Buffer
	for q := InitialQuality; ; q -= QualityStep {
		if q < MinQuality {
			q = MinQuality
		}
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("imagecodec: encode: %w", err)
		}
		if buf.Len() <= limit {
			return buf.Bytes(), nil
		}
		if q == MinQuality {
			return buf.Bytes(), ErrTooLarge
		}
	}
}

// EncodeFile reads and encodes the photo at path within limit bytes. A
// limit of zero means MaxBytes.
func EncodeFile(path string, limit int) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return EncodeLimit(b, limit)
}

// Fit scales img down so neither side exceeds limit, keeping the aspect
// ratio. Smaller images are returned unchanged.
func Fit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Decode parses a photo as received from a peer or read from disk.
func Decode(b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("imagecodec: decode: %w", err)
	}
	return img, nil
}
