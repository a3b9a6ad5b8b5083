package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const testSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodeWith(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, enc(buf, testImage(40, 20)))
	return buf.Bytes()
}

func TestResize(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		wantType string
	}{
		{
			name: "png",
			input: encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
				return png.Encode(b, img)
			}),
			wantType: MimePNG,
		},
		{
			name: "jpeg",
			input: encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
				return jpeg.Encode(b, img, nil)
			}),
			wantType: MimeJPEG,
		},
		{
			name: "gif",
			input: encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
				return gif.Encode(b, img, nil)
			}),
			wantType: MimeGIF,
		},
		{
			name: "bmp",
			input: encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
				return bmp.Encode(b, img)
			}),
			wantType: MimeBMP,
		},
		{
			name: "tiff",
			input: encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
				return tiff.Encode(b, img, nil)
			}),
			wantType: MimeTIFF,
		},
	}

	r := NewResizer(Options{Interpolation: DefaultInterpolation})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := r.Resize(context.Background(), tc.input, 10, 15)
			require.NoError(t, err)
			assert.Equal(t, tc.wantType, out.ContentType)

			decoded, format, err := DecodeImage(out.Data)
			require.NoError(t, err)
			assert.Equal(t, tc.wantType, format)
			assert.Equal(t, 10, decoded.Bounds().Dx())
			assert.Equal(t, 15, decoded.Bounds().Dy())
		})
	}
}

func TestResizeOneByOne(t *testing.T) {
	input := encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
		return png.Encode(b, img)
	})

	out, err := NewResizer(Options{}).Resize(context.Background(), input, 1, 1)
	require.NoError(t, err)

	decoded, _, err := DecodeImage(out.Data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1, 1), decoded.Bounds())
}

func TestResizeSVGPassthrough(t *testing.T) {
	out, err := NewResizer(Options{}).Resize(context.Background(), []byte(testSVG), 50, 50)
	require.NoError(t, err)
	assert.Equal(t, MimeSVG, out.ContentType)
	assert.Equal(t, []byte(testSVG), out.Data)
}

func TestResizeUnsupported(t *testing.T) {
	_, err := NewResizer(Options{}).Resize(context.Background(), []byte("definitely not an image"), 10, 10)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestResizeCorrupt(t *testing.T) {
	input := encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
		return png.Encode(b, img)
	})

	_, err := NewResizer(Options{}).Resize(context.Background(), input[:len(input)/2], 10, 10)
	assert.Error(t, err)
}

func TestResizeMaxDimension(t *testing.T) {
	input := encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
		return png.Encode(b, img)
	})

	r := NewResizer(Options{MaxDimension: 100})
	_, err := r.Resize(context.Background(), input, 101, 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = r.Resize(context.Background(), input, 100, 100)
	assert.NoError(t, err)
}

func TestResizeDefaultCaps(t *testing.T) {
	input := encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
		return png.Encode(b, img)
	})

	r := NewResizer(Options{Interpolation: DefaultInterpolation})
	assert.Equal(t, uint(DefaultMaxDimension), r.maxDimension)
	assert.Equal(t, uint64(DefaultMaxPixels), r.maxPixels)

	tests := []struct {
		name          string
		width, height uint
	}{
		{name: "huge square", width: 200000, height: 200000},
		{name: "one side too long", width: DefaultMaxDimension + 1, height: 1},
		{name: "max uint", width: ^uint(0), height: ^uint(0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resize(context.Background(), input, tc.width, tc.height)
			assert.ErrorIs(t, err, ErrTooLarge)
		})
	}
}

func TestResizeMaxPixels(t *testing.T) {
	input := encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
		return png.Encode(b, img)
	})

	r := NewResizer(Options{MaxPixels: 1000})
	_, err := r.Resize(context.Background(), input, 100, 11)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = r.Resize(context.Background(), input, 100, 10)
	assert.NoError(t, err)
}

func TestResizeRecoversPanic(t *testing.T) {
	input := encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
		return png.Encode(b, img)
	})

	r := NewResizer(Options{})
	r.scale = func(uint, uint, image.Image, resize.InterpolationFunction) image.Image {
		panic("runtime error: makeslice: len out of range")
	}

	img, err := r.Resize(context.Background(), input, 10, 10)
	assert.Nil(t, img)
	assert.ErrorIs(t, err, ErrPanicked)
}

func TestResizeCanceled(t *testing.T) {
	input := encodeWith(t, func(b *bytes.Buffer, img image.Image) error {
		return png.Encode(b, img)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResizer(Options{}).Resize(ctx, input, 10, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewResizerQualityDefault(t *testing.T) {
	assert.Equal(t, DefaultJPEGQuality, NewResizer(Options{JPEGQuality: 0}).jpegQuality)
	assert.Equal(t, DefaultJPEGQuality, NewResizer(Options{JPEGQuality: 150}).jpegQuality)
	assert.Equal(t, 70, NewResizer(Options{JPEGQuality: 70}).jpegQuality)
}
