package imaging

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

	"github.com/h2non/filetype"
	svg "github.com/h2non/go-is-svg"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeBMP  = "image/bmp"
	MimeTIFF = "image/tiff"
	MimeWEBP = "image/webp"
	MimeSVG  = "image/svg+xml"

	DefaultInterpolation = resize.Bilinear
	DefaultJPEGQuality   = 85
	DefaultMaxDimension  = 10000
	DefaultMaxPixels     = 100_000_000

	// filetype only needs the first 261 bytes to match a format
	headerSize = 261
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("target resolution exceeds the configured maximum")
	ErrPanicked          = errors.New("image engine panicked")
)

type Options struct {
	Interpolation resize.InterpolationFunction
	JPEGQuality   int
	// MaxDimension caps width and height of the output. Zero means DefaultMaxDimension.
	MaxDimension uint
	// MaxPixels caps width*height of the output. Zero means DefaultMaxPixels.
	MaxPixels uint64
}

// Image is an encoded resize result.
type Image struct {
	Data        []byte
	ContentType string
	Width       uint
	Height      uint
}

type Resizer struct {
	interpolation resize.InterpolationFunction
	jpegQuality   int
	maxDimension  uint
	maxPixels     uint64
	pngEncoder    png.Encoder
	scale         func(width, height uint, img image.Image, interp resize.InterpolationFunction) image.Image
}

func NewResizer(opts Options) *Resizer {
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	maxDimension := opts.MaxDimension
	if maxDimension == 0 {
		maxDimension = DefaultMaxDimension
	}
	maxPixels := opts.MaxPixels
	if maxPixels == 0 {
		maxPixels = DefaultMaxPixels
	}

	return &Resizer{
		interpolation: opts.Interpolation,
		jpegQuality:   quality,
		maxDimension:  maxDimension,
		maxPixels:     maxPixels,
		pngEncoder:    png.Encoder{CompressionLevel: png.BestCompression},
		scale:         resize.Resize,
	}
}

// Resize scales data to exactly width x height and re-encodes it in the
// source format. Vector images are returned untouched. Targets beyond the
// configured dimension or pixel caps fail with ErrTooLarge before anything
// is allocated, and a panic inside a codec is returned as an error.
func (r *Resizer) Resize(ctx context.Context, data []byte, width, height uint) (img *Image, err error) {
	if width > r.maxDimension || height > r.maxDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d per side", ErrTooLarge, width, height, r.maxDimension)
	}
	if width > 0 && uint64(height) > r.maxPixels/uint64(width) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, width, height, r.maxPixels)
	}

	defer func() {
		if rec := recover(); rec != nil {
			img = nil
			err = fmt.Errorf("%w: %v", ErrPanicked, rec)
		}
	}()

	if svg.IsSVG(data) {
		// need no conversion or resize
		return &Image{Data: data, ContentType: MimeSVG, Width: width, Height: height}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	original, format, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	resized := r.scale(width, height, original, r.interpolation)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	contentType, err := r.encode(buf, resized, format)
	if err != nil {
		return nil, fmt.Errorf("encode image error: %w", err)
	}

	return &Image{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       width,
		Height:      height,
	}, nil
}

// DecodeImage sniffs the raster format from the header and decodes it.
// It returns the decoded image and its MIME type.
func DecodeImage(data []byte) (image.Image, string, error) {
	head := data
	if len(head) > headerSize {
		head = head[:headerSize]
	}

	if !filetype.IsImage(head) {
		return nil, "", ErrUnsupportedFormat
	}

	t, err := filetype.Match(head)
	if err != nil {
		return nil, "", fmt.Errorf("could not guess image format: %w", err)
	}
	format := t.MIME.Value

	var rd io.Reader = bytes.NewReader(data)
	var img image.Image
	switch format {
	case MimeBMP:
		img, err = bmp.Decode(rd)
	case MimeWEBP:
		img, err = webp.Decode(rd)
	case MimeTIFF:
		img, err = tiff.Decode(rd)
	case MimeJPEG:
		img, err = jpeg.Decode(rd)
	case MimeGIF:
		img, err = gif.Decode(rd)
	case MimePNG:
		img, err = png.Decode(rd)
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, "", fmt.Errorf("could not decode %s image: %w", format, err)
	}

	return img, format, nil
}

func (r *Resizer) encode(w io.Writer, img image.Image, format string) (string, error) {
	switch format {
	case MimeJPEG:
		return MimeJPEG, jpeg.Encode(w, img, &jpeg.Options{Quality: r.jpegQuality})
	case MimeGIF:
		return MimeGIF, gif.Encode(w, img, nil)
	case MimeBMP:
		return MimeBMP, bmp.Encode(w, img)
	case MimeTIFF:
		return MimeTIFF, tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		// png, and webp which has no encoder in x/image
		return MimePNG, r.pngEncoder.Encode(w, img)
	}
}
