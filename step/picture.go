package step

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
)

// PreviewPicture shrinks an image to fit within a bounding box. Images
// already inside the box pass through byte-identical.
type PreviewPicture struct {
	deps *Deps
}

func (s *PreviewPicture) ProducesMultipleOutputs() bool { return false }

func (s *PreviewPicture) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	maxWidth, err := args.Int("max_width")
	if err != nil {
		return nil, err
	}
	maxHeight, err := args.Int("max_height")
	if err != nil {
		return nil, err
	}

	src, err := resolveInput(ctx, s.deps, in, args)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// Images are small enough to hold in memory.
	raw, err := carrier.ReadAll(ctx, src, s.deps.BufferLimit)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Format("malformed image").WithCause(err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	meta := carrier.Metadata{
		FileName:  src.Metadata().FileName,
		MediaType: "image/" + format,
		Mode:      colorMode(img),
	}
	if name := args.OptionalString("file_name"); name != "" {
		meta.FileName = name
	}

	if width <= maxWidth && height <= maxHeight {
		meta.Width, meta.Height = width, height
		return Single(carrier.NewBytes(raw, meta)), nil
	}

	newWidth, newHeight := fitWithin(width, height, maxWidth, maxHeight)
	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)

	encoded, err := encodeImage(scaled, format)
	if err != nil {
		return nil, err
	}
	meta.Width, meta.Height = newWidth, newHeight
	return Single(carrier.NewBytes(encoded, meta)), nil
}

// fitWithin scales (width, height) down preserving aspect ratio so both
// dimensions fit the box.
func fitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	scale := math.Min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	if w > maxWidth {
		w = maxWidth
	}
	if h > maxHeight {
		h = maxHeight
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func colorMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return "RGBA"
	case *image.Paletted:
		return "P"
	default:
		return "RGB"
	}
}

func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		return nil, errors.Format("unsupported image format " + format)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return buf.Bytes(), nil
}
