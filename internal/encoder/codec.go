package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Codec decodes source images and encodes rendered ones.
type Codec interface {
	// Decode returns the image and its format name, e.g. "png".
	Decode(data []byte) (image.Image, string, error)
	// Encode renders img as mimeType. Quality in (0, 1] applies to lossy formats.
	Encode(img image.Image, mimeType string, quality float64) ([]byte, error)
}

// StdCodec decodes JPEG, PNG, GIF, WebP, BMP and TIFF and encodes JPEG and PNG.
type StdCodec struct{}

// Decode implements Codec.
func (StdCodec) Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("image.Decode() > %w", err)
	}
	return img, format, nil
}

// Encode implements Codec.
func (StdCodec) Encode(img image.Image, mimeType string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	switch mimeType {
	case MIMEJPEG:
		q := int(math.Round(quality * 100))
		q = min(max(q, 1), 100)
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("jpeg.Encode() > %w", err)
		}
	case MIMEPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("png.Encode() > %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	return buf.Bytes(), nil
}

func isLosslessFormat(format string) bool {
	switch format {
	case "png", "gif", "bmp", "tiff":
		return true
	}
	return false
}
