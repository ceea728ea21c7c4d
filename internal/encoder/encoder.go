// Package encoder re-encodes images so that they fit a byte budget.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	// MaxAttempts bounds the number of candidate encodings per image.
	MaxAttempts = 10
	// ShrinkRatio is applied to both dimensions when quality cannot drop further.
	ShrinkRatio = 0.85
	// QualityStep is subtracted from the lossy quality between attempts.
	QualityStep = 0.1

	transparencySample    = 64
	transparencyThreshold = 250
)

var (
	ErrInvalidTarget = errors.New("target size must be positive")
	ErrDecode        = errors.New("image could not be decoded")
	ErrEmptyImage    = errors.New("image has no pixels")
)

// Source is an image as read from a file.
type Source struct {
	Data     []byte
	MIMEType string
}

// Constraints bound the output dimensions and the lossy quality range.
type Constraints struct {
	MaxWidth     int
	MaxHeight    int
	MinWidth     int
	MinQuality   float64
	MaxQuality   float64
	StartQuality float64
	// PreferLossless starts with PNG for lossless sources that have no
	// transparency, switching to JPEG only when PNG cannot fit.
	PreferLossless bool
}

// DefaultConstraints returns 1200x1200 bounds, a 640px width floor and a
// 0.5-0.92 quality range starting at 0.78.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxWidth:     1200,
		MaxHeight:    1200,
		MinWidth:     640,
		MinQuality:   0.5,
		MaxQuality:   0.92,
		StartQuality: 0.78,
	}
}

func (c Constraints) withDefaults() Constraints {
	d := DefaultConstraints()
	if c.MaxWidth <= 0 {
		c.MaxWidth = d.MaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = d.MaxHeight
	}
	if c.MinWidth <= 0 {
		c.MinWidth = min(d.MinWidth, c.MaxWidth)
	}
	if c.MinQuality <= 0 {
		c.MinQuality = d.MinQuality
	}
	if c.MaxQuality <= 0 {
		c.MaxQuality = d.MaxQuality
	}
	if c.MaxQuality < c.MinQuality {
		c.MaxQuality = c.MinQuality
	}
	if c.StartQuality <= 0 {
		c.StartQuality = d.StartQuality
	}
	return c
}

func (c Constraints) startQuality() float64 {
	return math.Min(math.Max(c.StartQuality, c.MinQuality), c.MaxQuality)
}

// Result is the encoded image. Size is the decoded payload length of DataURL.
// Original is set when the source bytes were kept unchanged.
type Result struct {
	DataURL  string
	Width    int
	Height   int
	MIMEType string
	Size     int64
	Original bool
}

// Encoder renders images at decreasing quality and resolution until the
// encoding fits the target.
type Encoder struct {
	codec Codec
}

// New creates an Encoder. A nil codec uses StdCodec.
func New(codec Codec) *Encoder {
	if codec == nil {
		codec = StdCodec{}
	}
	return &Encoder{codec: codec}
}

// Encode returns src as a data URL no larger than targetMaxBytes when
// possible. Images that already fit the bounds and the target are returned
// unchanged. Otherwise up to MaxAttempts candidates are rendered, lowering
// JPEG quality first, then shrinking towards MinWidth, then switching a
// lossless rendition to JPEG. When nothing fits, the smallest candidate is
// returned and the caller decides whether to accept it.
func (e *Encoder) Encode(ctx context.Context, src Source, targetMaxBytes int64, c Constraints) (Result, error) {
	if targetMaxBytes <= 0 {
		return Result{}, ErrInvalidTarget
	}
	c = c.withDefaults()

	img, format, err := e.codec.Decode(src.Data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return Result{}, ErrEmptyImage
	}

	ratio := math.Min(math.Min(float64(c.MaxWidth)/float64(width), float64(c.MaxHeight)/float64(height)), 1)
	outWidth := max(1, int(math.Floor(float64(width)*ratio)))
	outHeight := max(1, int(math.Floor(float64(height)*ratio)))

	if outWidth == width && outHeight == height && int64(len(src.Data)) <= targetMaxBytes {
		mimeType := src.MIMEType
		if mimeType == "" {
			mimeType = "image/" + format
		}
		return Result{
			DataURL:  BuildDataURL(mimeType, src.Data),
			Width:    width,
			Height:   height,
			MIMEType: mimeType,
			Size:     int64(len(src.Data)),
			Original: true,
		}, nil
	}

	transparent := HasTransparency(img)
	mimeType := MIMEJPEG
	if transparent || (c.PreferLossless && isLosslessFormat(format)) {
		mimeType = MIMEPNG
	}
	quality := c.startQuality()
	minWidth := min(c.MinWidth, outWidth)
	currentWidth, currentHeight := outWidth, outHeight

	var best Result
	var rendered image.Image
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if rendered == nil || rendered.Bounds().Dx() != currentWidth || rendered.Bounds().Dy() != currentHeight {
			rendered = Resize(img, currentWidth, currentHeight)
		}
		encoded, err := e.codec.Encode(rendered, mimeType, quality)
		if err != nil {
			return Result{}, fmt.Errorf("codec.Encode(%s) > %w", mimeType, err)
		}
		dataURL := BuildDataURL(mimeType, encoded)
		candidate := Result{
			DataURL:  dataURL,
			Width:    currentWidth,
			Height:   currentHeight,
			MIMEType: mimeType,
			Size:     EstimateDataURLSize(dataURL),
		}
		if best.DataURL == "" || candidate.Size < best.Size {
			best = candidate
		}

		if candidate.Size <= targetMaxBytes {
			return candidate, nil
		}

		switch {
		case mimeType == MIMEJPEG && quality > c.MinQuality+0.05:
			quality = math.Max(c.MinQuality, quality-QualityStep)
		case currentWidth > minWidth:
			currentWidth = max(minWidth, int(math.Floor(float64(currentWidth)*ShrinkRatio)))
			currentHeight = max(1, height*currentWidth/width)
		case mimeType != MIMEJPEG && !transparent:
			mimeType = MIMEJPEG
			quality = c.startQuality()
		default:
			return best, nil
		}
	}
	return best, nil
}

// HasTransparency samples a 64x64 thumbnail and reports whether any pixel
// is less than nearly opaque.
func HasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return false
	}
	thumb := image.NewNRGBA(image.Rect(0, 0, transparencySample, transparencySample))
	draw.NearestNeighbor.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)
	for i := 3; i < len(thumb.Pix); i += 4 {
		if thumb.Pix[i] < transparencyThreshold {
			return true
		}
	}
	return false
}

// Resize scales img to width x height.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
