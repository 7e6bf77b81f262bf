package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/HugoSmits86/nativewebp"
)

// ErrEmptyImage is returned when a converter is given an image without pixels.
var ErrEmptyImage = errors.New("decoder: empty image")

// Converter turns a composited RGBA canvas into a renderable common.Frame.
// Implementations must be safe for concurrent use.
type Converter interface {
	// Format returns the encoding of the frames this converter produces.
	Format() common.FrameFormat

	// Convert encodes one canvas into a frame.
	//
	// Parameters:
	//   - img: the composited canvas; the converter must not retain it unless it owns it
	//
	// Returns:
	//   - common.Frame: the encoded frame
	//   - error: error if the canvas could not be encoded
	Convert(img *image.RGBA) (common.Frame, error)
}

// ConverterByName returns the converter registered under name ("png", "rgba" or "webp").
// An empty name selects png.
//
// Parameters:
//   - name: the converter name, case insensitive
//
// Returns:
//   - Converter: the matching converter
//   - error: error if the name is unknown
func ConverterByName(name string) (Converter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "png":
		return NewPNGConverter(), nil
	case "rgba", "raw":
		return NewRGBAConverter(), nil
	case "webp":
		return NewWebPConverter(), nil
	default:
		return nil, fmt.Errorf("unknown frame converter %q", name)
	}
}

type pngConverter struct {
	encoder *png.Encoder
}

// NewPNGConverter returns a converter producing FormatPNG frames.
func NewPNGConverter() Converter {
	return &pngConverter{encoder: &png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (c *pngConverter) Format() common.FrameFormat { return common.FormatPNG }

func (c *pngConverter) Convert(img *image.RGBA) (common.Frame, error) {
	if err := checkImage(img); err != nil {
		return common.Frame{}, err
	}
	var buf bytes.Buffer
	if err := c.encoder.Encode(&buf, img); err != nil {
		return common.Frame{}, fmt.Errorf("failed to encode png: %w", err)
	}
	return newFrame(common.FormatPNG, img, buf.Bytes()), nil
}

type rgbaConverter struct{}

// NewRGBAConverter returns a converter producing FormatRGBA frames.
func NewRGBAConverter() Converter {
	return &rgbaConverter{}
}

func (c *rgbaConverter) Format() common.FrameFormat { return common.FormatRGBA }

func (c *rgbaConverter) Convert(img *image.RGBA) (common.Frame, error) {
	if err := checkImage(img); err != nil {
		return common.Frame{}, err
	}
	rgba := common.ToRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	pix := make([]byte, w*h*4)
	for y := range h {
		copy(pix[y*w*4:(y+1)*w*4], rgba.Pix[y*rgba.Stride:y*rgba.Stride+w*4])
	}
	return newFrame(common.FormatRGBA, img, pix), nil
}

type webpConverter struct{}

// NewWebPConverter returns a converter producing lossless FormatWebP frames.
func NewWebPConverter() Converter {
	return &webpConverter{}
}

func (c *webpConverter) Format() common.FrameFormat { return common.FormatWebP }

func (c *webpConverter) Convert(img *image.RGBA) (common.Frame, error) {
	if err := checkImage(img); err != nil {
		return common.Frame{}, err
	}
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return common.Frame{}, fmt.Errorf("failed to encode webp: %w", err)
	}
	return newFrame(common.FormatWebP, img, buf.Bytes()), nil
}

func checkImage(img *image.RGBA) error {
	if img == nil || img.Rect.Empty() {
		return ErrEmptyImage
	}
	return nil
}

func newFrame(format common.FrameFormat, img *image.RGBA, data []byte) common.Frame {
	return common.Frame{
		Format: format,
		Width:  uint32(img.Rect.Dx()),
		Height: uint32(img.Rect.Dy()),
		Data:   data,
	}
}
