// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// FrameFormat identifies how the bytes of a Frame are encoded.
type FrameFormat int

const (
	// FormatRGBA stores raw RGBA pixels, 4 bytes per pixel, row-major.
	FormatRGBA FrameFormat = iota

	// FormatPNG stores a complete PNG container.
	FormatPNG

	// FormatWebP stores a complete lossless WebP container.
	FormatWebP
)

// String returns the lowercase name of the format.
func (f FrameFormat) String() string {
	switch f {
	case FormatRGBA:
		return "rgba"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	default:
		return fmt.Sprintf("FrameFormat(%d)", int(f))
	}
}

// Frame is a single renderable image produced by the decoder.
// Frames are immutable once published; renderers must not modify Data.
type Frame struct {
	// Format describes the encoding of Data.
	Format FrameFormat
	// Width is the width of the frame in pixels.
	Width uint32
	// Height is the height of the frame in pixels.
	Height uint32
	// Data holds the encoded frame bytes. For FormatRGBA this is Width*Height*4 bytes.
	Data []byte
}

// Decode converts the frame to an RGBA image regardless of its encoding.
// For FormatRGBA frames the returned image shares Data and must be treated as read-only.
//
// Returns:
//   - *image.RGBA: the decoded pixels
//   - error: error if the frame data is malformed
func (f Frame) Decode() (*image.RGBA, error) {
	switch f.Format {
	case FormatRGBA:
		want := int(f.Width) * int(f.Height) * 4
		if len(f.Data) != want {
			return nil, fmt.Errorf("rgba frame has %d bytes, want %d", len(f.Data), want)
		}
		return &image.RGBA{
			Pix:    f.Data,
			Stride: int(f.Width) * 4,
			Rect:   image.Rect(0, 0, int(f.Width), int(f.Height)),
		}, nil
	case FormatPNG:
		img, err := png.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode png frame: %w", err)
		}
		return ToRGBA(img), nil
	case FormatWebP:
		img, err := webp.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp frame: %w", err)
		}
		return ToRGBA(img), nil
	default:
		return nil, fmt.Errorf("unsupported frame format %v", f.Format)
	}
}

// StagingData returns the frame as tightly packed RGBA bytes suitable for a GPU texture upload.
//
// Returns:
//   - TextureStagingData: the pixel data with its dimensions
//   - error: error if the frame could not be decoded
func (f Frame) StagingData() (TextureStagingData, error) {
	img, err := f.Decode()
	if err != nil {
		return TextureStagingData{}, err
	}
	return TextureStagingData{
		Pixels: img.Pix,
		Width:  uint32(img.Rect.Dx()),
		Height: uint32(img.Rect.Dy()),
	}, nil
}

// TextureStagingData holds RGBA pixel data pending GPU upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// Size is a target render size in pixels.
type Size struct {
	Width  int
	Height int
}

// Square returns a Size with equal width and height.
func Square(px int) Size {
	return Size{Width: px, Height: px}
}

// StaticSource is the immediately available fallback image of an avatar.
// Exactly one of Path or URL is set: local files use Path, anything else is kept as a URL string
// and is left to the host application to fetch.
type StaticSource struct {
	// Path is the local filesystem path of the image.
	Path string

	// URL is the remote location of the image.
	URL string
}

// NewStaticSource picks the source kind for a reference the same way the host UI does:
// an existing local path becomes a Path source, everything else a URL source.
//
// Parameters:
//   - ref: a local path or a URL string
//
// Returns:
//   - StaticSource: the resolved source
func NewStaticSource(ref string) StaticSource {
	ref = strings.TrimSpace(ref)
	if local, ok := strings.CutPrefix(ref, "file://"); ok {
		ref = local
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return StaticSource{Path: ref}
	}
	return StaticSource{URL: ref}
}

// IsRemote reports whether the source must be fetched by the host application.
func (s StaticSource) IsRemote() bool {
	return s.Path == ""
}

// String returns the path or URL of the source.
func (s StaticSource) String() string {
	if s.Path != "" {
		return s.Path
	}
	return s.URL
}

// ToRGBA converts any image to an *image.RGBA with its origin at (0, 0).
// Images that already satisfy this are returned as-is.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - *image.RGBA: the converted image
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
