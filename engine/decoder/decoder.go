package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
)

// Format identifies an image container recognized by the Decoder.
type Format int

const (
	// FormatUnknown is returned by Sniff for data that is not a supported container.
	FormatUnknown Format = iota

	// FormatWebP is a RIFF/WEBP container, still or animated.
	FormatWebP

	// FormatGIF is a GIF87a/GIF89a container.
	FormatGIF
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatWebP:
		return "webp"
	case FormatGIF:
		return "gif"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxFrames bounds the number of frames a single file may decode to.
	DefaultMaxFrames = 1024

	// DefaultMaxCanvasPixels bounds the canvas area of a single file (4096x4096).
	DefaultMaxCanvasPixels = 4096 * 4096

	// DefaultMaxTotalPixels bounds frames*canvas area of a single file, 256 MiB of RGBA.
	DefaultMaxTotalPixels = 64 << 20
)

var (
	// ErrUnknownFormat is returned when the data is not a recognized container.
	ErrUnknownFormat = errors.New("decoder: unknown image format")

	// ErrInvalidFormat is returned when a recognized container is structurally broken.
	ErrInvalidFormat = errors.New("decoder: invalid image data")

	// ErrTooManyFrames is returned when a file exceeds the configured frame limit.
	ErrTooManyFrames = errors.New("decoder: too many frames")

	// ErrCanvasTooLarge is returned when a file exceeds the configured canvas area.
	ErrCanvasTooLarge = errors.New("decoder: canvas too large")

	// ErrTooManyPixels is returned when the composited frames of a file would exceed the
	// configured total pixel budget.
	ErrTooManyPixels = errors.New("decoder: decoded frames exceed pixel budget")

	// ErrRemoteSource is returned by DecodeStatic for sources the host application must fetch.
	ErrRemoteSource = errors.New("decoder: static source is remote")
)

// RawFrame is one fully composited animation frame in stream order.
type RawFrame struct {
	// Image is the full canvas after this frame has been drawn. Each RawFrame owns its image.
	Image *image.RGBA

	// Timestamp is the absolute end time of this frame measured from the start of the stream.
	Timestamp time.Duration
}

// Timestamps extracts the timestamps of the given frames in order.
//
// Parameters:
//   - frames: the decoded frames
//
// Returns:
//   - []time.Duration: one timestamp per frame
func Timestamps(frames []RawFrame) []time.Duration {
	out := make([]time.Duration, len(frames))
	for i, f := range frames {
		out[i] = f.Timestamp
	}
	return out
}

// limits holds the resource bounds shared by all backends.
type limits struct {
	maxFrames       int
	maxCanvasPixels int
	maxTotalPixels  int
}

// checkCanvas validates a canvas size against the configured limits.
func (l limits) checkCanvas(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidFormat, width, height)
	}
	if width*height > l.maxCanvasPixels {
		return fmt.Errorf("%w: %dx%d", ErrCanvasTooLarge, width, height)
	}
	return nil
}

// checkFrames validates a frame count of a canvas with canvasPixels pixels against the
// configured limits. Every frame is composited to a full canvas copy.
func (l limits) checkFrames(n, canvasPixels int) error {
	if n > l.maxFrames {
		return fmt.Errorf("%w: %d > %d", ErrTooManyFrames, n, l.maxFrames)
	}
	if n*canvasPixels > l.maxTotalPixels {
		return fmt.Errorf("%w: %d frames of %d pixels > %d", ErrTooManyPixels, n, canvasPixels, l.maxTotalPixels)
	}
	return nil
}

// decoder is the implementation of the Decoder interface.
type decoder struct {
	limits limits

	backends map[Format]decoderBackend
}

// Decoder turns the bytes of a still or animated image file into composited RGBA frames.
// The container is detected from magic bytes, never from the file extension.
// A Decoder is safe for concurrent use.
type Decoder interface {
	// Decode decodes every frame of the given file contents.
	// Still images decode to a single frame with a zero timestamp.
	//
	// Parameters:
	//   - data: the complete file contents
	//
	// Returns:
	//   - []RawFrame: the frames in stream order
	//   - error: ErrUnknownFormat, ErrInvalidFormat, a limit error, or a wrapped codec error
	Decode(data []byte) ([]RawFrame, error)

	// DecodeFile reads the file at path and decodes it.
	//
	// Parameters:
	//   - path: the local file to read
	//
	// Returns:
	//   - []RawFrame: the frames in stream order
	//   - error: a wrapped I/O error or any error returned by Decode
	DecodeFile(path string) ([]RawFrame, error)

	// DecodeStatic loads the fallback image of an avatar. Animated WebP and GIF files
	// decode to their first composited frame; PNG and JPEG decode as stills.
	//
	// Parameters:
	//   - src: the static source, which must be local
	//
	// Returns:
	//   - *image.RGBA: the decoded pixels with their origin at (0, 0)
	//   - error: ErrRemoteSource, a wrapped I/O error, ErrUnknownFormat, or a decode error
	DecodeStatic(src common.StaticSource) (*image.RGBA, error)
}

var _ Decoder = &decoder{}

// NewDecoder creates a Decoder with the WebP and GIF backends registered and options applied.
//
// Parameters:
//   - options: a variadic list of DecoderBuilderOption functions to configure the Decoder
//
// Returns:
//   - Decoder: a new Decoder instance
func NewDecoder(options ...DecoderBuilderOption) Decoder {
	d := &decoder{
		limits: limits{
			maxFrames:       DefaultMaxFrames,
			maxCanvasPixels: DefaultMaxCanvasPixels,
			maxTotalPixels:  DefaultMaxTotalPixels,
		},
	}

	for _, option := range options {
		option(d)
	}

	d.backends = map[Format]decoderBackend{
		FormatWebP: newWebPDecoderBackend(d.limits),
		FormatGIF:  newGIFDecoderBackend(d.limits),
	}

	return d
}

func (d *decoder) Decode(data []byte) ([]RawFrame, error) {
	format := Sniff(data)
	backend, ok := d.backends[format]
	if !ok {
		return nil, ErrUnknownFormat
	}
	frames, err := backend.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	return frames, nil
}

func (d *decoder) DecodeFile(path string) ([]RawFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return d.Decode(data)
}

func (d *decoder) DecodeStatic(src common.StaticSource) (*image.RGBA, error) {
	if src.IsRemote() {
		return nil, fmt.Errorf("%w: %s", ErrRemoteSource, src.URL)
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
	}

	format := Sniff(data)
	if backend, ok := d.backends[format]; ok {
		img, err := backend.FirstFrame(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", format, err)
		}
		return img, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if err := d.limits.checkCanvas(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", src.Path, err)
	}
	return common.ToRGBA(img), nil
}

// Sniff detects the container format from the leading magic bytes.
//
// Parameters:
//   - data: the file contents (at least the first 12 bytes)
//
// Returns:
//   - Format: the detected format, or FormatUnknown
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP
	case len(data) >= 6 && (string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a"):
		return FormatGIF
	default:
		return FormatUnknown
	}
}

// cloneRGBA returns a deep copy of an RGBA image.
func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := &image.RGBA{
		Pix:    make([]byte, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)
	return dst
}
