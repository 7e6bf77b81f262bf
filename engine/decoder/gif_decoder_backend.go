package decoder

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"time"

	"golang.org/x/image/draw"
)

// gifDelayUnit is the unit of GIF frame delays (hundredths of a second).
const gifDelayUnit = 10 * time.Millisecond

// GIF block introducers.
const (
	gifExtension       = 0x21
	gifImageDescriptor = 0x2C
	gifTrailer         = 0x3B

	gifHeaderSize     = 13 // signature and logical screen descriptor
	gifDescriptorSize = 10
	gifColorTableBit  = 0x80
)

// gifDecoderBackend decodes GIF files, honoring per-frame disposal.
type gifDecoderBackend struct {
	limits limits
}

var _ decoderBackend = &gifDecoderBackend{}

func newGIFDecoderBackend(l limits) decoderBackend {
	return &gifDecoderBackend{limits: l}
}

func (b *gifDecoderBackend) config(data []byte) (image.Config, error) {
	cfg, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return cfg, err
	}
	return cfg, b.limits.checkCanvas(cfg.Width, cfg.Height)
}

func (b *gifDecoderBackend) Decode(data []byte) ([]RawFrame, error) {
	cfg, err := b.config(data)
	if err != nil {
		return nil, err
	}

	// gif.DecodeAll keeps every paletted frame, so the limits are enforced before it runs.
	n, err := countGIFFrames(data)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrInvalidFormat)
	}
	if err := b.limits.checkFrames(n, cfg.Width*cfg.Height); err != nil {
		return nil, err
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrInvalidFormat)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	frames := make([]RawFrame, 0, len(g.Image))
	var elapsed time.Duration
	for i, paletted := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var restore *image.RGBA
		if disposal == gif.DisposalPrevious {
			restore = cloneRGBA(canvas)
		}

		bounds := paletted.Bounds().Intersect(canvas.Bounds())
		draw.Draw(canvas, bounds, paletted, bounds.Min, draw.Over)

		if i < len(g.Delay) {
			elapsed += time.Duration(g.Delay[i]) * gifDelayUnit
		}
		frames = append(frames, RawFrame{Image: cloneRGBA(canvas), Timestamp: elapsed})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, bounds, image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = restore
		}
	}

	return frames, nil
}

func (b *gifDecoderBackend) FirstFrame(data []byte) (*image.RGBA, error) {
	cfg, err := b.config(data)
	if err != nil {
		return nil, err
	}
	img, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	bounds := img.Bounds().Intersect(canvas.Bounds())
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Over)
	return canvas, nil
}

// countGIFFrames walks the block structure of a GIF and counts its image descriptors
// without decompressing any pixel data. A missing trailer is left for gif.DecodeAll to judge.
func countGIFFrames(data []byte) (int, error) {
	if len(data) < gifHeaderSize {
		return 0, fmt.Errorf("%w: short gif header", ErrInvalidFormat)
	}
	pos := gifHeaderSize + colorTableSize(data[10])

	n := 0
	for pos < len(data) {
		switch data[pos] {
		case gifExtension:
			end, err := skipSubBlocks(data, pos+2)
			if err != nil {
				return n, err
			}
			pos = end

		case gifImageDescriptor:
			if pos+gifDescriptorSize > len(data) {
				return n, fmt.Errorf("%w: truncated gif image descriptor", ErrInvalidFormat)
			}
			flags := data[pos+gifDescriptorSize-1]
			// the byte after the local color table is the LZW minimum code size
			end, err := skipSubBlocks(data, pos+gifDescriptorSize+colorTableSize(flags)+1)
			if err != nil {
				return n, err
			}
			pos = end
			n++

		case gifTrailer:
			return n, nil

		default:
			return n, fmt.Errorf("%w: unknown gif block 0x%02x", ErrInvalidFormat, data[pos])
		}
	}
	return n, nil
}

// colorTableSize returns the byte size of the color table announced by a GIF flags byte.
func colorTableSize(flags byte) int {
	if flags&gifColorTableBit == 0 {
		return 0
	}
	return 3 << ((flags & 0x07) + 1)
}

// skipSubBlocks returns the offset just past the data sub-block sequence starting at pos.
func skipSubBlocks(data []byte, pos int) (int, error) {
	for {
		if pos >= len(data) {
			return pos, fmt.Errorf("%w: truncated gif data", ErrInvalidFormat)
		}
		size := int(data[pos])
		pos++
		if size == 0 {
			return pos, nil
		}
		pos += size
	}
}
