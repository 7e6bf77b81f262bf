package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/riff"
	"golang.org/x/image/webp"
)

var (
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
	fccALPH = riff.FourCC{'A', 'L', 'P', 'H'}
	fccANIM = riff.FourCC{'A', 'N', 'I', 'M'}
	fccANMF = riff.FourCC{'A', 'N', 'M', 'F'}
)

const (
	vp8xAnimationBit = 1 << 1
	vp8xAlphaBit     = 1 << 4

	anmfHeaderSize    = 16
	anmfDisposeBit    = 1 << 0
	anmfNoBlendingBit = 1 << 1
)

// webpDecoderBackend decodes still and animated WebP files.
// Animated files are demuxed chunk by chunk; each ANMF frame bitstream is re-wrapped as a
// standalone still WebP, decoded, and composited onto the canvas.
type webpDecoderBackend struct {
	limits limits
}

var _ decoderBackend = &webpDecoderBackend{}

func newWebPDecoderBackend(l limits) decoderBackend {
	return &webpDecoderBackend{limits: l}
}

// anmfFrame is a parsed ANMF chunk.
type anmfFrame struct {
	offset       image.Point
	width        int
	height       int
	duration     time.Duration
	dispose      bool
	noBlending   bool
	alph         []byte
	vp8          []byte
	vp8l         []byte
	hasBitstream bool
}

func (b *webpDecoderBackend) Decode(data []byte) ([]RawFrame, error) {
	return b.decode(data, 0)
}

func (b *webpDecoderBackend) FirstFrame(data []byte) (*image.RGBA, error) {
	frames, err := b.decode(data, 1)
	if err != nil {
		return nil, err
	}
	return frames[0].Image, nil
}

// decode composites frames in stream order and stops after stopAfter frames when it is positive.
func (b *webpDecoderBackend) decode(data []byte, stopAfter int) ([]RawFrame, error) {
	formType, reader, err := riff.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if formType != fccWEBP {
		return nil, ErrUnknownFormat
	}

	var (
		canvas   *image.RGBA
		frames   []RawFrame
		elapsed  time.Duration
		previous *image.Rectangle
	)
	for {
		chunkID, chunkLen, chunkData, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch chunkID {
		case fccVP8, fccVP8L:
			if canvas == nil {
				return b.decodeStill(data)
			}

		case fccVP8X:
			if chunkLen != 10 {
				return nil, fmt.Errorf("%w: VP8X chunk length %d", ErrInvalidFormat, chunkLen)
			}
			var hdr [10]byte
			if _, err := io.ReadFull(chunkData, hdr[:]); err != nil {
				return nil, err
			}
			if hdr[0]&vp8xAnimationBit == 0 {
				return b.decodeStill(data)
			}
			width := int(u24(hdr[4:7])) + 1
			height := int(u24(hdr[7:10])) + 1
			if err := b.limits.checkCanvas(width, height); err != nil {
				return nil, err
			}
			canvas = image.NewRGBA(image.Rect(0, 0, width, height))

		case fccANIM:
			// Background color and loop count are ignored: playback always loops
			// and the canvas starts transparent.

		case fccANMF:
			if canvas == nil {
				return nil, fmt.Errorf("%w: ANMF before VP8X", ErrInvalidFormat)
			}
			if err := b.limits.checkFrames(len(frames)+1, canvas.Rect.Dx()*canvas.Rect.Dy()); err != nil {
				return nil, err
			}
			payload, err := io.ReadAll(chunkData)
			if err != nil {
				return nil, err
			}
			frame, err := parseANMF(payload)
			if err != nil {
				return nil, err
			}

			if previous != nil {
				draw.Draw(canvas, *previous, image.Transparent, image.Point{}, draw.Src)
				previous = nil
			}

			img, err := webp.Decode(bytes.NewReader(frame.still()))
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", len(frames), err)
			}
			rect := image.Rectangle{Min: frame.offset, Max: frame.offset.Add(img.Bounds().Size())}.Intersect(canvas.Bounds())
			op := draw.Over
			if frame.noBlending {
				op = draw.Src
			}
			draw.Draw(canvas, rect, img, img.Bounds().Min, op)

			elapsed += frame.duration
			frames = append(frames, RawFrame{Image: cloneRGBA(canvas), Timestamp: elapsed})
			if len(frames) == stopAfter {
				return frames, nil
			}

			if frame.dispose {
				previous = &rect
			}
		}
	}

	if canvas == nil {
		return nil, fmt.Errorf("%w: no image data", ErrInvalidFormat)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: animation has no frames", ErrInvalidFormat)
	}
	return frames, nil
}

// decodeStill decodes a non-animated WebP into a single frame.
func (b *webpDecoderBackend) decodeStill(data []byte) ([]RawFrame, error) {
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := b.limits.checkCanvas(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return []RawFrame{{Image: canvas, Timestamp: 0}}, nil
}

// parseANMF parses an ANMF chunk payload: a 16 byte header followed by
// the frame's ALPH, VP8 or VP8L sub-chunks.
func parseANMF(p []byte) (anmfFrame, error) {
	if len(p) < anmfHeaderSize {
		return anmfFrame{}, fmt.Errorf("%w: short ANMF chunk", ErrInvalidFormat)
	}
	f := anmfFrame{
		offset:     image.Pt(int(u24(p[0:3]))*2, int(u24(p[3:6]))*2),
		width:      int(u24(p[6:9])) + 1,
		height:     int(u24(p[9:12])) + 1,
		duration:   time.Duration(u24(p[12:15])) * time.Millisecond,
		dispose:    p[15]&anmfDisposeBit != 0,
		noBlending: p[15]&anmfNoBlendingBit != 0,
	}

	rest := p[anmfHeaderSize:]
	for len(rest) >= 8 {
		id := riff.FourCC{rest[0], rest[1], rest[2], rest[3]}
		n := int(binary.LittleEndian.Uint32(rest[4:8]))
		rest = rest[8:]
		if n > len(rest) {
			return anmfFrame{}, fmt.Errorf("%w: ANMF sub-chunk %q overruns frame", ErrInvalidFormat, id[:])
		}
		body := rest[:n]
		switch id {
		case fccALPH:
			f.alph = body
		case fccVP8:
			f.vp8 = body
			f.hasBitstream = true
		case fccVP8L:
			f.vp8l = body
			f.hasBitstream = true
		}
		rest = rest[n:]
		if n&1 == 1 && len(rest) > 0 {
			rest = rest[1:]
		}
	}
	if !f.hasBitstream {
		return anmfFrame{}, fmt.Errorf("%w: ANMF chunk without bitstream", ErrInvalidFormat)
	}
	return f, nil
}

// still re-wraps the frame bitstream as a standalone WebP file.
func (f anmfFrame) still() []byte {
	var body bytes.Buffer
	switch {
	case f.vp8l != nil:
		writeChunk(&body, fccVP8L, f.vp8l)
	case f.alph != nil:
		var hdr [10]byte
		hdr[0] = vp8xAlphaBit
		putU24(hdr[4:7], uint32(f.width-1))
		putU24(hdr[7:10], uint32(f.height-1))
		writeChunk(&body, fccVP8X, hdr[:])
		writeChunk(&body, fccALPH, f.alph)
		writeChunk(&body, fccVP8, f.vp8)
	default:
		writeChunk(&body, fccVP8, f.vp8)
	}

	out := make([]byte, 0, 12+body.Len())
	out = append(out, 'R', 'I', 'F', 'F')
	out = binary.LittleEndian.AppendUint32(out, uint32(4+body.Len()))
	out = append(out, fccWEBP[:]...)
	return append(out, body.Bytes()...)
}

func writeChunk(w *bytes.Buffer, id riff.FourCC, data []byte) {
	w.Write(id[:])
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(data)))
	w.Write(n[:])
	w.Write(data)
	if len(data)&1 == 1 {
		w.WriteByte(0)
	}
}

func u24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putU24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
