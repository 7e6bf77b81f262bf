package decoder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/HugoSmits86/nativewebp"
)

var palette = []color.RGBA{
	{R: 255, A: 255},
	{G: 255, A: 255},
	{B: 255, A: 255},
	{R: 255, G: 255, A: 255},
	{R: 255, B: 255, A: 255},
}

func solid(rect image.Rectangle, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encodeWebPAnimation(t *testing.T, images []image.Image, durations, disposals []uint) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := nativewebp.EncodeAll(&buf, &nativewebp.Animation{
		Images:    images,
		Durations: durations,
		Disposals: disposals,
	}, nil)
	if err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	return buf.Bytes()
}

func solidWebPAnimation(t *testing.T, durations []uint) []byte {
	t.Helper()
	images := make([]image.Image, len(durations))
	for i := range durations {
		images[i] = solid(image.Rect(0, 0, 8, 8), palette[i%len(palette)])
	}
	return encodeWebPAnimation(t, images, durations, make([]uint, len(durations)))
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8L"), FormatWebP},
		{"gif89a", []byte("GIF89a\x01\x00"), FormatGIF},
		{"gif87a", []byte("GIF87a\x01\x00"), FormatGIF},
		{"wave", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatUnknown},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0d"), FormatUnknown},
		{"short", []byte("RIFF"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Fatalf("Sniff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeAnimatedWebP(t *testing.T) {
	data := solidWebPAnimation(t, []uint{0, 100, 150, 50, 120})

	frames, err := NewDecoder().Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("got %d frames, want 5", len(frames))
	}

	wantTimestamps := []time.Duration{0, 100 * time.Millisecond, 250 * time.Millisecond, 300 * time.Millisecond, 420 * time.Millisecond}
	for i, ts := range Timestamps(frames) {
		if ts != wantTimestamps[i] {
			t.Errorf("frame %d timestamp = %v, want %v", i, ts, wantTimestamps[i])
		}
	}

	for i, f := range frames {
		if f.Image.Bounds() != image.Rect(0, 0, 8, 8) {
			t.Fatalf("frame %d bounds = %v", i, f.Image.Bounds())
		}
		if got := f.Image.RGBAAt(4, 4); got != palette[i] {
			t.Errorf("frame %d pixel = %v, want %v", i, got, palette[i])
		}
	}
}

func TestDecodeWebPCompositing(t *testing.T) {
	red := solid(image.Rect(0, 0, 8, 8), palette[0])
	blue := solid(image.Rect(2, 2, 6, 6), palette[2])

	t.Run("keep", func(t *testing.T) {
		data := encodeWebPAnimation(t, []image.Image{red, blue}, []uint{50, 50}, []uint{0, 0})
		frames, err := NewDecoder().Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got := frames[1].Image.RGBAAt(0, 0); got != palette[0] {
			t.Errorf("outside sub-frame = %v, want previous red", got)
		}
		if got := frames[1].Image.RGBAAt(3, 3); got != palette[2] {
			t.Errorf("inside sub-frame = %v, want blue", got)
		}
	})

	t.Run("dispose to background", func(t *testing.T) {
		data := encodeWebPAnimation(t, []image.Image{red, blue}, []uint{50, 50}, []uint{1, 0})
		frames, err := NewDecoder().Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got := frames[0].Image.RGBAAt(0, 0); got != palette[0] {
			t.Errorf("frame 0 = %v, want red", got)
		}
		if got := frames[1].Image.RGBAAt(0, 0); got != (color.RGBA{}) {
			t.Errorf("disposed area = %v, want transparent", got)
		}
		if got := frames[1].Image.RGBAAt(3, 3); got != palette[2] {
			t.Errorf("inside sub-frame = %v, want blue", got)
		}
	})
}

func TestDecodeFramesAreIndependent(t *testing.T) {
	data := solidWebPAnimation(t, []uint{10, 10})
	frames, err := NewDecoder().Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	frames[0].Image.SetRGBA(0, 0, color.RGBA{})
	if got := frames[1].Image.RGBAAt(0, 0); got != palette[1] {
		t.Fatalf("frames share pixels: frame 1 = %v", got)
	}
}

func TestDecodeStillWebP(t *testing.T) {
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, solid(image.Rect(0, 0, 5, 3), palette[3]), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	frames, err := NewDecoder().Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Timestamp != 0 {
		t.Errorf("timestamp = %v, want 0", frames[0].Timestamp)
	}
	if frames[0].Image.Bounds() != image.Rect(0, 0, 5, 3) {
		t.Errorf("bounds = %v", frames[0].Image.Bounds())
	}
	if got := frames[0].Image.RGBAAt(2, 1); got != palette[3] {
		t.Errorf("pixel = %v, want %v", got, palette[3])
	}
}

func encodeGIF(t *testing.T, delays []int, disposal []byte, rects []image.Rectangle) []byte {
	t.Helper()
	pal := color.Palette{color.Transparent}
	for _, c := range palette {
		pal = append(pal, c)
	}
	g := &gif.GIF{
		Config:   image.Config{ColorModel: pal, Width: 8, Height: 8},
		Delay:    delays,
		Disposal: disposal,
	}
	for i, r := range rects {
		img := image.NewPaletted(r, pal)
		for j := range img.Pix {
			img.Pix[j] = uint8(i%len(palette) + 1)
		}
		g.Image = append(g.Image, img)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("gif.EncodeAll: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeGIF(t *testing.T) {
	full := image.Rect(0, 0, 8, 8)
	data := encodeGIF(t, []int{10, 20, 5}, nil, []image.Rectangle{full, full, full})

	frames, err := NewDecoder().Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	want := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 350 * time.Millisecond}
	for i, f := range frames {
		if f.Timestamp != want[i] {
			t.Errorf("frame %d timestamp = %v, want %v", i, f.Timestamp, want[i])
		}
		if got := f.Image.RGBAAt(1, 1); got != palette[i] {
			t.Errorf("frame %d pixel = %v, want %v", i, got, palette[i])
		}
	}
}

func TestDecodeGIFDisposal(t *testing.T) {
	full := image.Rect(0, 0, 8, 8)
	inner := image.Rect(2, 2, 6, 6)

	t.Run("background", func(t *testing.T) {
		data := encodeGIF(t, []int{1, 1, 1}, []byte{gif.DisposalNone, gif.DisposalBackground, gif.DisposalNone},
			[]image.Rectangle{full, inner, image.Rect(0, 0, 1, 1)})
		frames, err := NewDecoder().Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got := frames[2].Image.RGBAAt(3, 3); got != (color.RGBA{}) {
			t.Errorf("disposed area = %v, want transparent", got)
		}
		if got := frames[2].Image.RGBAAt(7, 7); got != palette[0] {
			t.Errorf("untouched area = %v, want red", got)
		}
	})

	t.Run("previous", func(t *testing.T) {
		data := encodeGIF(t, []int{1, 1, 1}, []byte{gif.DisposalNone, gif.DisposalPrevious, gif.DisposalNone},
			[]image.Rectangle{full, inner, image.Rect(0, 0, 1, 1)})
		frames, err := NewDecoder().Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got := frames[1].Image.RGBAAt(3, 3); got != palette[1] {
			t.Errorf("frame 1 = %v, want green", got)
		}
		if got := frames[2].Image.RGBAAt(3, 3); got != palette[0] {
			t.Errorf("restored area = %v, want red", got)
		}
	})
}

func TestDecodeErrors(t *testing.T) {
	animation := solidWebPAnimation(t, []uint{10, 10, 10})
	full := image.Rect(0, 0, 8, 8)
	animatedGIF := encodeGIF(t, []int{1, 1, 1}, nil, []image.Rectangle{full, full, full})

	tests := []struct {
		name    string
		decoder Decoder
		data    []byte
		want    error
	}{
		{"unknown", NewDecoder(), []byte("definitely not an image"), ErrUnknownFormat},
		{"empty", NewDecoder(), nil, ErrUnknownFormat},
		{"too many frames", NewDecoder(WithMaxFrames(2)), animation, ErrTooManyFrames},
		{"canvas too large", NewDecoder(WithMaxCanvasPixels(16)), animation, ErrCanvasTooLarge},
		{"pixel budget", NewDecoder(WithMaxTotalPixels(2 * 64)), animation, ErrTooManyPixels},
		{"gif too many frames", NewDecoder(WithMaxFrames(2)), animatedGIF, ErrTooManyFrames},
		{"gif pixel budget", NewDecoder(WithMaxTotalPixels(2 * 64)), animatedGIF, ErrTooManyPixels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.decoder.Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	animation := solidWebPAnimation(t, []uint{10, 10})
	truncated := animation[:len(animation)/2]

	corrupt := []struct {
		name string
		data []byte
	}{
		{"truncated animation", truncated},
		{"garbage webp", append([]byte("RIFF\x10\x00\x00\x00WEBP"), bytes.Repeat([]byte{0xff}, 12)...)},
		{"garbage gif", append([]byte("GIF89a"), bytes.Repeat([]byte{0x01}, 16)...)},
	}
	for _, tt := range corrupt {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDecoder().Decode(tt.data); err == nil {
				t.Fatal("Decode() succeeded on corrupt data")
			}
		})
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatar.bin")
	if err := os.WriteFile(path, solidWebPAnimation(t, []uint{30, 40}), 0o644); err != nil {
		t.Fatal(err)
	}

	frames, err := NewDecoder().DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	if _, err := NewDecoder().DecodeFile(filepath.Join(t.TempDir(), "missing.webp")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("DecodeFile(missing) error = %v, want ErrNotExist", err)
	}
}

func TestDecodeWithinPixelBudget(t *testing.T) {
	frames, err := NewDecoder(WithMaxTotalPixels(3 * 64)).Decode(solidWebPAnimation(t, []uint{10, 10, 10}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
}

func TestCountGIFFrames(t *testing.T) {
	full := image.Rect(0, 0, 8, 8)
	data := encodeGIF(t, []int{1, 2, 3, 4}, nil, []image.Rectangle{full, full, image.Rect(1, 1, 3, 3), full})

	n, err := countGIFFrames(data)
	if err != nil {
		t.Fatalf("countGIFFrames: %v", err)
	}
	if n != 4 {
		t.Fatalf("counted %d frames, want 4", n)
	}

	if _, err := countGIFFrames(data[:len(data)-8]); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("truncated gif error = %v, want ErrInvalidFormat", err)
	}
}

func TestDecodeStatic(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) common.StaticSource {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return common.NewStaticSource(path)
	}

	var still bytes.Buffer
	if err := png.Encode(&still, solid(image.Rect(0, 0, 4, 2), palette[4])); err != nil {
		t.Fatal(err)
	}
	full := image.Rect(0, 0, 8, 8)

	tests := []struct {
		name   string
		src    common.StaticSource
		bounds image.Rectangle
		want   color.RGBA
	}{
		{"animated webp", write("spin.webp", solidWebPAnimation(t, []uint{10, 10, 10})), full, palette[0]},
		{"animated gif", write("spin.gif", encodeGIF(t, []int{1, 1}, nil, []image.Rectangle{full, full})), full, palette[0]},
		{"png", write("still.png", still.Bytes()), image.Rect(0, 0, 4, 2), palette[4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewDecoder().DecodeStatic(tt.src)
			if err != nil {
				t.Fatalf("DecodeStatic: %v", err)
			}
			if img.Bounds() != tt.bounds {
				t.Fatalf("bounds = %v, want %v", img.Bounds(), tt.bounds)
			}
			if got := img.RGBAAt(1, 1); got != tt.want {
				t.Fatalf("pixel = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("first frame ignores frame limit", func(t *testing.T) {
		src := write("long.webp", solidWebPAnimation(t, []uint{10, 10, 10, 10}))
		if _, err := NewDecoder(WithMaxFrames(2)).DecodeStatic(src); err != nil {
			t.Fatalf("DecodeStatic: %v", err)
		}
	})

	t.Run("remote", func(t *testing.T) {
		_, err := NewDecoder().DecodeStatic(common.NewStaticSource("https://example.com/a.png"))
		if !errors.Is(err, ErrRemoteSource) {
			t.Fatalf("error = %v, want ErrRemoteSource", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewDecoder().DecodeStatic(write("notes.txt", []byte("not an image at all")))
		if !errors.Is(err, ErrUnknownFormat) {
			t.Fatalf("error = %v, want ErrUnknownFormat", err)
		}
	})
}
