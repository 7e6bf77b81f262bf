package avatar

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
	"github.com/HugoSmits86/nativewebp"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func solidImage(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// writeAnimatedWebP writes an animated WebP whose frames last the given milliseconds.
func writeAnimatedWebP(t *testing.T, dir, name string, durations ...uint) string {
	t.Helper()
	images := make([]image.Image, len(durations))
	for i := range durations {
		images[i] = solidImage(color.RGBA{R: uint8(40 * i), G: 200, B: uint8(255 - 40*i), A: 255})
	}
	var buf bytes.Buffer
	err := nativewebp.EncodeAll(&buf, &nativewebp.Animation{
		Images:    images,
		Durations: durations,
		Disposals: make([]uint, len(durations)),
	}, nil)
	if err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func writeStillWebP(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, solidImage(color.RGBA{R: 9, A: 255}), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T, options ...ServiceBuilderOption) Service {
	t.Helper()
	svc := NewService(options...)
	t.Cleanup(svc.Stop)
	return svc
}

// recordingUploader remembers every warmup upload.
type recordingUploader struct {
	mu      sync.Mutex
	indices []int
	err     error
}

func (u *recordingUploader) UploadFrame(key string, index int, frame common.Frame) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.indices = append(u.indices, index)
	return u.err
}

func (u *recordingUploader) uploaded() []int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int(nil), u.indices...)
}

// countingDecoder counts DecodeFile calls and delegates to the real decoder.
type countingDecoder struct {
	decoder.Decoder
	calls atomic.Int64
}

func newCountingDecoder() *countingDecoder {
	return &countingDecoder{Decoder: decoder.NewDecoder()}
}

func (d *countingDecoder) DecodeFile(path string) ([]decoder.RawFrame, error) {
	d.calls.Add(1)
	return d.Decoder.DecodeFile(path)
}

// panicDecoder panics on every decode.
type panicDecoder struct{}

func (panicDecoder) Decode([]byte) ([]decoder.RawFrame, error) { panic("boom") }

func (panicDecoder) DecodeFile(string) ([]decoder.RawFrame, error) { panic("boom") }

func (panicDecoder) DecodeStatic(common.StaticSource) (*image.RGBA, error) { panic("boom") }

// gatedConverter blocks every conversion until release is called.
// entered receives once when the first conversion starts waiting.
type gatedConverter struct {
	decoder.Converter
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newGatedConverter() *gatedConverter {
	return &gatedConverter{
		Converter: decoder.NewRGBAConverter(),
		gate:      make(chan struct{}),
		entered:   make(chan struct{}, 1),
	}
}

func (c *gatedConverter) Convert(img *image.RGBA) (common.Frame, error) {
	select {
	case c.entered <- struct{}{}:
	default:
	}
	<-c.gate
	return c.Converter.Convert(img)
}

func (c *gatedConverter) release() {
	c.once.Do(func() { close(c.gate) })
}

// flakyConverter fails the conversions whose call index is in fail.
type flakyConverter struct {
	decoder.Converter
	mu    sync.Mutex
	calls int
	fail  map[int]bool
}

func newFlakyConverter(fail ...int) *flakyConverter {
	c := &flakyConverter{Converter: decoder.NewRGBAConverter(), fail: make(map[int]bool)}
	for _, i := range fail {
		c.fail[i] = true
	}
	return c
}

func (c *flakyConverter) Convert(img *image.RGBA) (common.Frame, error) {
	c.mu.Lock()
	i := c.calls
	c.calls++
	c.mu.Unlock()
	if c.fail[i] {
		return common.Frame{}, errors.New("conversion failed")
	}
	return c.Converter.Convert(img)
}
