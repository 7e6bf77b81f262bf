// Package terminal draws avatar instances into a tcell screen using half-block cells,
// two vertical pixels per cell.
package terminal

import (
	"hash/fnv"
	"image"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/Carmen-Shannon/oxy-avatar/engine/avatar"
	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

const (
	// halfBlock paints the top pixel with the foreground and the bottom pixel with the background.
	halfBlock = '▀'

	defaultCellWidth = 16
	slotGapX         = 2
	slotGapY         = 1
	labelRows        = 1
)

var defaultBackground = colorful.Color{R: 0x1e / 255.0, G: 0x1e / 255.0, B: 0x2e / 255.0}

type frameKey struct {
	key   avatar.Key
	index int
	width int
}

// presenter is the implementation of the Presenter interface.
type presenter struct {
	mu        sync.Mutex
	instances []avatar.Instance

	screen     tcell.Screen
	background colorful.Color
	cellWidth  int
	decoder    decoder.Decoder
	logger     zerolog.Logger

	// Warmup uploads arrive from inside Instance.Frame during Render, so the caches
	// have their own lock. Scaled images are immutable once stored.
	cacheMu sync.Mutex
	frames  map[frameKey]*image.RGBA
	statics map[string]*image.RGBA
}

// Presenter is an engine view that lays out avatar instances in a grid on a terminal screen.
// Every render pass asks each instance what to draw and paints it as a circular avatar
// blended onto the background color.
//
// A Presenter is also an avatar.FrameUploader: passed to avatar.WithFrameUploader it receives
// every frame once during warmup and keeps it scaled to the avatar size, so playback never
// decodes on the render thread.
type Presenter interface {
	avatar.FrameUploader

	// Active reports whether the presenter should be rendered.
	Active() bool

	// Render draws every instance and shows the screen.
	//
	// Parameters:
	//   - dt: seconds since the previous render pass
	Render(dt float32)

	// AddInstance appends an instance to the grid. A local static source is decoded and
	// scaled here, on the caller's goroutine.
	//
	// Parameters:
	//   - inst: the avatar instance to draw
	AddInstance(inst avatar.Instance)

	// Instances returns the instances in grid order.
	//
	// Returns:
	//   - []avatar.Instance: a copy of the instance list
	Instances() []avatar.Instance

	// CellWidth returns the avatar width in terminal cells.
	CellWidth() int
}

var _ Presenter = &presenter{}

// NewPresenter creates a presenter drawing to screen. The screen must already be initialized.
//
// Parameters:
//   - screen: the tcell screen to draw to
//   - options: optional builder options
//
// Returns:
//   - Presenter: the new presenter
func NewPresenter(screen tcell.Screen, options ...PresenterBuilderOption) Presenter {
	if screen == nil {
		panic("terminal: nil screen")
	}
	p := &presenter{
		screen:     screen,
		background: defaultBackground,
		cellWidth:  defaultCellWidth,
		logger:     zerolog.Nop(),
		frames:     make(map[frameKey]*image.RGBA),
		statics:    make(map[string]*image.RGBA),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.decoder == nil {
		p.decoder = decoder.NewDecoder()
	}
	return p
}

func (p *presenter) Active() bool {
	return true
}

func (p *presenter) AddInstance(inst avatar.Instance) {
	p.loadStatic(inst.Static())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances = append(p.instances, inst)
}

func (p *presenter) UploadFrame(key string, index int, frame common.Frame) error {
	src, err := frame.Decode()
	if err != nil {
		return err
	}
	w, h := p.avatarSize()
	img := scale(src, w, h)

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.frames[frameKey{key: avatar.Key(key), index: index, width: w}] = img
	return nil
}

// loadStatic decodes and caches a static source once. Sources that cannot be loaded,
// remote ones included, are drawn as placeholders.
func (p *presenter) loadStatic(src common.StaticSource) {
	ref := src.String()
	p.cacheMu.Lock()
	_, ok := p.statics[ref]
	p.cacheMu.Unlock()
	if ok {
		return
	}

	img, err := p.decoder.DecodeStatic(src)
	if err != nil {
		p.logger.Debug().Err(err).Str("source", ref).Msg("static image unavailable, drawing placeholder")
		return
	}
	w, h := p.avatarSize()
	scaled := scale(img, w, h)

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.statics[ref] = scaled
}

func (p *presenter) Instances() []avatar.Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]avatar.Instance(nil), p.instances...)
}

func (p *presenter) CellWidth() int {
	return p.cellWidth
}

func (p *presenter) Render(dt float32) {
	instances := p.Instances()

	p.screen.Fill(' ', tcell.StyleDefault.Background(toTcell(p.background)))

	screenW, screenH := p.screen.Size()
	rows := avatarRows(p.cellWidth)
	slotW := p.cellWidth + slotGapX
	slotH := rows + labelRows + slotGapY
	cols := max(1, screenW/slotW)

	for i, inst := range instances {
		x0 := (i % cols) * slotW
		y0 := (i / cols) * slotH
		if y0 >= screenH {
			break
		}
		sel := inst.Frame()
		p.drawAvatar(x0, y0, p.pixels(sel), placeholderColor(sel.Key))
		p.drawLabel(x0, y0+rows, sel)
	}

	p.screen.Show()
}

// pixels returns the image for a selection scaled to the avatar pixel size.
// A nil result means no image is available and a placeholder is drawn.
// Animation frames missing from the cache, because no uploader was wired, are decoded here.
func (p *presenter) pixels(sel avatar.Selection) *image.RGBA {
	if !sel.IsAnimated() {
		return p.staticPixels(sel)
	}

	w, _ := p.avatarSize()
	fk := frameKey{key: sel.Key, index: sel.Index, width: w}
	p.cacheMu.Lock()
	img, ok := p.frames[fk]
	p.cacheMu.Unlock()
	if ok {
		return img
	}
	if err := p.UploadFrame(sel.Key.String(), sel.Index, sel.Frame); err != nil {
		p.logger.Debug().Err(err).Str("key", sel.Key.String()).Int("frame", sel.Index).Msg("frame decode failed")
		return p.staticPixels(sel)
	}
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.frames[fk]
}

func (p *presenter) staticPixels(sel avatar.Selection) *image.RGBA {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.statics[sel.Static.String()]
}

// avatarSize returns the avatar size in pixels.
func (p *presenter) avatarSize() (int, int) {
	return p.cellWidth, avatarRows(p.cellWidth) * 2
}

func (p *presenter) drawAvatar(x0, y0 int, img *image.RGBA, placeholder colorful.Color) {
	w, h := p.avatarSize()
	for row := 0; row < h/2; row++ {
		for col := 0; col < w; col++ {
			top := p.pixelColor(img, placeholder, col, row*2, w, h)
			bottom := p.pixelColor(img, placeholder, col, row*2+1, w, h)
			style := tcell.StyleDefault.Foreground(toTcell(top)).Background(toTcell(bottom))
			p.screen.SetContent(x0+col, y0+row, halfBlock, nil, style)
		}
	}
}

// pixelColor blends one pixel onto the background, masking everything outside the avatar circle.
func (p *presenter) pixelColor(img *image.RGBA, placeholder colorful.Color, x, y, w, h int) colorful.Color {
	if !insideCircle(x, y, w, h) {
		return p.background
	}
	if img == nil {
		return placeholder
	}
	i := img.PixOffset(x, y)
	a := float64(img.Pix[i+3]) / 255
	if a == 0 {
		return p.background
	}
	// RGBA pixels are premultiplied.
	c := colorful.Color{
		R: float64(img.Pix[i]) / 255 / a,
		G: float64(img.Pix[i+1]) / 255 / a,
		B: float64(img.Pix[i+2]) / 255 / a,
	}
	return p.background.BlendRgb(c, a).Clamped()
}

func (p *presenter) drawLabel(x0, y0 int, sel avatar.Selection) {
	marker := '·'
	if sel.IsAnimated() {
		marker = '▶'
		if sel.Phase == avatar.PhaseWarmup {
			marker = '…'
		}
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(toTcell(p.background))
	label := []rune(filepath.Base(sel.Key.String()))
	p.screen.SetContent(x0, y0, marker, nil, style)
	for i := 0; i < len(label) && i+2 < p.cellWidth; i++ {
		p.screen.SetContent(x0+2+i, y0, label[i], nil, style)
	}
}

// placeholderColor derives a stable hue for avatars without a usable static image.
func placeholderColor(key avatar.Key) colorful.Color {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return colorful.Hcl(float64(h.Sum32()%360), 0.4, 0.6).Clamped()
}

func avatarRows(cellWidth int) int {
	return (cellWidth + 1) / 2
}

func insideCircle(x, y, w, h int) bool {
	r := float64(min(w, h)) / 2
	dx := float64(x) + 0.5 - float64(w)/2
	dy := float64(y) + 0.5 - float64(h)/2
	return dx*dx+dy*dy <= r*r
}

func scale(src *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
