package terminal

import (
	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
)

// PresenterBuilderOption is a functional option for configuring a Presenter via NewPresenter.
type PresenterBuilderOption func(*presenter)

// WithBackground sets the color avatars are blended onto and the grid is cleared to.
//
// Parameters:
//   - c: the background color
//
// Returns:
//   - PresenterBuilderOption: a function that applies the background to a presenter
func WithBackground(c colorful.Color) PresenterBuilderOption {
	return func(p *presenter) {
		p.background = c.Clamped()
	}
}

// WithCellWidth sets the avatar width in terminal cells. Each cell covers one pixel column
// and two pixel rows, so an avatar is cellWidth pixels square. Values <= 0 keep the default.
//
// Parameters:
//   - n: the width in cells
//
// Returns:
//   - PresenterBuilderOption: a function that applies the cell width to a presenter
func WithCellWidth(n int) PresenterBuilderOption {
	return func(p *presenter) {
		if n > 0 {
			p.cellWidth = n
		}
	}
}

// WithLogger sets the logger used for decode failures.
func WithLogger(l zerolog.Logger) PresenterBuilderOption {
	return func(p *presenter) {
		p.logger = l.With().Str("component", "terminal").Logger()
	}
}

// WithDecoder sets the decoder used to load static sources. Animated WebP and GIF statics
// show their first frame.
//
// Parameters:
//   - d: the decoder
//
// Returns:
//   - PresenterBuilderOption: a function that applies the decoder to a presenter
func WithDecoder(d decoder.Decoder) PresenterBuilderOption {
	return func(p *presenter) {
		p.decoder = d
	}
}
