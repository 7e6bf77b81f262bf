package decoder

// DecoderBuilderOption is a functional option for configuring a Decoder via NewDecoder.
type DecoderBuilderOption func(*decoder)

// WithMaxFrames sets the maximum number of frames a single file may contain.
// Values <= 0 keep the default.
//
// Parameters:
//   - n: the frame limit
//
// Returns:
//   - DecoderBuilderOption: a function that applies the frame limit to a decoder
func WithMaxFrames(n int) DecoderBuilderOption {
	return func(d *decoder) {
		if n > 0 {
			d.limits.maxFrames = n
		}
	}
}

// WithMaxCanvasPixels sets the maximum canvas area (width*height) of a single file.
// Values <= 0 keep the default.
//
// Parameters:
//   - n: the pixel limit
//
// Returns:
//   - DecoderBuilderOption: a function that applies the canvas limit to a decoder
func WithMaxCanvasPixels(n int) DecoderBuilderOption {
	return func(d *decoder) {
		if n > 0 {
			d.limits.maxCanvasPixels = n
		}
	}
}

// WithMaxTotalPixels sets the pixel budget of a single file: its frame count times its
// canvas area. Decoding stops before the budget is exceeded. Values <= 0 keep the default.
//
// Parameters:
//   - n: the total pixel limit
//
// Returns:
//   - DecoderBuilderOption: a function that applies the pixel budget to a decoder
func WithMaxTotalPixels(n int) DecoderBuilderOption {
	return func(d *decoder) {
		if n > 0 {
			d.limits.maxTotalPixels = n
		}
	}
}
