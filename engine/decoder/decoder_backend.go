package decoder

import "image"

// decoderBackend defines the interface for decoding one container format.
// Concrete implementations (webpDecoderBackend, gifDecoderBackend) handle format-specific details.
type decoderBackend interface {
	// Decode performs a full decode of the given file contents, compositing every frame
	// onto the container's canvas.
	//
	// Parameters:
	//   - data: the complete file contents, already sniffed as this backend's format
	//
	// Returns:
	//   - []RawFrame: the frames in stream order
	//   - error: error if decoding fails or a limit is exceeded
	Decode(data []byte) ([]RawFrame, error)

	// FirstFrame decodes only the first frame, composited onto a transparent canvas.
	//
	// Parameters:
	//   - data: the complete file contents, already sniffed as this backend's format
	//
	// Returns:
	//   - *image.RGBA: the first frame
	//   - error: error if decoding fails or a limit is exceeded
	FirstFrame(data []byte) (*image.RGBA, error)
}
