package avatar

import (
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
	"github.com/rs/zerolog"
)

// ServiceBuilderOption is a functional option for configuring a Service via NewService.
type ServiceBuilderOption func(*service)

// WithWorkers sets the maximum number of concurrent decodes. Values <= 0 keep the default.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - ServiceBuilderOption: a function that applies the worker count to a service
func WithWorkers(n int) ServiceBuilderOption {
	return func(s *service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize sets how many decodes may be queued or running before Classify defers.
// Values <= 0 keep the default.
//
// Parameters:
//   - n: the queue size
//
// Returns:
//   - ServiceBuilderOption: a function that applies the queue size to a service
func WithQueueSize(n int) ServiceBuilderOption {
	return func(s *service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithIdleTimeout sets the idle timeout of the decode worker pool.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - ServiceBuilderOption: a function that applies the idle timeout to a service
func WithIdleTimeout(d time.Duration) ServiceBuilderOption {
	return func(s *service) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithExtensions replaces the set of file extensions eligible for animation detection.
// Extensions are matched case-insensitively; a missing leading dot is added.
//
// Parameters:
//   - exts: the extensions, e.g. ".webp"
//
// Returns:
//   - ServiceBuilderOption: a function that applies the extension set to a service
func WithExtensions(exts ...string) ServiceBuilderOption {
	return func(s *service) {
		s.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions[ext] = struct{}{}
		}
	}
}

// WithFrameDelays sets the delay of the first frame and the minimum delay of every later frame.
// Values <= 0 keep the defaults.
//
// Parameters:
//   - first: the first frame delay
//   - floor: the minimum delay
//
// Returns:
//   - ServiceBuilderOption: a function that applies the delays to a service
func WithFrameDelays(first, floor time.Duration) ServiceBuilderOption {
	return func(s *service) {
		if first > 0 {
			s.firstFrameDelay = first
		}
		if floor > 0 {
			s.minFrameDelay = floor
		}
	}
}

// WithDecoder sets the decoder used by the workers. It panics if d is nil.
//
// Parameters:
//   - d: the decoder
//
// Returns:
//   - ServiceBuilderOption: a function that applies the decoder to a service
func WithDecoder(d decoder.Decoder) ServiceBuilderOption {
	if d == nil {
		panic("decoder cannot be nil")
	}
	return func(s *service) {
		s.decoder = d
	}
}

// WithConverter sets the converter that turns decoded canvases into frames. It panics if c is nil.
//
// Parameters:
//   - c: the converter
//
// Returns:
//   - ServiceBuilderOption: a function that applies the converter to a service
func WithConverter(c decoder.Converter) ServiceBuilderOption {
	if c == nil {
		panic("converter cannot be nil")
	}
	return func(s *service) {
		s.converter = c
	}
}

// WithFrameUploader sets the uploader that receives each frame once during warmup.
//
// Parameters:
//   - u: the uploader, may be nil to disable uploads
//
// Returns:
//   - ServiceBuilderOption: a function that applies the uploader to a service
func WithFrameUploader(u FrameUploader) ServiceBuilderOption {
	return func(s *service) {
		s.uploader = u
	}
}

// WithClock sets the clock used by the playback scheduler. It panics if c is nil.
//
// Parameters:
//   - c: the clock
//
// Returns:
//   - ServiceBuilderOption: a function that applies the clock to a service
func WithClock(c Clock) ServiceBuilderOption {
	if c == nil {
		panic("clock cannot be nil")
	}
	return func(s *service) {
		s.clock = c
	}
}

// WithLogger sets the logger of the service.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - ServiceBuilderOption: a function that applies the logger to a service
func WithLogger(l zerolog.Logger) ServiceBuilderOption {
	return func(s *service) {
		s.logger = l
	}
}
