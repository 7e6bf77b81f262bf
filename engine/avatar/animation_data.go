package avatar

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
)

var (
	// ErrTooFewFrames is returned when an animation would have fewer than two frames.
	ErrTooFewFrames = errors.New("avatar: animation needs at least two frames")

	// ErrFrameDelayMismatch is returned when frames and delays are not paired 1:1.
	ErrFrameDelayMismatch = errors.New("avatar: frame and delay counts differ")
)

// AnimationData is the immutable decoded content of an animated resource.
// A single AnimationData is shared by every instance of the same Key.
type AnimationData struct {
	frames []common.Frame
	delays []time.Duration
}

// NewAnimationData pairs frames with their display delays.
// The slices are copied.
//
// Parameters:
//   - frames: the renderable frames in playback order
//   - delays: how long each frame stays on screen
//
// Returns:
//   - *AnimationData: the animation
//   - error: ErrFrameDelayMismatch or ErrTooFewFrames
func NewAnimationData(frames []common.Frame, delays []time.Duration) (*AnimationData, error) {
	if len(frames) != len(delays) {
		return nil, fmt.Errorf("%w: %d frames, %d delays", ErrFrameDelayMismatch, len(frames), len(delays))
	}
	if len(frames) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewFrames, len(frames))
	}
	return &AnimationData{
		frames: append([]common.Frame(nil), frames...),
		delays: append([]time.Duration(nil), delays...),
	}, nil
}

// Len returns the number of frames.
func (a *AnimationData) Len() int {
	return len(a.frames)
}

// Frame returns frame i. The index wraps modulo Len.
func (a *AnimationData) Frame(i int) common.Frame {
	return a.frames[a.wrap(i)]
}

// Delay returns the display time of frame i. The index wraps modulo Len.
func (a *AnimationData) Delay(i int) time.Duration {
	return a.delays[a.wrap(i)]
}

// Delays returns a copy of all frame delays.
func (a *AnimationData) Delays() []time.Duration {
	return append([]time.Duration(nil), a.delays...)
}

// Duration returns the length of one loop.
func (a *AnimationData) Duration() time.Duration {
	var total time.Duration
	for _, d := range a.delays {
		total += d
	}
	return total
}

func (a *AnimationData) wrap(i int) int {
	n := len(a.frames)
	return ((i % n) + n) % n
}
