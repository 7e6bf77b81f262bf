package decoder

import "time"

const (
	// DefaultFirstFrameDelay is the display time assigned to the first frame of every animation.
	DefaultFirstFrameDelay = 100 * time.Millisecond

	// DefaultMinFrameDelay is the lower bound on the display time of every frame after the first.
	DefaultMinFrameDelay = 16 * time.Millisecond
)

// ComputeDelays derives per-frame display durations from absolute end timestamps.
// The first frame always gets first; every later frame gets the difference to its predecessor,
// raised to floor. Zero or negative differences therefore become floor.
//
// Parameters:
//   - timestamps: the absolute timestamps of the accepted frames, in stream order
//   - first: the delay of frame 0
//   - floor: the minimum delay of every later frame
//
// Returns:
//   - []time.Duration: one delay per timestamp
func ComputeDelays(timestamps []time.Duration, first, floor time.Duration) []time.Duration {
	delays := make([]time.Duration, len(timestamps))
	for i, ts := range timestamps {
		if i == 0 {
			delays[i] = first
			continue
		}
		delays[i] = max(ts-timestamps[i-1], floor)
	}
	return delays
}
