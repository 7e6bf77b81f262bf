package avatar

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
)

// runDecode decodes key on a pool goroutine and publishes the result.
// Every failure publishes Static. The playback state is seeded before Animated becomes
// visible so readers never see an animation without state.
func (s *service) runDecode(key Key) Classification {
	start := time.Now()
	log := s.logger.With().Str("key", key.String()).Logger()

	cls, dropped, err := s.decodeKey(key)
	if err != nil {
		log.Debug().Err(err).Msg("not animated, using static image")
	}
	if cls.Kind == KindAnimated {
		s.scheduler.seed(key, s.clock.Now())
		log.Info().
			Int("frames", cls.Animation.Len()).
			Int("dropped", dropped).
			Dur("loop", cls.Animation.Duration()).
			Dur("took", time.Since(start)).
			Msg("animation decoded")
	}
	s.cache.publish(key, cls)
	return cls
}

// decodeKey runs the decoder and converter for key. Panics are recovered as Static.
func (s *service) decodeKey(key Key) (cls Classification, dropped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			cls, dropped, err = Static(), 0, fmt.Errorf("decode panicked: %v", r)
		}
	}()

	raw, err := s.decoder.DecodeFile(string(key))
	if err != nil {
		return Static(), 0, err
	}
	if len(raw) < 2 {
		return Static(), 0, fmt.Errorf("%w: decoded %d", ErrTooFewFrames, len(raw))
	}

	data, dropped, err := buildAnimation(raw, s.converter, s.firstFrameDelay, s.minFrameDelay)
	if err != nil {
		return Static(), dropped, err
	}
	return Animated(data), dropped, nil
}

// buildAnimation converts decoded frames and pairs them with their delays.
// Delays are computed over every decoded frame first; a frame that fails conversion is
// dropped together with its delay.
func buildAnimation(raw []decoder.RawFrame, conv decoder.Converter, first, floor time.Duration) (*AnimationData, int, error) {
	delays := decoder.ComputeDelays(decoder.Timestamps(raw), first, floor)

	frames := make([]common.Frame, 0, len(raw))
	kept := make([]time.Duration, 0, len(raw))
	dropped := 0
	for i, rf := range raw {
		frame, err := conv.Convert(rf.Image)
		if err != nil {
			dropped++
			continue
		}
		frames = append(frames, frame)
		kept = append(kept, delays[i])
	}

	data, err := NewAnimationData(frames, kept)
	return data, dropped, err
}
