package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/engine/avatar"
	"github.com/rs/zerolog"
)

// ProfilerBuilderOption is a functional option applied to a Profiler during construction via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger reports are written to.
//
// Parameters:
//   - logger: the destination logger
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithLogger(logger zerolog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logger = logger.With().Str("component", "profiler").Logger()
	}
}

// WithUpdateInterval sets how often a report is logged. Non-positive values keep the default.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithUpdateInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithStatsSource adds avatar counters to every report.
//
// Parameters:
//   - source: the counters to report, usually an avatar.Service
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithStatsSource(source StatsSource) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.stats = source
	}
}

// WithClock replaces the wall clock used to measure intervals.
//
// Parameters:
//   - clock: the time source
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithClock(clock avatar.Clock) ProfilerBuilderOption {
	return func(p *Profiler) {
		if clock != nil {
			p.clock = clock
		}
	}
}
