package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/engine/avatar"
	"github.com/rs/zerolog"
)

// StatsSource supplies avatar counters to include in each report.
// avatar.Service satisfies it.
type StatsSource interface {
	Stats() avatar.Stats
}

// Profiler tracks frame rate, memory statistics and avatar counters for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	logger zerolog.Logger
	clock  avatar.Clock
	stats  StatsSource
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second and output is discarded unless WithLogger is given.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		logger:         zerolog.Nop(),
		clock:          avatar.SystemClock(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.clock.Now()
	return p
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory,
// and the avatar counters when a StatsSource is set.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.clock.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, TotalAlloc only grows and tracks churn, Sys is the process footprint.
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	event := p.logger.Info().
		Float64("fps", fps).
		Float64("heap_mb", allocMB).
		Float64("alloc_rate_mb_s", allocRateMB).
		Uint32("gc", gcCount).
		Uint64("gc_last_us", lastPauseUs).
		Uint64("gc_max_us", maxPauseUs).
		Float64("sys_mb", sysMB)
	if p.stats != nil {
		s := p.stats.Stats()
		event = event.
			Int("checking", s.Checking).
			Int("static", s.Static).
			Int("animated", s.Animated).
			Int("warming", s.Warming).
			Int("playing", s.Playing).
			Int("in_flight", s.InFlight).
			Int64("dispatched", s.Dispatched).
			Int64("deferred", s.Deferred)
	}
	event.Msg("profile")

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
