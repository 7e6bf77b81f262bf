package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/Carmen-Shannon/oxy-avatar/engine/avatar"
	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
)

const (
	defaultTickRate        = 60.0
	defaultProfileInterval = time.Second
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultBackground      = "#1e1e2e"
	defaultCellWidth       = 16
)

// Validate fills unset values with defaults and rejects invalid ones.
func Validate(cfg *Config) error {
	if err := validateAvatar(&cfg.Avatar); err != nil {
		return fmt.Errorf("avatar: %w", err)
	}

	e := &cfg.Engine
	if e.TickRate < 0 || e.RenderFrameLimit < 0 || e.ProfileIntervalMS < 0 {
		return fmt.Errorf("engine: tick_rate, render_frame_limit and profile_interval_ms must be >= 0")
	}
	e.TickRate = common.Coalesce(e.TickRate, defaultTickRate)
	e.ProfileIntervalMS = common.Coalesce(e.ProfileIntervalMS, int(defaultProfileInterval/time.Millisecond))

	l := &cfg.Log
	l.Level = strings.ToLower(common.Coalesce(l.Level, defaultLogLevel))
	if _, err := zerolog.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	l.Format = strings.ToLower(common.Coalesce(l.Format, defaultLogFormat))
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", l.Format)
	}

	t := &cfg.Terminal
	t.Background = common.Coalesce(t.Background, defaultBackground)
	if _, err := colorful.Hex(t.Background); err != nil {
		return fmt.Errorf("terminal.background: %w", err)
	}
	if t.CellWidth < 0 {
		return fmt.Errorf("terminal.cell_width must be >= 0")
	}
	t.CellWidth = common.Coalesce(t.CellWidth, defaultCellWidth)

	return nil
}

func validateAvatar(a *AvatarConfig) error {
	if a.Workers < 0 || a.QueueSize < 0 || a.IdleTimeoutMS < 0 {
		return fmt.Errorf("workers, queue_size and idle_timeout_ms must be >= 0")
	}
	if a.FirstFrameDelayMS < 0 || a.MinFrameDelayMS < 0 {
		return fmt.Errorf("frame delays must be >= 0")
	}
	if a.MaxFrames < 0 || a.MaxCanvasPixels < 0 || a.MaxTotalPixels < 0 {
		return fmt.Errorf("max_frames, max_canvas_pixels and max_total_pixels must be >= 0")
	}

	a.Workers = common.Coalesce(a.Workers, avatar.DefaultWorkers)
	a.QueueSize = common.Coalesce(a.QueueSize, avatar.DefaultQueueSize)
	a.IdleTimeoutMS = common.Coalesce(a.IdleTimeoutMS, int(avatar.DefaultIdleTimeout/time.Millisecond))
	a.FirstFrameDelayMS = common.Coalesce(a.FirstFrameDelayMS, int(decoder.DefaultFirstFrameDelay/time.Millisecond))
	a.MinFrameDelayMS = common.Coalesce(a.MinFrameDelayMS, int(decoder.DefaultMinFrameDelay/time.Millisecond))
	a.MaxFrames = common.Coalesce(a.MaxFrames, decoder.DefaultMaxFrames)
	a.MaxCanvasPixels = common.Coalesce(a.MaxCanvasPixels, decoder.DefaultMaxCanvasPixels)
	a.MaxTotalPixels = common.Coalesce(a.MaxTotalPixels, decoder.DefaultMaxTotalPixels)

	a.Converter = strings.ToLower(strings.TrimSpace(a.Converter))
	if _, err := decoder.ConverterByName(a.Converter); err != nil {
		return err
	}
	a.Converter = common.Coalesce(a.Converter, "png")

	if len(a.Extensions) == 0 {
		a.Extensions = append([]string(nil), avatar.DefaultExtensions...)
	}
	for i, ext := range a.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			return fmt.Errorf("extensions[%d] is empty", i)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		a.Extensions[i] = ext
	}
	return nil
}
