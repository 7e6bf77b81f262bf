// Package config loads the avatar viewer configuration from a YAML file, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete viewer configuration.
type Config struct {
	Avatar   AvatarConfig   `yaml:"avatar"`
	Engine   EngineConfig   `yaml:"engine"`
	Log      LogConfig      `yaml:"log"`
	Terminal TerminalConfig `yaml:"terminal"`
}

// AvatarConfig contains the classification and decode settings.
type AvatarConfig struct {
	Extensions        []string `yaml:"extensions"`           // eligible file extensions, e.g. [".webp", ".gif"]
	Workers           int      `yaml:"workers"`              // decode worker goroutines
	QueueSize         int      `yaml:"queue_size"`           // decodes admitted before classification defers
	IdleTimeoutMS     int      `yaml:"idle_timeout_ms"`      // idle worker shutdown
	FirstFrameDelayMS int      `yaml:"first_frame_delay_ms"` // display time of frame 0
	MinFrameDelayMS   int      `yaml:"min_frame_delay_ms"`   // floor for every later frame
	MaxFrames         int      `yaml:"max_frames"`           // per-file frame limit
	MaxCanvasPixels   int      `yaml:"max_canvas_pixels"`    // per-file canvas area limit
	MaxTotalPixels    int      `yaml:"max_total_pixels"`     // per-file frames*canvas budget
	Converter         string   `yaml:"converter"`            // png, rgba or webp
}

// EngineConfig contains the engine loop settings.
type EngineConfig struct {
	TickRate          float64 `yaml:"tick_rate"`           // engine ticks per second
	RenderFrameLimit  float64 `yaml:"render_frame_limit"`  // render passes per second, 0 = uncapped
	Profiling         bool    `yaml:"profiling"`           // log profiler reports
	ProfileIntervalMS int     `yaml:"profile_interval_ms"` // profiler report interval
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // json or console
}

// TerminalConfig contains terminal presenter settings.
type TerminalConfig struct {
	Background string `yaml:"background"` // hex color avatars are blended onto
	CellWidth  int    `yaml:"cell_width"` // avatar width in terminal cells
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = Validate(cfg)
	return cfg
}

// Load reads the YAML file at path, applies .env files and environment overrides, then validates.
// An empty path skips the file. Missing .env files are ignored.
//
// Parameters:
//   - path: the YAML configuration file, or ""
//   - envFiles: .env files to load before reading the environment
//
// Returns:
//   - *Config: the validated configuration
//   - error: error if a file is unreadable, malformed or a value is invalid
func Load(path string, envFiles ...string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	for _, f := range envFiles {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// IdleTimeout returns the worker idle timeout.
func (a AvatarConfig) IdleTimeout() time.Duration {
	return time.Duration(a.IdleTimeoutMS) * time.Millisecond
}

// FirstFrameDelay returns the display time of frame 0.
func (a AvatarConfig) FirstFrameDelay() time.Duration {
	return time.Duration(a.FirstFrameDelayMS) * time.Millisecond
}

// MinFrameDelay returns the floor applied to later frames.
func (a AvatarConfig) MinFrameDelay() time.Duration {
	return time.Duration(a.MinFrameDelayMS) * time.Millisecond
}

// ProfileInterval returns the profiler report interval.
func (e EngineConfig) ProfileInterval() time.Duration {
	return time.Duration(e.ProfileIntervalMS) * time.Millisecond
}
