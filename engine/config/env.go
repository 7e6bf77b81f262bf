package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables that override file values.
const (
	EnvAvatarWorkers      = "OXY_AVATAR_WORKERS"
	EnvAvatarQueueSize    = "OXY_AVATAR_QUEUE_SIZE"
	EnvAvatarConverter    = "OXY_AVATAR_CONVERTER"
	EnvAvatarExtensions   = "OXY_AVATAR_EXTENSIONS"
	EnvEngineTickRate     = "OXY_ENGINE_TICK_RATE"
	EnvEngineProfiling    = "OXY_ENGINE_PROFILING"
	EnvLogLevel           = "OXY_LOG_LEVEL"
	EnvLogFormat          = "OXY_LOG_FORMAT"
	EnvTerminalBackground = "OXY_TERMINAL_BACKGROUND"
)

// lookupFunc has the signature of os.LookupEnv.
type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAvatarWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAvatarWorkers, err)
		}
		cfg.Avatar.Workers = n
	}
	if v, ok := get(EnvAvatarQueueSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAvatarQueueSize, err)
		}
		cfg.Avatar.QueueSize = n
	}
	if v, ok := get(EnvAvatarConverter); ok {
		cfg.Avatar.Converter = v
	}
	if v, ok := get(EnvAvatarExtensions); ok {
		cfg.Avatar.Extensions = strings.Split(v, ",")
	}
	if v, ok := get(EnvEngineTickRate); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEngineTickRate, err)
		}
		cfg.Engine.TickRate = f
	}
	if v, ok := get(EnvEngineProfiling); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEngineProfiling, err)
		}
		cfg.Engine.Profiling = b
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := get(EnvLogFormat); ok {
		cfg.Log.Format = v
	}
	if v, ok := get(EnvTerminalBackground); ok {
		cfg.Terminal.Background = v
	}
	return nil
}
