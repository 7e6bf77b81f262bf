package engine

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/engine/profiler"
	"github.com/Carmen-Shannon/oxy-avatar/engine/renderer"
	"github.com/rs/zerolog"
)

// Window is the part of a platform window the engine drives. window.Window satisfies it.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the window is resized.
	SetResizeCallback(callback func(width, height int))

	// ProcessMessages runs the window message loop until the window is closed.
	ProcessMessages()

	// Close closes the window.
	Close() error
}

// View is something drawn once per render pass, such as a grid of avatars.
type View interface {
	// Active reports whether the view should be rendered this pass.
	Active() bool

	// Render queries and draws the view.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous render pass
	Render(deltaTime float32)
}

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   Window
	renderer renderer.Renderer
	logger   zerolog.Logger

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	viewsMu sync.RWMutex
	views   map[int]View

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	renderPassLimit  int64         // quit after this many render passes; 0 = unlimited
	renderPasses     atomic.Int64
}

// Engine is the main entry point for the avatar viewer.
// It orchestrates the engine loop, render loop, and window management.
type Engine interface {
	// Window returns the window the engine pumps, or nil when running headless.
	//
	// Returns:
	//   - Window: the window instance
	Window() Window

	// Renderer returns the renderer whose frame lifecycle the engine owns, or nil.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render pass.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddView registers a view at the given z-index key.
	// Views are rendered in ascending key order during the render loop.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - v: the View to register
	AddView(key int, v View)

	// RemoveView removes the view at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the view to remove
	RemoveView(key int)

	// View retrieves the view registered at the given z-index key.
	// Returns nil if no view exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the view to retrieve
	//
	// Returns:
	//   - View: the view at the key, or nil if not found
	View(key int) View

	// Views returns a copy of all registered views keyed by z-index.
	//
	// Returns:
	//   - map[int]View: a copy of the views map
	Views() map[int]View

	// RenderPasses returns the number of completed render passes.
	RenderPasses() int64

	// Run starts the engine and render loops and blocks until the engine quits.
	// With a window, the calling goroutine pumps window messages and must be the one that created it.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		views:            make(map[int]View),
		logger:           zerolog.Nop(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer != nil {
				e.renderer.Resize(width, height)
			}
		})
		// The window can only be closed from the goroutine pumping its messages.
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				_ = e.window.Close()
			default:
			}
		})
	}

	return e
}

func (e *engine) Window() Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Run() {
	e.running.Store(true)
	defer e.running.Store(false)

	e.logger.Debug().Dur("tick_rate", e.engineTickRate).Int64("render_pass_limit", e.renderPassLimit).Msg("engine started")
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.logger.Debug().Int64("render_passes", e.renderPasses.Load()).Msg("engine stopped")
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each pass renders the active views in ascending z-index order, wrapped in the renderer's
// frame lifecycle when a renderer with a surface is attached.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("render goroutine recovered from panic")
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.renderPass(dt)

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			if passes := e.renderPasses.Add(1); e.renderPassLimit > 0 && passes >= e.renderPassLimit {
				e.signalQuit()
				return
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// renderPass draws every active view once.
// The engine owns the frame lifecycle: BeginFrame once, Render each view, EndFrame + Present once.
// Views still render when no frame could be begun so that CPU-side presenters and playback keep running.
func (e *engine) renderPass(dt float32) {
	active := e.activeViews()
	if len(active) == 0 {
		return
	}

	began := false
	if e.renderer != nil {
		if err := e.renderer.BeginFrame(); err == nil {
			began = true
		} else if !errors.Is(err, renderer.ErrNoSurface) {
			e.logger.Debug().Err(err).Msg("skipping gpu frame")
		}
	}

	for _, v := range active {
		v.Render(dt)
	}

	if began {
		e.renderer.EndFrame()
		e.renderer.Present()
	}
}

// activeViews returns the active views in ascending z-index order.
func (e *engine) activeViews() []View {
	e.viewsMu.RLock()
	defer e.viewsMu.RUnlock()

	keys := make([]int, 0, len(e.views))
	for k := range e.views {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	active := make([]View, 0, len(keys))
	for _, k := range keys {
		if v := e.views[k]; v.Active() {
			active = append(active, v)
		}
	}
	return active
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}

	// Keep only the newest pending rate.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddView(key int, v View) {
	e.viewsMu.Lock()
	defer e.viewsMu.Unlock()
	e.views[key] = v
}

func (e *engine) RemoveView(key int) {
	e.viewsMu.Lock()
	defer e.viewsMu.Unlock()
	delete(e.views, key)
}

func (e *engine) View(key int) View {
	e.viewsMu.RLock()
	defer e.viewsMu.RUnlock()
	return e.views[key]
}

func (e *engine) Views() map[int]View {
	e.viewsMu.RLock()
	defer e.viewsMu.RUnlock()
	cp := make(map[int]View, len(e.views))
	for k, v := range e.views {
		cp[k] = v
	}
	return cp
}

func (e *engine) RenderPasses() int64 {
	return e.renderPasses.Load()
}
