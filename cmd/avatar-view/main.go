// Command avatar-view plays animated WebP and GIF avatars in the terminal.
//
// Usage:
//
//	avatar-view [-config avatar.yaml] [-env .env] [-log viewer.log] [-passes n] [-headless] path...
//
// Press Esc, Ctrl-C or q to quit. With -headless the avatars are rendered into an off-screen
// terminal for a fixed number of passes and the final classifications are logged to stderr.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/Carmen-Shannon/oxy-avatar/engine"
	"github.com/Carmen-Shannon/oxy-avatar/engine/avatar"
	"github.com/Carmen-Shannon/oxy-avatar/engine/config"
	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
	"github.com/Carmen-Shannon/oxy-avatar/engine/logger"
	"github.com/Carmen-Shannon/oxy-avatar/engine/profiler"
	"github.com/Carmen-Shannon/oxy-avatar/engine/terminal"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
)

const defaultHeadlessPasses = 120

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "avatar-view:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("avatar-view", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env", ".env", "dotenv file applied before the environment")
	logPath := fs.String("log", "", "log file (interactive mode logs nowhere by default)")
	passes := fs.Int("passes", 0, "quit after this many render passes (0 = until quit)")
	size := fs.Int("size", 64, "target avatar size in pixels reported to the frame selector")
	headless := fs.Bool("headless", false, "render off-screen and log the final classifications")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fs.Usage()
		return fmt.Errorf("no avatar paths given")
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return err
	}

	var out io.Writer = io.Discard
	switch {
	case *logPath != "":
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	case *headless:
		out = os.Stderr
	}
	log, err := logger.New(out, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	screen, err := newScreen(*headless)
	if err != nil {
		return err
	}
	defer screen.Fini()

	bg, err := colorful.Hex(cfg.Terminal.Background)
	if err != nil {
		return err
	}
	dec := decoder.NewDecoder(
		decoder.WithMaxFrames(cfg.Avatar.MaxFrames),
		decoder.WithMaxCanvasPixels(cfg.Avatar.MaxCanvasPixels),
		decoder.WithMaxTotalPixels(cfg.Avatar.MaxTotalPixels),
	)
	view := terminal.NewPresenter(screen,
		terminal.WithCellWidth(cfg.Terminal.CellWidth),
		terminal.WithBackground(bg),
		terminal.WithDecoder(dec),
		terminal.WithLogger(log),
	)

	svc, err := newService(cfg.Avatar, dec, view, log)
	if err != nil {
		return err
	}
	defer svc.Stop()

	for _, path := range paths {
		// the file doubles as its own static fallback: its first frame
		view.AddInstance(svc.NewInstance(path, common.NewStaticSource(path), common.Square(*size)))
	}

	if *headless && *passes == 0 {
		*passes = defaultHeadlessPasses
	}
	eng := engine.NewEngine(
		engine.WithLogger(log),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithRenderFrameLimit(common.Coalesce(cfg.Engine.RenderFrameLimit, cfg.Engine.TickRate)),
		engine.WithProfiling(cfg.Engine.Profiling),
		engine.WithProfiler(profiler.NewProfiler(
			profiler.WithLogger(log),
			profiler.WithUpdateInterval(cfg.Engine.ProfileInterval()),
			profiler.WithStatsSource(svc),
		)),
		engine.WithView(0, view),
		engine.WithRenderPassLimit(*passes),
	)

	if !*headless {
		go pollEvents(screen, eng)
	}
	eng.Run()

	if *headless {
		svc.Wait()
		report(log, svc, view.Instances())
	}
	return nil
}

func newService(cfg config.AvatarConfig, dec decoder.Decoder, uploader avatar.FrameUploader, log zerolog.Logger) (avatar.Service, error) {
	conv, err := decoder.ConverterByName(cfg.Converter)
	if err != nil {
		return nil, err
	}
	return avatar.NewService(
		avatar.WithWorkers(cfg.Workers),
		avatar.WithQueueSize(cfg.QueueSize),
		avatar.WithIdleTimeout(cfg.IdleTimeout()),
		avatar.WithExtensions(cfg.Extensions...),
		avatar.WithFrameDelays(cfg.FirstFrameDelay(), cfg.MinFrameDelay()),
		avatar.WithDecoder(dec),
		avatar.WithConverter(conv),
		avatar.WithFrameUploader(uploader),
		avatar.WithLogger(log),
	), nil
}

func newScreen(headless bool) (tcell.Screen, error) {
	if headless {
		sim := tcell.NewSimulationScreen("")
		if err := sim.Init(); err != nil {
			return nil, err
		}
		sim.SetSize(80, 24)
		return sim, nil
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return screen, nil
}

// pollEvents quits the engine on Esc, Ctrl-C or q. It returns once the screen is finalized.
func pollEvents(screen tcell.Screen, eng engine.Engine) {
	for {
		switch ev := screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				eng.Quit()
			}
		case *tcell.EventResize:
			screen.Sync()
		}
	}
}

func report(log zerolog.Logger, svc avatar.Service, instances []avatar.Instance) {
	for _, inst := range instances {
		cls := svc.Lookup(inst.Key())
		ev := log.Info().Str("key", inst.Key().String()).Stringer("kind", cls.Kind)
		if cls.Animation != nil {
			ev = ev.Int("frames", cls.Animation.Len()).Dur("loop", cls.Animation.Duration())
		}
		if st, ok := svc.PlaybackState(inst.Key()); ok {
			ev = ev.Int("frame", st.CurrentFrame).Bool("warmed_up", st.WarmedUp)
		}
		ev.Msg("avatar")
	}
	st := svc.Stats()
	log.Info().
		Int("static", st.Static).
		Int("animated", st.Animated).
		Int("checking", st.Checking).
		Int64("dispatched", st.Dispatched).
		Int64("deferred", st.Deferred).
		Msg("summary")
}
