package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gekko3d/backdrop"
	"github.com/gekko3d/backdrop/render/gpu"
	"github.com/gekko3d/backdrop/render/term"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

// idleWait bounds how long the host sleeps when nothing is scheduled.
const idleWait = 50 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "YAML config file layered over the built-in defaults")
	backend := flag.String("backend", "", "Override the rendering backend (gpu or term)")
	tier := flag.String("tier", "", "Force a performance tier (high, medium, low)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	dumpDir := flag.String("dump-fallbacks", "", "Write the generated fallback textures as PNG files to this directory and exit")
	flag.Parse()

	logger := backdrop.NewDefaultLogger("backdrop", *debug)

	if *dumpDir != "" {
		if err := dumpFallbacks(*dumpDir); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := backdrop.Load(*configPath)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *tier != "" {
		cfg.Tier = *tier
	}
	if *debug {
		cfg.Debug = true
	}
	logger.SetDebug(cfg.Debug)
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Backend {
	case "term":
		err = runTerminal(ctx, *cfg, logger)
	case "gpu", "":
		err = runWindow(ctx, *cfg, logger)
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func runWindow(ctx context.Context, cfg backdrop.Config, logger backdrop.Logger) error {
	surface, err := gpu.OpenWindow(gpu.WindowOptions{
		Width:       cfg.Window.Width,
		Height:      cfg.Window.Height,
		Title:       cfg.Window.Title,
		Transparent: cfg.Window.Transparent,
	})
	if err != nil {
		return err
	}
	defer glfw.Terminate()
	defer surface.Window.Destroy()

	loop := backdrop.NewFrameLoop(time.Now())
	manager := backdrop.NewManager(gpu.NewBackend(), loop, logger)
	session, err := manager.Acquire(surface, cfg)
	if err != nil {
		return err
	}
	defer manager.Release(session)
	gpu.Watch(surface, session)

	surface.Window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	// Work posted from the loader goroutine must wake the event wait.
	go func() {
		for {
			select {
			case <-loop.Wake():
				glfw.PostEmptyEvent()
			case <-session.Done():
				return
			}
		}
	}()

	for !surface.Window.ShouldClose() && ctx.Err() == nil {
		if d := waitFor(loop); d > 0 {
			glfw.WaitEventsTimeout(d.Seconds())
		} else {
			glfw.PollEvents()
		}
		loop.Pump(time.Now())

		if session.State() == backdrop.StateFailed {
			return fmt.Errorf("session failed: %w", session.Err())
		}
	}
	return nil
}

func runTerminal(ctx context.Context, cfg backdrop.Config, logger backdrop.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	surface := &term.ScreenSurface{Screen: screen}
	loop := backdrop.NewFrameLoop(time.Now())
	manager := backdrop.NewManager(term.NewBackend(), loop, logger)
	session, err := manager.Acquire(surface, cfg)
	if err != nil {
		return err
	}
	defer manager.Release(session)

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
				session.Resize(surface.Size())
			}
		case <-loop.Wake():
		case <-timer.C:
		}

		loop.Pump(time.Now())
		if session.State() == backdrop.StateFailed {
			return fmt.Errorf("session failed: %w", session.Err())
		}
		timer.Reset(waitFor(loop))
	}
}

// waitFor returns how long the host may sleep before the loop needs a pump.
// Sessions arm a timer for their next frame, so between frames this is the
// time left until it is due.
func waitFor(loop *backdrop.FrameLoop) time.Duration {
	if loop.HasFrames() {
		return 0
	}
	if deadline, ok := loop.NextDeadline(); ok {
		if d := time.Until(deadline); d < idleWait {
			return max(d, 0)
		}
	}
	return idleWait
}

func dumpFallbacks(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, key := range backdrop.TextureKeys() {
		img, err := backdrop.GenerateFallback(key)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, string(key)+".png")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
