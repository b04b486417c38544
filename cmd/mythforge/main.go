// Command mythforge opens a window and runs the frame loop, clearing the
// back buffer every frame. With -headless it drives the simulated backend
// without a window and prints fence statistics.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mythforge/mythforge"
	"github.com/mythforge/mythforge/backend"
	_ "github.com/mythforge/mythforge/backend/d3d12"
	"github.com/mythforge/mythforge/backend/sim"
	"github.com/mythforge/mythforge/gpu"
)

func init() {
	// The window and the swap chain belong to the main thread.
	runtime.LockOSThread()
}

type flags struct {
	config      string
	backend     string
	frames      int
	width       int
	height      int
	debug       bool
	sync        string
	headless    bool
	writeConfig bool
	verbose     bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "TOML configuration file")
	flag.StringVar(&f.backend, "backend", "", "backend name ("+strings.Join(backend.List(), ", ")+"); empty selects the best available")
	flag.IntVar(&f.frames, "frames", 0, "stop after this many frames (0 runs until the window closes)")
	flag.IntVar(&f.width, "width", 0, "window width")
	flag.IntVar(&f.height, "height", 0, "window height")
	flag.BoolVar(&f.debug, "debug", false, "enable the debug layer")
	flag.StringVar(&f.sync, "sync", "", "frame synchronization: immediate or deferred")
	flag.BoolVar(&f.headless, "headless", false, "render without a window on the simulated backend")
	flag.BoolVar(&f.writeConfig, "write-config", false, "print the effective configuration and exit")
	flag.BoolVar(&f.verbose, "v", false, "log every frame")
	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatal(err)
	}
	if f.writeConfig {
		if err := mythforge.WriteConfig(os.Stdout, cfg); err != nil {
			log.Fatal(err)
		}
		return
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	mythforge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if f.headless {
		err = runHeadless(cfg, f.frames)
	} else {
		err = runWindowed(cfg, f.frames)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfig(f flags) (mythforge.Config, error) {
	cfg := mythforge.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = mythforge.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.width > 0 {
		cfg.Width = uint32(f.width)
	}
	if f.height > 0 {
		cfg.Height = uint32(f.height)
	}
	if f.debug {
		cfg.Debug = true
	}
	if f.sync != "" {
		if err := cfg.SyncMode.UnmarshalText([]byte(f.sync)); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func openBackend(cfg mythforge.Config) (gpu.Backend, error) {
	if cfg.Backend != "" {
		return backend.NewByName(cfg.Backend)
	}
	return backend.New()
}

const headlessWindow gpu.WindowHandle = 1

func runHeadless(cfg mythforge.Config, frames int) error {
	if frames <= 0 {
		frames = 300
	}
	b := sim.New(
		sim.WithWindowSize(headlessWindow, cfg.Width, cfg.Height),
		sim.WithLatency(time.Millisecond),
	)
	defer b.Release()
	r := mythforge.New(b, mythforge.WithConfig(cfg))
	if err := r.Initialize(headlessWindow); err != nil {
		return err
	}

	start := time.Now()
	var frameErr error
	for i := 0; i < frames; i++ {
		if frameErr = r.RenderFrame(); frameErr != nil {
			break
		}
	}
	elapsed := time.Since(start)
	rendered := r.Frames()
	st := r.SyncStats()
	shutdownErr := r.Shutdown()

	fmt.Printf("%d frames in %v (%.0f fps)\n", rendered, elapsed.Round(time.Millisecond), float64(rendered)/elapsed.Seconds())
	fmt.Printf("fence: %d signals, %d waits (%d fast, %d blocking)\n", st.Signals, st.Waits, st.FastWaits, st.BlockingWaits)
	if v := b.Violations(); len(v) > 0 {
		fmt.Printf("%d usage violations:\n  %s\n", len(v), strings.Join(v, "\n  "))
	}
	return errors.Join(frameErr, shutdownErr)
}
