package main

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/mythforge/mythforge"
	"github.com/mythforge/mythforge/backend/sim"
	"github.com/mythforge/mythforge/gpu"
)

// window tracks the glfw state the frame loop reacts to. Callbacks run on
// the main thread inside PollEvents.
type window struct {
	glw       *glfw.Window
	handle    gpu.WindowHandle
	resized   bool
	width     int
	height    int
	minimized bool
}

func runWindowed(cfg mythforge.Config, frames int) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw: %w", err)
	}
	defer glfw.Terminate()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Release()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glw, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), "mythforge", nil, nil)
	if err != nil {
		return fmt.Errorf("glfw: create window: %w", err)
	}
	defer glw.Destroy()

	w := &window{glw: glw, handle: nativeHandle(glw)}
	w.width, w.height = glw.GetFramebufferSize()
	glw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized = true
		w.width, w.height = width, height
	})
	glw.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		w.minimized = iconified
	})

	// The simulated backend has no OS window to query.
	sb, isSim := b.(*sim.Backend)
	if isSim {
		sb.SetWindowSize(w.handle, uint32(w.width), uint32(w.height))
	}

	r := mythforge.New(b, mythforge.WithConfig(cfg))
	if err := r.Initialize(w.handle); err != nil {
		return err
	}

	var loopErr error
	for n := 0; !glw.ShouldClose() && (frames <= 0 || n < frames); {
		glfw.PollEvents()
		if w.resized {
			w.resized = false
			if isSim {
				sb.SetWindowSize(w.handle, uint32(w.width), uint32(w.height))
			}
			err := r.Resize(uint32(w.width), uint32(w.height))
			if err != nil && !errors.Is(err, gpu.ErrInvalidSize) {
				loopErr = err
				break
			}
		}
		if w.minimized || w.width == 0 || w.height == 0 {
			glfw.WaitEvents()
			continue
		}
		if loopErr = r.RenderFrame(); loopErr != nil {
			break
		}
		n++
	}
	return errors.Join(loopErr, r.Shutdown())
}
