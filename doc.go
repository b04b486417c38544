// Package mythforge is a minimal Direct3D 12 rendering core: a device, a
// flip-model swap chain, one reusable command list and a fence that keeps
// the CPU from rewriting anything the GPU is still reading.
//
// # Quick Start
//
//	import (
//		"github.com/mythforge/mythforge"
//		"github.com/mythforge/mythforge/backend"
//		_ "github.com/mythforge/mythforge/backend/d3d12"
//	)
//
//	b, err := backend.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	r := mythforge.New(b, mythforge.WithFrameCount(3))
//	if err := r.Initialize(hwnd); err != nil {
//		log.Fatal(err)
//	}
//	defer r.Shutdown()
//
//	for running {
//		if err := r.RenderFrame(); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// # Frame Lifecycle
//
// Every RenderFrame runs the same cycle on the slot of the current back
// buffer: wait until the GPU finished the slot's previous frame, reset the
// slot's allocator and the command list, transition the back buffer to the
// render-target state, clear colour and depth, call the DrawFunc, transition
// back to the present state, submit, present and signal the fence. The
// signaled value is recorded in the slot.
//
// With SyncImmediate (the default) the frame waits for its own fence value
// before returning, so the CPU never runs ahead of the GPU. With
// SyncDeferred the wait happens the next time the slot comes around, which
// lets the CPU record up to N-1 frames ahead of the GPU.
//
// # Errors
//
// Errors are the typed errors of package gpu. None is retried: after any
// error the renderer is failed and RenderFrame returns ErrRendererFailed
// until Shutdown and a new Initialize.
//
// # Logging
//
// The renderer logs through log/slog. By default nothing is logged; see
// SetLogger and WithLogger.
package mythforge

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 2

	// VersionPatch is the patch version
	VersionPatch = 0
)
