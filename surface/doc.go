// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface owns the presentation side of the renderer: the
// flip-model swap chain, one render target view per back buffer, the depth
// buffer with its view, and the viewport, scissor and projection derived
// from the current size.
//
// # Views
//
// Render target views are created in back buffer order, so descriptor i of
// the RTV heap always refers to back buffer i:
//
//	rtv := s.RenderTargetView(s.CurrentBackBufferIndex())
//
// # Resize
//
// Resize invalidates every buffer and view. The caller must flush the queue
// first; the surface cannot tell whether the GPU still reads the old
// buffers. A zero width or height (a minimized window) is rejected with
// gpu.ErrInvalidSize rather than passed to the swap chain.
//
// # Errors
//
// Creation and resize failures are reported as *gpu.SwapChainError, present
// failures as *gpu.PresentationError. Neither is retried.
package surface
