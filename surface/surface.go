// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"

	"github.com/mythforge/mythforge/gpu"
)

// Buffer count limits of a flip-model swap chain.
const (
	MinBufferCount = 2
	MaxBufferCount = 16
)

// Desc configures a Surface.
type Desc struct {
	// BufferCount is the number of back buffers, one per frame in flight.
	BufferCount uint32

	// Format is the back buffer format: RGBA8Unorm (default) or BGRA8Unorm.
	Format gputypes.TextureFormat

	// Width and Height are used when the window reports an empty client area.
	Width  uint32
	Height uint32

	// Projection configures the perspective transform. The zero value means
	// DefaultProjection.
	Projection Projection

	// Debug labels the created objects for graphics debuggers.
	Debug bool

	// Logger receives lifecycle messages. Nil disables logging.
	Logger *slog.Logger
}

// Surface is a swap chain with its render target and depth views.
// It is not safe for concurrent use.
type Surface struct {
	device    gpu.Device
	swapChain gpu.SwapChain
	rtvHeap   gpu.DescriptorHeap
	dsvHeap   gpu.DescriptorHeap
	rtvStride uint32

	buffers []gpu.Resource
	depth   gpu.Resource

	count      uint32
	width      uint32
	height     uint32
	format     gputypes.TextureFormat
	viewport   gpu.Viewport
	scissor    gpu.Rect
	proj       Projection
	projection f32.Mat4
	debug      bool
	log        *slog.Logger
}

// New creates a swap chain for window presenting through queue, plus its
// views. The initial size is the window's client area.
func New(b gpu.Backend, dev gpu.Device, queue gpu.Queue, window gpu.WindowHandle, desc Desc) (*Surface, error) {
	if desc.BufferCount < MinBufferCount || desc.BufferCount > MaxBufferCount {
		return nil, &gpu.SwapChainError{
			Op:  "create",
			Err: fmt.Errorf("buffer count %d outside [%d, %d]: %w", desc.BufferCount, MinBufferCount, MaxBufferCount, gpu.ErrInvalidSize),
		}
	}
	format := desc.Format
	switch format {
	case gputypes.TextureFormatUndefined:
		format = gputypes.TextureFormatRGBA8Unorm
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
	default:
		return nil, &gpu.SwapChainError{Op: "create", Err: fmt.Errorf("format %v: %w", format, gpu.ErrNotSupported)}
	}

	width, height, err := b.WindowSize(window)
	if err != nil {
		return nil, &gpu.SwapChainError{Op: "window size", Err: err}
	}
	if width == 0 || height == 0 {
		width, height = desc.Width, desc.Height
	}
	if width == 0 || height == 0 {
		return nil, &gpu.SwapChainError{Op: "create", Err: fmt.Errorf("empty client area: %w", gpu.ErrInvalidSize)}
	}

	proj := desc.Projection
	if proj == (Projection{}) {
		proj = DefaultProjection()
	}
	s := &Surface{
		device: dev,
		count:  desc.BufferCount,
		format: format,
		proj:   proj,
		debug:  desc.Debug,
		log:    desc.Logger,
	}
	if s.log == nil {
		s.log = slog.New(discardHandler{})
	}

	var cleanup gpu.ReleaseStack
	ok := false
	defer func() {
		if !ok {
			cleanup.ReleaseAll()
		}
	}()

	s.swapChain, err = b.CreateSwapChain(window, queue, gpu.SwapChainDesc{
		Width:       width,
		Height:      height,
		Format:      format,
		BufferCount: desc.BufferCount,
		SampleCount: 1,
	})
	if err != nil {
		return nil, &gpu.SwapChainError{Op: "create swap chain", Err: err}
	}
	cleanup.Push("swapChain", s.swapChain)

	s.rtvHeap, err = dev.CreateDescriptorHeap(gpu.DescriptorHeapRTV, desc.BufferCount)
	if err != nil {
		return nil, &gpu.SwapChainError{Op: "create rtv heap", Err: err}
	}
	cleanup.Push("rtvHeap", s.rtvHeap)
	s.name(s.rtvHeap, "rtvHeap")
	s.rtvStride = dev.DescriptorIncrement(gpu.DescriptorHeapRTV)

	s.dsvHeap, err = dev.CreateDescriptorHeap(gpu.DescriptorHeapDSV, 1)
	if err != nil {
		return nil, &gpu.SwapChainError{Op: "create dsv heap", Err: err}
	}
	cleanup.Push("dsvHeap", s.dsvHeap)
	s.name(s.dsvHeap, "dsvHeap")

	scDesc := s.swapChain.Desc()
	if err := s.createViews(scDesc.Width, scDesc.Height); err != nil {
		return nil, &gpu.SwapChainError{Op: "create views", Err: err}
	}

	ok = true
	s.log.Info("surface: created",
		"width", s.width, "height", s.height, "buffers", s.count, "format", s.format)
	return s, nil
}

// CreateRenderTargetViews creates one view per back buffer into consecutive
// slots of heap, starting at its first descriptor. The returned buffers are
// in back buffer order and must be released before the swap chain is
// resized.
func CreateRenderTargetViews(dev gpu.Device, sc gpu.SwapChain, heap gpu.DescriptorHeap, count uint32) ([]gpu.Resource, error) {
	if count > heap.Len() {
		return nil, fmt.Errorf("surface: %d views do not fit a heap of %d", count, heap.Len())
	}
	inc := dev.DescriptorIncrement(heap.Type())
	handle := heap.CPUStart()
	buffers := make([]gpu.Resource, 0, count)
	for i := uint32(0); i < count; i++ {
		buf, err := sc.Buffer(i)
		if err != nil {
			for _, b := range buffers {
				b.Release()
			}
			return nil, fmt.Errorf("surface: get buffer %d: %w", i, err)
		}
		dev.CreateRenderTargetView(buf, handle)
		buffers = append(buffers, buf)
		handle = handle.Offset(1, inc)
	}
	return buffers, nil
}

func (s *Surface) createViews(width, height uint32) error {
	buffers, err := CreateRenderTargetViews(s.device, s.swapChain, s.rtvHeap, s.count)
	if err != nil {
		return err
	}
	for i, b := range buffers {
		s.name(b, fmt.Sprintf("backBuffer[%d]", i))
	}

	depth, err := s.device.CreateDepthStencil(width, height)
	if err != nil {
		for _, b := range buffers {
			b.Release()
		}
		return fmt.Errorf("surface: create depth buffer: %w", err)
	}
	s.name(depth, "depthStencil")
	s.device.CreateDepthStencilView(depth, s.dsvHeap.CPUStart())

	s.buffers = buffers
	s.depth = depth
	s.setSize(width, height)
	return nil
}

func (s *Surface) releaseViews() {
	if s.depth != nil {
		s.depth.Release()
		s.depth = nil
	}
	for i := len(s.buffers) - 1; i >= 0; i-- {
		s.buffers[i].Release()
	}
	s.buffers = nil
}

func (s *Surface) setSize(width, height uint32) {
	s.width, s.height = width, height
	s.viewport = gpu.Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1}
	s.scissor = gpu.Rect{Right: int32(width), Bottom: int32(height)}
	s.projection = s.proj.Matrix(float32(width) / float32(height))
}

func (s *Surface) name(obj any, name string) {
	if !s.debug {
		return
	}
	if err := gpu.SetName(obj, name); err != nil {
		s.log.Warn("surface: set debug name", "name", name, "err", err)
	}
}

// Resize resizes the back buffers and recreates every view. All GPU work
// referencing the current buffers must have completed.
func (s *Surface) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return &gpu.SwapChainError{Op: "resize", Err: fmt.Errorf("%dx%d: %w", width, height, gpu.ErrInvalidSize)}
	}

	s.releaseViews()
	if err := s.swapChain.ResizeBuffers(s.count, width, height); err != nil {
		return &gpu.SwapChainError{Op: "resize buffers", Err: err}
	}
	if err := s.createViews(width, height); err != nil {
		return &gpu.SwapChainError{Op: "recreate views", Err: err}
	}

	s.log.Info("surface: resized", "width", width, "height", height)
	return nil
}

// Present presents the current back buffer. syncInterval 1 waits for one
// vertical blank, 0 presents immediately.
func (s *Surface) Present(syncInterval uint32) error {
	if err := s.swapChain.Present(syncInterval); err != nil {
		return &gpu.PresentationError{Op: "present", Err: err}
	}
	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		s.log.Debug("surface: presented", "next", s.swapChain.CurrentBackBufferIndex())
	}
	return nil
}

// CurrentBackBufferIndex returns the back buffer the next frame renders to.
func (s *Surface) CurrentBackBufferIndex() uint32 {
	return s.swapChain.CurrentBackBufferIndex()
}

// BackBuffer returns back buffer i.
func (s *Surface) BackBuffer(i uint32) gpu.Resource { return s.buffers[i] }

// RenderTargetView returns the view of back buffer i.
func (s *Surface) RenderTargetView(i uint32) gpu.DescriptorHandle {
	return s.rtvHeap.CPUStart().Offset(int(i), s.rtvStride)
}

// DepthStencilView returns the depth view.
func (s *Surface) DepthStencilView() gpu.DescriptorHandle { return s.dsvHeap.CPUStart() }

// DepthStencil returns the depth buffer.
func (s *Surface) DepthStencil() gpu.Resource { return s.depth }

// Viewport covers the whole back buffer with depth range [0, 1].
func (s *Surface) Viewport() gpu.Viewport { return s.viewport }

// ScissorRect covers the whole back buffer.
func (s *Surface) ScissorRect() gpu.Rect { return s.scissor }

// Projection returns the perspective transform for the current aspect ratio.
func (s *Surface) Projection() f32.Mat4 { return s.projection }

// Size returns the back buffer size in pixels.
func (s *Surface) Size() (width, height uint32) { return s.width, s.height }

// Format returns the back buffer format.
func (s *Surface) Format() gputypes.TextureFormat { return s.format }

// BufferCount returns the number of back buffers.
func (s *Surface) BufferCount() uint32 { return s.count }

// ViewCount returns the number of live render target views.
func (s *Surface) ViewCount() int { return len(s.buffers) }

// SwapChain returns the underlying swap chain.
func (s *Surface) SwapChain() gpu.SwapChain { return s.swapChain }

// Release releases the views, heaps and swap chain. The caller must have
// flushed the queue.
func (s *Surface) Release() {
	s.releaseViews()
	if s.dsvHeap != nil {
		s.dsvHeap.Release()
		s.dsvHeap = nil
	}
	if s.rtvHeap != nil {
		s.rtvHeap.Release()
		s.rtvHeap = nil
	}
	if s.swapChain != nil {
		s.swapChain.Release()
		s.swapChain = nil
	}
}

// discardHandler silently discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
