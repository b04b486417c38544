package mythforge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/image/math/f32"

	"github.com/mythforge/mythforge/command"
	"github.com/mythforge/mythforge/device"
	"github.com/mythforge/mythforge/fence"
	"github.com/mythforge/mythforge/gpu"
	"github.com/mythforge/mythforge/surface"
)

// Errors.
var (
	// ErrNotInitialized is returned when the renderer is used before
	// Initialize or after Shutdown.
	ErrNotInitialized = errors.New("mythforge: renderer not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("mythforge: renderer already initialized")

	// ErrRendererFailed is returned after an earlier error left the renderer
	// unusable. Call Shutdown and Initialize again, or exit.
	ErrRendererFailed = errors.New("mythforge: renderer failed")
)

// FrameState is the position of the renderer in the frame cycle.
type FrameState int

// Frame states.
const (
	StateIdle FrameState = iota
	StateRecording
	StateSubmitted
	StatePresented
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	case StatePresented:
		return "presented"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

// FrameInfo describes the frame being recorded.
type FrameInfo struct {
	// Slot is the back buffer index, in [0, FrameCount).
	Slot uint32

	// Frame counts rendered frames since Initialize, starting at 0.
	Frame uint64

	Viewport     gpu.Viewport
	Scissor      gpu.Rect
	Projection   f32.Mat4
	RenderTarget gpu.DescriptorHandle
	DepthStencil gpu.DescriptorHandle
}

// DrawFunc records draw commands into cmd. It runs after the clears, with
// the render target and depth views bound, and must not close cmd.
type DrawFunc func(cmd gpu.CommandList, info FrameInfo) error

// frameSlot holds the per-back-buffer resources. The allocator must not be
// reset before the fence has reached fenceValue.
type frameSlot struct {
	allocator  gpu.CommandAllocator
	fenceValue uint64
}

// Renderer drives the frame cycle. It is not safe for concurrent use: one
// goroutine owns it from Initialize to Shutdown.
type Renderer struct {
	backend gpu.Backend
	cfg     Config
	draw    DrawFunc
	log     *slog.Logger

	adapter  gpu.AdapterInfo
	device   gpu.Device
	queue    gpu.Queue
	list     *command.List
	slots    []frameSlot
	surface  *surface.Surface
	sync     *fence.Engine
	releases gpu.ReleaseStack

	initialized bool
	state       FrameState
	index       uint32
	frame       uint64
	err         error
}

// New returns an uninitialized renderer on backend b.
func New(b gpu.Backend, opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{
		backend: b,
		cfg:     o.config,
		draw:    o.draw,
		log:     o.logger,
	}
}

func (r *Renderer) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return Logger()
}

// Initialize creates the device, queue, allocators, swap chain, views,
// command list and fence for window.
func (r *Renderer) Initialize(window gpu.WindowHandle) (err error) {
	if r.initialized {
		return ErrAlreadyInitialized
	}
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	level, _ := r.cfg.featureLevel()
	format, _ := r.cfg.format()
	log := r.logger()

	defer func() {
		if err != nil {
			r.releases.ReleaseAll()
			r.reset()
		}
	}()

	if r.cfg.Debug {
		if err := r.backend.EnableDebugLayer(); err != nil {
			log.Warn("mythforge: debug layer unavailable", "err", err)
		}
	}

	adapter, err := device.SelectAdapter(r.backend, level)
	if err != nil {
		return err
	}
	r.releases.Push("adapter", adapter)
	r.adapter = adapter.Info()
	log.Info("mythforge: adapter selected",
		"adapter", r.adapter.Description,
		"vram", r.adapter.DedicatedVideoMemory,
		"level", level)

	r.device, err = device.Create(r.backend, adapter, device.Options{
		Level:           level,
		Debug:           r.cfg.Debug,
		BreakOnSeverity: r.cfg.BreakOnSeverity,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	r.releases.Push("device", r.device)
	r.name(r.device, "device")

	r.queue, err = command.NewQueue(r.device)
	if err != nil {
		return &gpu.DeviceCreationError{Op: "create command queue", Err: err}
	}
	r.releases.Push("commandQueue", r.queue)
	r.name(r.queue, "commandQueue")

	allocators, err := command.NewAllocators(r.device, r.cfg.FrameCount)
	if err != nil {
		return &gpu.DeviceCreationError{Op: "create command allocators", Err: err}
	}
	r.slots = make([]frameSlot, len(allocators))
	for i, a := range allocators {
		r.slots[i].allocator = a
		r.releases.Push(fmt.Sprintf("commandAllocator[%d]", i), a)
		r.name(a, fmt.Sprintf("commandAllocator[%d]", i))
	}

	r.surface, err = surface.New(r.backend, r.device, r.queue, window, surface.Desc{
		BufferCount: uint32(r.cfg.FrameCount),
		Format:      format,
		Width:       r.cfg.Width,
		Height:      r.cfg.Height,
		Projection:  r.cfg.projection(),
		Debug:       r.cfg.Debug,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	r.releases.Push("surface", r.surface)
	r.index = r.surface.CurrentBackBufferIndex()

	r.list, err = command.NewList(r.device, r.slots[r.index].allocator)
	if err != nil {
		return &gpu.DeviceCreationError{Op: "create command list", Err: err}
	}
	r.releases.Push("commandList", r.list)
	r.name(r.list.Commands(), "commandList")

	f, err := r.device.CreateFence(0)
	if err != nil {
		return &gpu.SynchronizationError{Op: "create fence", Err: err}
	}
	r.releases.Push("fence", f)
	r.name(f, "fence")

	ev, err := r.backend.CreateEvent()
	if err != nil {
		return &gpu.SynchronizationError{Op: "create event", Err: err}
	}
	r.releases.PushFunc("fenceEvent", func() {
		if err := ev.Close(); err != nil {
			log.Warn("mythforge: close fence event", "err", err)
		}
	})

	r.sync = fence.New(r.queue, f, ev,
		fence.WithTimeout(r.cfg.WaitTimeout.duration()),
		fence.WithLogger(log))

	r.initialized = true
	r.state = StateIdle
	w, h := r.surface.Size()
	log.Info("mythforge: initialized",
		"backend", r.backend.Name(),
		"frames", r.cfg.FrameCount,
		"width", w, "height", h,
		"sync", r.cfg.SyncMode)
	return nil
}

func (r *Renderer) name(obj any, name string) {
	if !r.cfg.Debug {
		return
	}
	if err := gpu.SetName(obj, name); err != nil {
		r.logger().Warn("mythforge: set debug name", "name", name, "err", err)
	}
}

func (r *Renderer) reset() {
	r.device = nil
	r.queue = nil
	r.list = nil
	r.slots = nil
	r.surface = nil
	r.sync = nil
	r.adapter = gpu.AdapterInfo{}
	r.initialized = false
	r.state = StateIdle
	r.index = 0
	r.frame = 0
	r.err = nil
}

func (r *Renderer) usable() error {
	if !r.initialized {
		return ErrNotInitialized
	}
	if r.err != nil {
		return fmt.Errorf("%w: %w", ErrRendererFailed, r.err)
	}
	return nil
}

func (r *Renderer) fail(err error) error {
	r.err = err
	r.logger().Error("mythforge: renderer failed", "frame", r.frame, "state", r.state, "err", err)
	return err
}

// RenderFrame runs one reset, record, transition, submit, present and sync
// cycle on the current back buffer. In SyncImmediate mode it returns only
// after the GPU has finished the frame.
func (r *Renderer) RenderFrame() error {
	if err := r.usable(); err != nil {
		return err
	}
	if err := r.renderFrame(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Renderer) renderFrame() error {
	idx := r.index
	slot := &r.slots[idx]
	log := r.logger()

	// Reset: the slot's previous frame must be finished before its
	// allocator is reused.
	if err := r.beginSlot(slot); err != nil {
		return err
	}
	r.state = StateRecording

	// Record.
	cmd := r.list.Commands()
	back := r.surface.BackBuffer(idx)
	rtv := r.surface.RenderTargetView(idx)
	dsv := r.surface.DepthStencilView()
	vp := r.surface.Viewport()
	scissor := r.surface.ScissorRect()

	cmd.ResourceBarrier(gpu.Transition(back, gpu.ResourceStatePresent, gpu.ResourceStateRenderTarget))
	cmd.RSSetViewports(vp)
	cmd.RSSetScissorRects(scissor)
	cmd.OMSetRenderTargets([]gpu.DescriptorHandle{rtv}, &dsv)
	cmd.ClearRenderTargetView(rtv, r.cfg.clearColor())
	cmd.ClearDepthStencilView(dsv, 1.0, 0)

	if r.draw != nil {
		info := FrameInfo{
			Slot:         idx,
			Frame:        r.frame,
			Viewport:     vp,
			Scissor:      scissor,
			Projection:   r.surface.Projection(),
			RenderTarget: rtv,
			DepthStencil: dsv,
		}
		if err := r.draw(cmd, info); err != nil {
			_ = r.list.Close()
			return fmt.Errorf("mythforge: draw frame %d: %w", r.frame, err)
		}
	}

	// Transition-out.
	cmd.ResourceBarrier(gpu.Transition(back, gpu.ResourceStateRenderTarget, gpu.ResourceStatePresent))

	// Submit.
	if err := r.list.Close(); err != nil {
		return err
	}
	if err := r.list.Submit(r.queue); err != nil {
		return err
	}
	r.state = StateSubmitted

	// Present.
	if err := r.surface.Present(r.cfg.syncInterval()); err != nil {
		return err
	}
	r.state = StatePresented

	// Sync.
	value, err := r.sync.Signal()
	if err != nil {
		return err
	}
	slot.fenceValue = value
	if r.cfg.SyncMode == SyncImmediate {
		if err := r.sync.WaitForValue(value); err != nil {
			return err
		}
	}

	// Advance.
	r.index = r.surface.CurrentBackBufferIndex()
	r.frame++
	r.state = StateIdle

	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("mythforge: frame",
			"frame", r.frame-1,
			"slot", idx,
			"fence", value,
			"completed", r.sync.CompletedValue(),
			"next", r.index)
	}
	return nil
}

func (r *Renderer) beginSlot(slot *frameSlot) error {
	if err := r.sync.WaitForValue(slot.fenceValue); err != nil {
		return err
	}
	if err := slot.allocator.Reset(); err != nil {
		return fmt.Errorf("mythforge: reset allocator %d: %w", r.index, err)
	}
	return r.list.Reset(slot.allocator)
}

// Immediate records one-off commands into the current slot, submits them
// and waits until the GPU has executed them. Use it for uploads before the
// first frame.
func (r *Renderer) Immediate(record func(cmd gpu.CommandList) error) error {
	if err := r.usable(); err != nil {
		return err
	}
	slot := &r.slots[r.index]
	if err := r.beginSlot(slot); err != nil {
		return r.fail(err)
	}
	if err := record(r.list.Commands()); err != nil {
		_ = r.list.Close()
		return r.fail(fmt.Errorf("mythforge: immediate commands: %w", err))
	}
	if err := r.list.Close(); err != nil {
		return r.fail(err)
	}
	if err := r.list.Submit(r.queue); err != nil {
		return r.fail(err)
	}
	if err := r.sync.Flush(); err != nil {
		return r.fail(err)
	}
	slot.fenceValue = r.sync.SignaledValue()
	return nil
}

// Resize flushes the GPU and resizes the back buffers. A zero width or
// height (a minimized window) returns a *gpu.SwapChainError wrapping
// gpu.ErrInvalidSize and leaves the renderer usable.
func (r *Renderer) Resize(width, height uint32) error {
	if err := r.usable(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return &gpu.SwapChainError{Op: "resize", Err: fmt.Errorf("%dx%d: %w", width, height, gpu.ErrInvalidSize)}
	}

	if err := r.Flush(); err != nil {
		return err
	}
	if err := r.surface.Resize(width, height); err != nil {
		return r.fail(err)
	}
	r.index = r.surface.CurrentBackBufferIndex()
	return nil
}

// Flush blocks until the GPU has finished all submitted work. Afterwards
// every slot is free.
func (r *Renderer) Flush() error {
	if err := r.usable(); err != nil {
		return err
	}
	if err := r.sync.Flush(); err != nil {
		return r.fail(err)
	}
	done := r.sync.SignaledValue()
	for i := range r.slots {
		r.slots[i].fenceValue = done
	}
	return nil
}

// Shutdown drains the GPU and releases every object in reverse creation
// order. It is idempotent. After a synchronization failure the flush is
// skipped, as the fence can no longer be trusted.
func (r *Renderer) Shutdown() error {
	if !r.initialized {
		return nil
	}
	log := r.logger()

	var flushErr error
	var syncErr *gpu.SynchronizationError
	if !errors.As(r.err, &syncErr) {
		if err := r.sync.Flush(); err != nil {
			flushErr = err
			log.Warn("mythforge: flush before shutdown", "err", err)
		}
	}

	log.Debug("mythforge: releasing", "objects", r.releases.Names())
	r.releases.ReleaseAll()
	frames := r.frame
	r.reset()
	log.Info("mythforge: shut down", "frames", frames)
	return flushErr
}

// State returns the current frame state.
func (r *Renderer) State() FrameState { return r.state }

// Err returns the error that failed the renderer, or nil.
func (r *Renderer) Err() error { return r.err }

// CurrentBackBufferIndex returns the slot the next frame renders to.
func (r *Renderer) CurrentBackBufferIndex() uint32 { return r.index }

// FrameCount returns the number of back buffers and frame slots.
func (r *Renderer) FrameCount() int { return len(r.slots) }

// Frames returns the number of frames rendered since Initialize.
func (r *Renderer) Frames() uint64 { return r.frame }

// SlotFenceValue returns the fence value recorded for slot i.
func (r *Renderer) SlotFenceValue(i int) uint64 { return r.slots[i].fenceValue }

// SignaledValue returns the last fence value queued for signal.
func (r *Renderer) SignaledValue() uint64 {
	if r.sync == nil {
		return 0
	}
	return r.sync.SignaledValue()
}

// CompletedValue returns the last fence value the GPU reached.
func (r *Renderer) CompletedValue() uint64 {
	if r.sync == nil {
		return 0
	}
	return r.sync.CompletedValue()
}

// SyncStats returns fence wait statistics.
func (r *Renderer) SyncStats() fence.Stats {
	if r.sync == nil {
		return fence.Stats{}
	}
	return r.sync.Stats()
}

// Surface returns the presentation surface, or nil before Initialize.
func (r *Renderer) Surface() *surface.Surface { return r.surface }

// Device returns the logical device, or nil before Initialize.
func (r *Renderer) Device() gpu.Device { return r.device }

// Queue returns the command queue, or nil before Initialize.
func (r *Renderer) Queue() gpu.Queue { return r.queue }

// Config returns the effective configuration.
func (r *Renderer) Config() Config { return r.cfg }
