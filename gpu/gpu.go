// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Releaser is implemented by every object owning GPU or OS resources.
// Release must be called exactly once; using an object after Release is
// undefined behavior.
type Releaser interface {
	Release()
}

// Named is implemented by objects that accept a debug name (ID3D12Object::SetName).
type Named interface {
	SetName(name string) error
}

// SetName labels obj for debugging tools when it supports naming.
// Objects without naming support are ignored.
func SetName(obj any, name string) error {
	if n, ok := obj.(Named); ok {
		return n.SetName(name)
	}
	return nil
}

// Backend is the entry point of a GPU implementation: the DXGI factory plus
// the few OS services the frame loop needs (events and window sizes).
type Backend interface {
	Releaser

	// Name returns the backend identifier, e.g. "d3d12" or "sim".
	Name() string

	// EnableDebugLayer turns on the validation layer. It must be called
	// before any device is created.
	EnableDebugLayer() error

	// EnumerateAdapters returns all adapters in system order. The caller
	// owns the returned adapters.
	EnumerateAdapters() ([]Adapter, error)

	// CheckDeviceSupport reports whether a device can be created on a at
	// the given feature level without actually creating one.
	CheckDeviceSupport(a Adapter, level FeatureLevel) bool

	// CreateDevice creates a logical device on a at the given feature level.
	CreateDevice(a Adapter, level FeatureLevel) (Device, error)

	// CreateSwapChain creates a flip-model swap chain for window, presenting
	// through queue.
	CreateSwapChain(window WindowHandle, queue Queue, desc SwapChainDesc) (SwapChain, error)

	// CreateEvent creates an auto-reset event for fence waits.
	CreateEvent() (Event, error)

	// WindowSize returns the client-area size of window in pixels.
	WindowSize(window WindowHandle) (width, height uint32, err error)
}

// Adapter is a physical GPU.
type Adapter interface {
	Releaser
	Info() AdapterInfo
}

// Device is a logical device and the factory for all device objects.
type Device interface {
	Releaser

	CreateCommandQueue(desc QueueDesc) (Queue, error)
	CreateCommandAllocator(t CommandListType) (CommandAllocator, error)

	// CreateCommandList creates a list in the open state, bound to alloc.
	CreateCommandList(t CommandListType, alloc CommandAllocator) (CommandList, error)

	CreateDescriptorHeap(t DescriptorHeapType, count uint32) (DescriptorHeap, error)
	DescriptorIncrement(t DescriptorHeapType) uint32
	CreateRenderTargetView(res Resource, dst DescriptorHandle)

	// CreateDepthStencil creates a committed 32-bit float depth buffer in the
	// depth-write state, with an optimized clear value of 1.0.
	CreateDepthStencil(width, height uint32) (Resource, error)
	CreateDepthStencilView(res Resource, dst DescriptorHandle)

	CreateFence(initial uint64) (Fence, error)

	// InfoQueue returns the debug message queue. It returns an error wrapping
	// ErrNotSupported when the debug layer is not active.
	InfoQueue() (InfoQueue, error)
}

// Queue is a command queue.
type Queue interface {
	Releaser

	// ExecuteCommandLists submits closed command lists in order.
	ExecuteCommandLists(lists ...CommandList)

	// Signal enqueues an instruction setting f's completed value to value
	// once all previously submitted work has finished.
	Signal(f Fence, value uint64) error
}

// CommandAllocator backs the memory of recorded commands.
type CommandAllocator interface {
	Releaser

	// Reset reclaims the memory. The GPU must have finished every list
	// recorded into the allocator.
	Reset() error
}

// CommandList records GPU commands.
type CommandList interface {
	Releaser

	// Reset reopens a closed list, binding it to alloc.
	Reset(alloc CommandAllocator) error

	// Close finishes recording.
	Close() error

	ResourceBarrier(barriers ...Barrier)
	RSSetViewports(viewports ...Viewport)
	RSSetScissorRects(rects ...Rect)
	OMSetRenderTargets(rtvs []DescriptorHandle, dsv *DescriptorHandle)
	ClearRenderTargetView(rtv DescriptorHandle, c gputypes.Color)
	ClearDepthStencilView(dsv DescriptorHandle, depth float32, stencil uint8)
}

// DescriptorHeap is a CPU-visible descriptor heap.
type DescriptorHeap interface {
	Releaser
	Type() DescriptorHeapType
	Len() uint32
	CPUStart() DescriptorHandle
}

// Resource is a GPU resource (back buffer or depth buffer).
type Resource interface {
	Releaser
	Desc() ResourceDesc
}

// Fence is a GPU/CPU synchronization counter.
type Fence interface {
	Releaser

	// CompletedValue returns the last value the GPU has reached.
	CompletedValue() uint64

	// SetEventOnCompletion arranges for e to be signaled once the fence
	// reaches value. If it already has, e is signaled immediately.
	SetEventOnCompletion(value uint64, e Event) error
}

// Event is an auto-reset event used to block on fence completion.
type Event interface {
	// Wait blocks until the event is signaled. A timeout <= 0 waits forever;
	// otherwise expiry returns an error wrapping ErrWaitTimeout.
	Wait(timeout time.Duration) error
	Close() error
}

// SwapChain is a flip-model swap chain.
type SwapChain interface {
	Releaser

	Desc() SwapChainDesc

	// CurrentBackBufferIndex returns the index of the buffer that will be
	// rendered to next. It changes only as a result of Present.
	CurrentBackBufferIndex() uint32

	// Buffer returns back buffer i. The caller owns a reference and must
	// release it before ResizeBuffers.
	Buffer(i uint32) (Resource, error)

	Present(syncInterval uint32) error

	// ResizeBuffers resizes all buffers, keeping the format. Every reference
	// returned by Buffer must have been released.
	ResizeBuffers(count, width, height uint32) error
}

// InfoQueue is the debug layer message queue.
type InfoQueue interface {
	Releaser
	PushStorageFilter(f MessageFilter) error
	SetBreakOnSeverity(s MessageSeverity, enable bool) error
}
