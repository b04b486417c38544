// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package d3d12

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/mythforge/mythforge/gpu"
)

const (
	d3d12HeapTypeDefault                = 1
	d3d12ResourceDimensionTexture2D     = 3
	d3d12ResourceFlagAllowDepthStencil  = 0x2
	d3d12DSVDimensionTexture2D          = 3
	d3d12HeapFlagNone                   = 0
	d3d12FenceFlagNone                  = 0
	d3d12ResourceBarrierTypeTransition  = 0
	d3d12ResourceBarrierAllSubresources = 0xffffffff
	d3d12ClearFlagDepth                 = 0x1
)

type d3d12CommandQueueDesc struct {
	Type     int32
	Priority int32
	Flags    uint32
	NodeMask uint32
}

type d3d12DescriptorHeapDesc struct {
	Type           uint32
	NumDescriptors uint32
	Flags          uint32
	NodeMask       uint32
}

type d3d12HeapProperties struct {
	Type                 uint32
	CPUPageProperty      uint32
	MemoryPoolPreference uint32
	CreationNodeMask     uint32
	VisibleNodeMask      uint32
}

type d3d12ResourceDesc struct {
	Dimension        uint32
	Alignment        uint64
	Width            uint64
	Height           uint32
	DepthOrArraySize uint16
	MipLevels        uint16
	Format           uint32
	SampleCount      uint32
	SampleQuality    uint32
	Layout           uint32
	Flags            uint32
}

// d3d12DepthClearValue is D3D12_CLEAR_VALUE with the depth-stencil member
// of the union selected.
type d3d12DepthClearValue struct {
	Format  uint32
	Depth   float32
	Stencil uint8
	_       [11]byte
}

type d3d12DepthStencilViewDesc struct {
	Format        uint32
	ViewDimension uint32
	Flags         uint32
	MipSlice      uint32
	_             [2]uint32
}

type d3d12InfoQueueFilterDesc struct {
	NumCategories uint32
	CategoryList  *uint32
	NumSeverities uint32
	SeverityList  *gpu.MessageSeverity
	NumIDs        uint32
	IDList        *gpu.MessageID
}

type d3d12InfoQueueFilter struct {
	AllowList d3d12InfoQueueFilterDesc
	DenyList  d3d12InfoQueueFilterDesc
}

// Device is an ID3D12Device.
type Device struct {
	raw     *comObject
	adapter gpu.AdapterInfo
	level   gpu.FeatureLevel
	debug   bool
	once    sync.Once
}

var _ gpu.Device = (*Device)(nil)

// FeatureLevel returns the level the device was created at.
func (d *Device) FeatureLevel() gpu.FeatureLevel { return d.level }

// SetName sets the debug name.
func (d *Device) SetName(name string) error { return d.raw.setName(name) }

// Release releases the device.
func (d *Device) Release() { d.once.Do(d.raw.release) }

// RemovedReason returns the reason the device was removed, or nil.
func (d *Device) RemovedReason() error {
	return check(d.raw.call(vtblGetDeviceRemovedReason))
}

// wrapLost tags err with the device-removed reason when err means the
// device is gone.
func (d *Device) wrapLost(err error) error {
	var hr HRESULT
	if errors.As(err, &hr) && hr.DeviceLost() {
		if reason := d.RemovedReason(); reason != nil {
			return fmt.Errorf("%w (removed reason: %v)", err, reason)
		}
	}
	return err
}

// CreateCommandQueue creates an ID3D12CommandQueue.
func (d *Device) CreateCommandQueue(desc gpu.QueueDesc) (gpu.Queue, error) {
	qd := d3d12CommandQueueDesc{Type: int32(desc.Type), Priority: int32(desc.Priority)}
	var raw *comObject
	err := check(d.raw.call(vtblCreateCommandQueue,
		uintptr(unsafe.Pointer(&qd)),
		uintptr(unsafe.Pointer(iidID3D12CommandQueue)),
		uintptr(unsafe.Pointer(&raw))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateCommandQueue: %w", d.wrapLost(err))
	}
	return &Queue{raw: raw, device: d}, nil
}

// CreateCommandAllocator creates an ID3D12CommandAllocator.
func (d *Device) CreateCommandAllocator(t gpu.CommandListType) (gpu.CommandAllocator, error) {
	var raw *comObject
	err := check(d.raw.call(vtblCreateCommandAllocator,
		uintptr(t),
		uintptr(unsafe.Pointer(iidID3D12CommandAllocator)),
		uintptr(unsafe.Pointer(&raw))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateCommandAllocator: %w", d.wrapLost(err))
	}
	return &CommandAllocator{raw: raw}, nil
}

// CreateCommandList creates an open ID3D12GraphicsCommandList on alloc.
func (d *Device) CreateCommandList(t gpu.CommandListType, alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return nil, fmt.Errorf("d3d12: allocator is %T: %w", alloc, gpu.ErrNotSupported)
	}
	var raw *comObject
	err := check(d.raw.call(vtblCreateCommandList,
		0, // node mask
		uintptr(t),
		uintptr(unsafe.Pointer(a.raw)),
		0, // initial pipeline state
		uintptr(unsafe.Pointer(iidID3D12GraphicsCommandList)),
		uintptr(unsafe.Pointer(&raw))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateCommandList: %w", d.wrapLost(err))
	}
	return &CommandList{raw: raw}, nil
}

// CreateDescriptorHeap creates a CPU-only descriptor heap.
func (d *Device) CreateDescriptorHeap(t gpu.DescriptorHeapType, count uint32) (gpu.DescriptorHeap, error) {
	hd := d3d12DescriptorHeapDesc{Type: uint32(t), NumDescriptors: count}
	var raw *comObject
	err := check(d.raw.call(vtblCreateDescriptorHeap,
		uintptr(unsafe.Pointer(&hd)),
		uintptr(unsafe.Pointer(iidID3D12DescriptorHeap)),
		uintptr(unsafe.Pointer(&raw))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateDescriptorHeap: %w", d.wrapLost(err))
	}
	// GetCPUDescriptorHandleForHeapStart returns a struct, which the
	// Windows x64 ABI passes back through a hidden pointer argument.
	var start uintptr
	raw.call(vtblGetCPUDescriptorHandleForHeapStart, uintptr(unsafe.Pointer(&start)))
	return &DescriptorHeap{raw: raw, typ: t, count: count, start: gpu.DescriptorHandle(start)}, nil
}

// DescriptorIncrement returns the handle increment for t.
func (d *Device) DescriptorIncrement(t gpu.DescriptorHeapType) uint32 {
	return uint32(d.raw.call(vtblGetDescriptorHandleIncrementSize, uintptr(t)))
}

// CreateRenderTargetView writes a default RTV for res at dst.
func (d *Device) CreateRenderTargetView(res gpu.Resource, dst gpu.DescriptorHandle) {
	r := res.(*Resource)
	d.raw.call(vtblCreateRenderTargetView, uintptr(unsafe.Pointer(r.raw)), 0, uintptr(dst))
}

// CreateDepthStencilView writes a D32_FLOAT texture 2D view for res at dst.
func (d *Device) CreateDepthStencilView(res gpu.Resource, dst gpu.DescriptorHandle) {
	r := res.(*Resource)
	desc := d3d12DepthStencilViewDesc{Format: dxgiFormatD32Float, ViewDimension: d3d12DSVDimensionTexture2D}
	d.raw.call(vtblCreateDepthStencilView, uintptr(unsafe.Pointer(r.raw)), uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

// CreateDepthStencil creates a committed D32_FLOAT depth buffer in the
// depth-write state, optimized for clears to 1.0.
func (d *Device) CreateDepthStencil(width, height uint32) (gpu.Resource, error) {
	heap := d3d12HeapProperties{Type: d3d12HeapTypeDefault, CreationNodeMask: 1, VisibleNodeMask: 1}
	desc := d3d12ResourceDesc{
		Dimension:        d3d12ResourceDimensionTexture2D,
		Width:            uint64(width),
		Height:           height,
		DepthOrArraySize: 1,
		MipLevels:        1,
		Format:           dxgiFormatD32Float,
		SampleCount:      1,
		Flags:            d3d12ResourceFlagAllowDepthStencil,
	}
	cv := d3d12DepthClearValue{Format: dxgiFormatD32Float, Depth: 1}
	var raw *comObject
	err := check(d.raw.call(vtblCreateCommittedResource,
		uintptr(unsafe.Pointer(&heap)),
		d3d12HeapFlagNone,
		uintptr(unsafe.Pointer(&desc)),
		uintptr(gpu.ResourceStateDepthWrite),
		uintptr(unsafe.Pointer(&cv)),
		uintptr(unsafe.Pointer(iidID3D12Resource)),
		uintptr(unsafe.Pointer(&raw))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateCommittedResource(depth %dx%d): %w", width, height, d.wrapLost(err))
	}
	return &Resource{raw: raw, desc: gpu.ResourceDesc{Width: width, Height: height, DepthStencil: true}}, nil
}

// CreateFence creates an ID3D12Fence.
func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	var raw *comObject
	err := check(d.raw.call(vtblCreateFence,
		uintptr(initial),
		d3d12FenceFlagNone,
		uintptr(unsafe.Pointer(iidID3D12Fence)),
		uintptr(unsafe.Pointer(&raw))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateFence: %w", d.wrapLost(err))
	}
	return &Fence{raw: raw, device: d}, nil
}

// InfoQueue queries the debug message queue. Without the debug layer the
// device does not implement ID3D12InfoQueue.
func (d *Device) InfoQueue() (gpu.InfoQueue, error) {
	if !d.debug {
		return nil, fmt.Errorf("d3d12: info queue: debug layer off: %w", gpu.ErrNotSupported)
	}
	raw, err := d.raw.queryInterface(iidID3D12InfoQueue)
	if err != nil {
		return nil, fmt.Errorf("d3d12: info queue: %w", err)
	}
	return &InfoQueue{raw: raw}, nil
}

// DescriptorHeap is an ID3D12DescriptorHeap.
type DescriptorHeap struct {
	raw   *comObject
	typ   gpu.DescriptorHeapType
	count uint32
	start gpu.DescriptorHandle
	once  sync.Once
}

func (h *DescriptorHeap) Type() gpu.DescriptorHeapType   { return h.typ }
func (h *DescriptorHeap) Len() uint32                    { return h.count }
func (h *DescriptorHeap) CPUStart() gpu.DescriptorHandle { return h.start }
func (h *DescriptorHeap) SetName(name string) error      { return h.raw.setName(name) }
func (h *DescriptorHeap) Release()                       { h.once.Do(h.raw.release) }

// Resource is an ID3D12Resource.
type Resource struct {
	raw  *comObject
	desc gpu.ResourceDesc
	once sync.Once
}

func (r *Resource) Desc() gpu.ResourceDesc    { return r.desc }
func (r *Resource) SetName(name string) error { return r.raw.setName(name) }
func (r *Resource) Release()                  { r.once.Do(r.raw.release) }

// InfoQueue is an ID3D12InfoQueue.
type InfoQueue struct {
	raw  *comObject
	once sync.Once
}

// PushStorageFilter pushes f as a deny-list storage filter.
func (q *InfoQueue) PushStorageFilter(f gpu.MessageFilter) error {
	var filter d3d12InfoQueueFilter
	if n := len(f.DenySeverities); n > 0 {
		filter.DenyList.NumSeverities = uint32(n)
		filter.DenyList.SeverityList = &f.DenySeverities[0]
	}
	if n := len(f.DenyIDs); n > 0 {
		filter.DenyList.NumIDs = uint32(n)
		filter.DenyList.IDList = &f.DenyIDs[0]
	}
	if err := check(q.raw.call(vtblPushStorageFilter, uintptr(unsafe.Pointer(&filter)))); err != nil {
		return fmt.Errorf("d3d12: PushStorageFilter: %w", err)
	}
	return nil
}

// SetBreakOnSeverity toggles debugger breaks for s.
func (q *InfoQueue) SetBreakOnSeverity(s gpu.MessageSeverity, enable bool) error {
	if err := check(q.raw.call(vtblSetBreakOnSeverity, uintptr(s), boolArg(enable))); err != nil {
		return fmt.Errorf("d3d12: SetBreakOnSeverity(%s): %w", s, err)
	}
	return nil
}

// Release releases the queue interface.
func (q *InfoQueue) Release() { q.once.Do(q.raw.release) }
