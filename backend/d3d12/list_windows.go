// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package d3d12

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/gpu"
)

// d3d12ResourceBarrier is D3D12_RESOURCE_BARRIER with the transition member
// of the union selected.
type d3d12ResourceBarrier struct {
	Type        uint32
	Flags       uint32
	Resource    *comObject
	Subresource uint32
	StateBefore uint32
	StateAfter  uint32
	_           uint32
}

// CommandList is an ID3D12GraphicsCommandList.
type CommandList struct {
	raw  *comObject
	once sync.Once
}

var _ gpu.CommandList = (*CommandList)(nil)

// SetName sets the debug name.
func (l *CommandList) SetName(name string) error { return l.raw.setName(name) }

// Release releases the list.
func (l *CommandList) Release() { l.once.Do(l.raw.release) }

// Reset reopens the list on alloc with no pipeline state.
func (l *CommandList) Reset(alloc gpu.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("d3d12: allocator is %T: %w", alloc, gpu.ErrNotSupported)
	}
	if err := check(l.raw.call(vtblListReset, uintptr(unsafe.Pointer(a.raw)), 0)); err != nil {
		return fmt.Errorf("d3d12: list Reset: %w", err)
	}
	return nil
}

// Close finishes recording.
func (l *CommandList) Close() error {
	if err := check(l.raw.call(vtblListClose)); err != nil {
		return fmt.Errorf("d3d12: list Close: %w", err)
	}
	return nil
}

// ResourceBarrier records transition barriers.
func (l *CommandList) ResourceBarrier(barriers ...gpu.Barrier) {
	if len(barriers) == 0 {
		return
	}
	raw := make([]d3d12ResourceBarrier, len(barriers))
	for i, b := range barriers {
		raw[i] = d3d12ResourceBarrier{
			Type:        d3d12ResourceBarrierTypeTransition,
			Resource:    b.Resource.(*Resource).raw,
			Subresource: d3d12ResourceBarrierAllSubresources,
			StateBefore: uint32(b.Before),
			StateAfter:  uint32(b.After),
		}
	}
	l.raw.call(vtblResourceBarrier, uintptr(len(raw)), uintptr(unsafe.Pointer(&raw[0])))
}

// RSSetViewports binds viewports.
func (l *CommandList) RSSetViewports(viewports ...gpu.Viewport) {
	if len(viewports) == 0 {
		return
	}
	l.raw.call(vtblRSSetViewports, uintptr(len(viewports)), uintptr(unsafe.Pointer(&viewports[0])))
}

// RSSetScissorRects binds scissor rectangles.
func (l *CommandList) RSSetScissorRects(rects ...gpu.Rect) {
	if len(rects) == 0 {
		return
	}
	l.raw.call(vtblRSSetScissorRects, uintptr(len(rects)), uintptr(unsafe.Pointer(&rects[0])))
}

// OMSetRenderTargets binds render target views and an optional depth view.
func (l *CommandList) OMSetRenderTargets(rtvs []gpu.DescriptorHandle, dsv *gpu.DescriptorHandle) {
	var first, depth uintptr
	if len(rtvs) > 0 {
		first = uintptr(unsafe.Pointer(&rtvs[0]))
	}
	if dsv != nil {
		depth = uintptr(unsafe.Pointer(dsv))
	}
	l.raw.call(vtblOMSetRenderTargets, uintptr(len(rtvs)), first, boolArg(false), depth)
}

// ClearRenderTargetView clears rtv to c.
func (l *CommandList) ClearRenderTargetView(rtv gpu.DescriptorHandle, c gputypes.Color) {
	rgba := [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	l.raw.call(vtblClearRenderTargetView, uintptr(rtv), uintptr(unsafe.Pointer(&rgba)), 0, 0)
}

// ClearDepthStencilView clears the depth plane of dsv. The depth argument
// is the fourth parameter and travels in XMM3.
func (l *CommandList) ClearDepthStencilView(dsv gpu.DescriptorHandle, depth float32, stencil uint8) {
	l.raw.call(vtblClearDepthStencilView,
		uintptr(dsv),
		d3d12ClearFlagDepth,
		uintptr(math.Float32bits(depth)),
		uintptr(stencil),
		0, 0)
}
