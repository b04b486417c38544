// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package d3d12

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/mythforge/mythforge/gpu"
)

const (
	dxgiUsageRenderTargetOutput = 0x20
	dxgiSwapEffectFlipDiscard   = 4
)

type dxgiSwapChainDesc1 struct {
	Width         uint32
	Height        uint32
	Format        uint32
	Stereo        int32
	SampleCount   uint32
	SampleQuality uint32
	BufferUsage   uint32
	BufferCount   uint32
	Scaling       uint32
	SwapEffect    uint32
	AlphaMode     uint32
	Flags         uint32
}

// CreateSwapChain creates a flip-discard IDXGISwapChain3 for the HWND
// window. Alt+Enter fullscreen switching is disabled.
func (b *Backend) CreateSwapChain(window gpu.WindowHandle, queue gpu.Queue, desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	q, ok := queue.(*Queue)
	if !ok {
		return nil, fmt.Errorf("d3d12: swap chain queue is %T: %w", queue, gpu.ErrNotSupported)
	}
	format, err := dxgiFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	f, err := b.dxgiFactory()
	if err != nil {
		return nil, err
	}

	sd := dxgiSwapChainDesc1{
		Width:       desc.Width,
		Height:      desc.Height,
		Format:      format,
		SampleCount: desc.SampleCount,
		BufferUsage: dxgiUsageRenderTargetOutput,
		BufferCount: desc.BufferCount,
		SwapEffect:  dxgiSwapEffectFlipDiscard,
	}
	var sc1 *comObject
	err = check(f.call(vtblCreateSwapChainForHwnd,
		uintptr(unsafe.Pointer(q.raw)),
		uintptr(window),
		uintptr(unsafe.Pointer(&sd)),
		0, // fullscreen desc
		0, // restrict to output
		uintptr(unsafe.Pointer(&sc1))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateSwapChainForHwnd: %w", err)
	}
	defer sc1.release()

	if err := check(f.call(vtblMakeWindowAssociation, uintptr(window), dxgiMWANoAltEnter)); err != nil {
		return nil, fmt.Errorf("d3d12: MakeWindowAssociation: %w", err)
	}
	sc3, err := sc1.queryInterface(iidIDXGISwapChain3)
	if err != nil {
		return nil, fmt.Errorf("d3d12: IDXGISwapChain3: %w", err)
	}
	return &SwapChain{raw: sc3, device: q.device, desc: desc}, nil
}

// SwapChain is an IDXGISwapChain3.
type SwapChain struct {
	raw    *comObject
	device *Device
	once   sync.Once

	mu   sync.Mutex
	desc gpu.SwapChainDesc
}

var _ gpu.SwapChain = (*SwapChain)(nil)

// Desc returns the current description.
func (s *SwapChain) Desc() gpu.SwapChainDesc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

// CurrentBackBufferIndex returns the index of the next back buffer.
func (s *SwapChain) CurrentBackBufferIndex() uint32 {
	return uint32(s.raw.call(vtblGetCurrentBackBufferIndex))
}

// Buffer returns back buffer i with a new reference.
func (s *SwapChain) Buffer(i uint32) (gpu.Resource, error) {
	var raw *comObject
	err := check(s.raw.call(vtblGetBuffer, uintptr(i), uintptr(unsafe.Pointer(iidID3D12Resource)), uintptr(unsafe.Pointer(&raw))))
	if err != nil {
		return nil, fmt.Errorf("d3d12: GetBuffer(%d): %w", i, err)
	}
	d := s.Desc()
	return &Resource{raw: raw, desc: gpu.ResourceDesc{Width: d.Width, Height: d.Height, Format: d.Format}}, nil
}

// Present presents the current back buffer.
func (s *SwapChain) Present(syncInterval uint32) error {
	if err := check(s.raw.call(vtblPresent, uintptr(syncInterval), 0)); err != nil {
		return s.device.wrapLost(err)
	}
	return nil
}

// ResizeBuffers resizes all buffers, keeping the format.
func (s *SwapChain) ResizeBuffers(count, width, height uint32) error {
	if err := check(s.raw.call(vtblResizeBuffers, uintptr(count), uintptr(width), uintptr(height), uintptr(dxgiFormatUnknown), 0)); err != nil {
		return fmt.Errorf("d3d12: ResizeBuffers(%d, %dx%d): %w", count, width, height, s.device.wrapLost(err))
	}
	s.mu.Lock()
	s.desc.BufferCount, s.desc.Width, s.desc.Height = count, width, height
	s.mu.Unlock()
	return nil
}

// Release releases the swap chain.
func (s *SwapChain) Release() { s.once.Do(s.raw.release) }
