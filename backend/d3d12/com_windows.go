// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package d3d12

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// COM vtable indices. Each interface continues the table of its parent.
const (
	// IUnknown
	vtblQueryInterface = 0
	vtblAddRef         = 1
	vtblRelease        = 2

	// ID3D12Object
	vtblSetName = 6

	// ID3D12Debug
	vtblEnableDebugLayer = 3

	// ID3D12Device
	vtblCreateCommandQueue               = 8
	vtblCreateCommandAllocator           = 9
	vtblCreateCommandList                = 12
	vtblCreateDescriptorHeap             = 14
	vtblGetDescriptorHandleIncrementSize = 15
	vtblCreateRenderTargetView           = 20
	vtblCreateDepthStencilView           = 21
	vtblCreateCommittedResource          = 27
	vtblCreateFence                      = 36
	vtblGetDeviceRemovedReason           = 37

	// ID3D12CommandQueue
	vtblExecuteCommandLists = 10
	vtblQueueSignal         = 14

	// ID3D12CommandAllocator
	vtblAllocatorReset = 8

	// ID3D12Fence
	vtblGetCompletedValue    = 8
	vtblSetEventOnCompletion = 9

	// ID3D12GraphicsCommandList
	vtblListClose             = 9
	vtblListReset             = 10
	vtblRSSetViewports        = 21
	vtblRSSetScissorRects     = 22
	vtblResourceBarrier       = 26
	vtblOMSetRenderTargets    = 46
	vtblClearDepthStencilView = 47
	vtblClearRenderTargetView = 48

	// ID3D12DescriptorHeap
	vtblGetCPUDescriptorHandleForHeapStart = 9

	// ID3D12InfoQueue
	vtblPushStorageFilter  = 17
	vtblSetBreakOnSeverity = 31

	// IDXGIFactory
	vtblMakeWindowAssociation = 8
	// IDXGIFactory1
	vtblEnumAdapters1 = 12
	// IDXGIFactory2
	vtblCreateSwapChainForHwnd = 15

	// IDXGIAdapter1
	vtblGetDesc1 = 10

	// IDXGISwapChain
	vtblPresent       = 8
	vtblGetBuffer     = 9
	vtblResizeBuffers = 13
	// IDXGISwapChain3
	vtblGetCurrentBackBufferIndex = 36
)

// Interface IDs.
var (
	iidID3D12Debug               = guid(0x344488b7, 0x6846, 0x474b, 0xb9, 0x89, 0xf0, 0x27, 0x44, 0x82, 0x45, 0xe0)
	iidID3D12Device              = guid(0x189819f1, 0x1db6, 0x4b57, 0xbe, 0x54, 0x18, 0x21, 0x33, 0x9b, 0x85, 0xf7)
	iidID3D12CommandQueue        = guid(0x0ec870a6, 0x5d7e, 0x4c22, 0x8c, 0xfc, 0x5b, 0xaa, 0xe0, 0x76, 0x16, 0xed)
	iidID3D12CommandAllocator    = guid(0x6102dee4, 0xaf59, 0x4b09, 0xb9, 0x99, 0xb4, 0x4d, 0x73, 0xf0, 0x9b, 0x24)
	iidID3D12GraphicsCommandList = guid(0x5b160d0f, 0xac1b, 0x4185, 0x8b, 0xa8, 0xb3, 0xae, 0x42, 0xa5, 0xa4, 0x55)
	iidID3D12DescriptorHeap      = guid(0x8efb471d, 0x616c, 0x4f49, 0x90, 0xf7, 0x12, 0x7b, 0xb7, 0x63, 0xfa, 0x51)
	iidID3D12Resource            = guid(0x696442be, 0xa72e, 0x4059, 0xbc, 0x79, 0x5b, 0x5c, 0x98, 0x04, 0x0f, 0xad)
	iidID3D12Fence               = guid(0x0a753dcf, 0xc4d8, 0x4b91, 0xad, 0xf6, 0xbe, 0x5a, 0x60, 0xd9, 0x5a, 0x76)
	iidID3D12InfoQueue           = guid(0x0742a90b, 0xc387, 0x483f, 0xb9, 0x46, 0x30, 0xa7, 0xe4, 0xe6, 0x14, 0x58)
	iidIDXGIFactory4             = guid(0x1bc6ea02, 0xef36, 0x464f, 0xbf, 0x0c, 0x21, 0xca, 0x39, 0xe5, 0x16, 0x8a)
	iidIDXGISwapChain3           = guid(0x94d99bdb, 0xf1f8, 0x4ab0, 0xb2, 0x36, 0x7d, 0xa0, 0x17, 0x0e, 0xda, 0xb1)
)

func guid(d1 uint32, d2, d3 uint16, d4 ...byte) *windows.GUID {
	g := &windows.GUID{Data1: d1, Data2: d2, Data3: d3}
	copy(g.Data4[:], d4)
	return g
}

// comObject is the memory layout of any COM interface pointer: a pointer
// to its vtable.
type comObject struct {
	vtbl *[64]uintptr
}

// call invokes vtable method i with o as the this pointer. Go's Windows
// syscall path mirrors the first four integer arguments into XMM0-XMM3, so
// float32 arguments in those positions are passed as their bit patterns.
func (o *comObject) call(i int, args ...uintptr) uintptr {
	a := make([]uintptr, 0, len(args)+1)
	a = append(a, uintptr(unsafe.Pointer(o)))
	a = append(a, args...)
	r, _, _ := syscall.SyscallN(o.vtbl[i], a...)
	return r
}

func (o *comObject) release() {
	if o != nil {
		o.call(vtblRelease)
	}
}

func (o *comObject) queryInterface(iid *windows.GUID) (*comObject, error) {
	var out *comObject
	if err := check(o.call(vtblQueryInterface, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))); err != nil {
		return nil, err
	}
	return out, nil
}

// setName calls ID3D12Object::SetName.
func (o *comObject) setName(name string) error {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return fmt.Errorf("d3d12: set name: %w", err)
	}
	return check(o.call(vtblSetName, uintptr(unsafe.Pointer(p))))
}

func boolArg(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}
