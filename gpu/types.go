// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// WindowHandle is an opaque platform window handle (an HWND on Windows).
type WindowHandle uintptr

// FeatureLevel is a Direct3D feature level. Values match D3D_FEATURE_LEVEL.
type FeatureLevel uint32

// Feature levels accepted by CreateDevice.
const (
	FeatureLevel11_0 FeatureLevel = 0xb000
	FeatureLevel11_1 FeatureLevel = 0xb100
	FeatureLevel12_0 FeatureLevel = 0xc000
	FeatureLevel12_1 FeatureLevel = 0xc100
)

// String returns the level in "12_1" form.
func (l FeatureLevel) String() string {
	return fmt.Sprintf("%d_%d", uint32(l)>>12, (uint32(l)>>8)&0xf)
}

// ParseFeatureLevel parses "12_1", "12.1" or "11_0" style names.
func ParseFeatureLevel(s string) (FeatureLevel, error) {
	switch strings.ReplaceAll(strings.TrimSpace(s), ".", "_") {
	case "11_0":
		return FeatureLevel11_0, nil
	case "11_1":
		return FeatureLevel11_1, nil
	case "12_0":
		return FeatureLevel12_0, nil
	case "12_1":
		return FeatureLevel12_1, nil
	}
	return 0, fmt.Errorf("gpu: unknown feature level %q", s)
}

// ResourceState is a resource usage state. Values match D3D12_RESOURCE_STATES.
type ResourceState uint32

// Resource states used by the frame loop.
const (
	ResourceStatePresent      ResourceState = 0
	ResourceStateRenderTarget ResourceState = 0x4
	ResourceStateDepthWrite   ResourceState = 0x10
)

func (s ResourceState) String() string {
	switch s {
	case ResourceStatePresent:
		return "present"
	case ResourceStateRenderTarget:
		return "render-target"
	case ResourceStateDepthWrite:
		return "depth-write"
	}
	return fmt.Sprintf("ResourceState(%#x)", uint32(s))
}

// Barrier is a transition barrier for all subresources of Resource.
type Barrier struct {
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

// Transition returns a barrier moving r from before to after.
func Transition(r Resource, before, after ResourceState) Barrier {
	return Barrier{Resource: r, Before: before, After: after}
}

// Viewport matches D3D12_VIEWPORT.
type Viewport struct {
	TopLeftX float32
	TopLeftY float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// Rect matches D3D12_RECT (a Win32 RECT).
type Rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// DescriptorHeapType matches D3D12_DESCRIPTOR_HEAP_TYPE.
type DescriptorHeapType uint32

// Descriptor heap types.
const (
	DescriptorHeapCBVSRVUAV DescriptorHeapType = 0
	DescriptorHeapSampler   DescriptorHeapType = 1
	DescriptorHeapRTV       DescriptorHeapType = 2
	DescriptorHeapDSV       DescriptorHeapType = 3
)

// DescriptorHandle is a CPU descriptor handle.
type DescriptorHandle uintptr

// Offset returns the handle index descriptors further into the heap.
func (h DescriptorHandle) Offset(index int, increment uint32) DescriptorHandle {
	return DescriptorHandle(int64(h) + int64(index)*int64(increment))
}

// CommandListType matches D3D12_COMMAND_LIST_TYPE.
type CommandListType uint32

// CommandListDirect is the graphics-capable list/queue type.
const CommandListDirect CommandListType = 0

// QueuePriority matches D3D12_COMMAND_QUEUE_PRIORITY.
type QueuePriority int32

// Queue priorities.
const (
	QueuePriorityNormal QueuePriority = 0
	QueuePriorityHigh   QueuePriority = 100
)

// QueueDesc describes a command queue.
type QueueDesc struct {
	Type     CommandListType
	Priority QueuePriority
}

// AdapterInfo describes a physical adapter.
type AdapterInfo struct {
	Description          string
	VendorID             uint32
	DeviceID             uint32
	DedicatedVideoMemory uint64
	Software             bool
}

// SwapChainDesc describes a flip-model swap chain.
type SwapChainDesc struct {
	Width       uint32
	Height      uint32
	Format      gputypes.TextureFormat
	BufferCount uint32
	SampleCount uint32
}

// ResourceDesc describes a 2D texture resource. Depth buffers are always
// 32-bit float and report DepthStencil with an undefined Format.
type ResourceDesc struct {
	Width        uint32
	Height       uint32
	Format       gputypes.TextureFormat
	DepthStencil bool
}

// MessageSeverity matches D3D12_MESSAGE_SEVERITY.
type MessageSeverity uint32

// Message severities, most severe first.
const (
	SeverityCorruption MessageSeverity = 0
	SeverityError      MessageSeverity = 1
	SeverityWarning    MessageSeverity = 2
	SeverityInfo       MessageSeverity = 3
	SeverityMessage    MessageSeverity = 4
)

func (s MessageSeverity) String() string {
	switch s {
	case SeverityCorruption:
		return "corruption"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityMessage:
		return "message"
	}
	return fmt.Sprintf("MessageSeverity(%d)", uint32(s))
}

// MessageID is a debug layer message identifier (D3D12_MESSAGE_ID).
type MessageID uint32

// Message IDs suppressed by the default debug filter.
const (
	MessageClearRenderTargetViewMismatchingClearValue MessageID = 820
	MessageMapInvalidNullRange                        MessageID = 1008
	MessageUnmapInvalidNullRange                      MessageID = 1009
)
