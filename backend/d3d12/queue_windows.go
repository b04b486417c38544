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

// Queue is an ID3D12CommandQueue.
type Queue struct {
	raw    *comObject
	device *Device
	once   sync.Once
}

var _ gpu.Queue = (*Queue)(nil)

// SetName sets the debug name.
func (q *Queue) SetName(name string) error { return q.raw.setName(name) }

// Release releases the queue.
func (q *Queue) Release() { q.once.Do(q.raw.release) }

// ExecuteCommandLists submits lists in order.
func (q *Queue) ExecuteCommandLists(lists ...gpu.CommandList) {
	if len(lists) == 0 {
		return
	}
	raws := make([]*comObject, 0, len(lists))
	for _, l := range lists {
		raws = append(raws, l.(*CommandList).raw)
	}
	q.raw.call(vtblExecuteCommandLists, uintptr(len(raws)), uintptr(unsafe.Pointer(&raws[0])))
}

// Signal enqueues a fence signal.
func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	df, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("d3d12: fence is %T: %w", f, gpu.ErrNotSupported)
	}
	if err := check(q.raw.call(vtblQueueSignal, uintptr(unsafe.Pointer(df.raw)), uintptr(value))); err != nil {
		return fmt.Errorf("d3d12: Signal(%d): %w", value, q.device.wrapLost(err))
	}
	return nil
}

// Fence is an ID3D12Fence.
type Fence struct {
	raw    *comObject
	device *Device
	once   sync.Once
}

var _ gpu.Fence = (*Fence)(nil)

// SetName sets the debug name.
func (f *Fence) SetName(name string) error { return f.raw.setName(name) }

// Release releases the fence.
func (f *Fence) Release() { f.once.Do(f.raw.release) }

// CompletedValue returns the last value the GPU reached. A removed device
// reports UINT64_MAX.
func (f *Fence) CompletedValue() uint64 {
	return uint64(f.raw.call(vtblGetCompletedValue))
}

// SetEventOnCompletion sets e, which must be an *Event, once the fence
// reaches value.
func (f *Fence) SetEventOnCompletion(value uint64, e gpu.Event) error {
	ev, ok := e.(*Event)
	if !ok {
		return fmt.Errorf("d3d12: event is %T: %w", e, gpu.ErrNotSupported)
	}
	if err := check(f.raw.call(vtblSetEventOnCompletion, uintptr(value), uintptr(ev.h))); err != nil {
		return fmt.Errorf("d3d12: SetEventOnCompletion(%d): %w", value, f.device.wrapLost(err))
	}
	return nil
}

// CommandAllocator is an ID3D12CommandAllocator.
type CommandAllocator struct {
	raw  *comObject
	once sync.Once
}

var _ gpu.CommandAllocator = (*CommandAllocator)(nil)

// SetName sets the debug name.
func (a *CommandAllocator) SetName(name string) error { return a.raw.setName(name) }

// Release releases the allocator.
func (a *CommandAllocator) Release() { a.once.Do(a.raw.release) }

// Reset reclaims the allocator's memory.
func (a *CommandAllocator) Reset() error {
	if err := check(a.raw.call(vtblAllocatorReset)); err != nil {
		return fmt.Errorf("d3d12: allocator Reset: %w", err)
	}
	return nil
}
