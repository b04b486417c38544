// Package command manages the direct command queue, per-frame command
// allocators and the single reusable command list.
//
// A List tracks whether it is open or closed and rejects Reset on an open
// list and submission of an open list. The allocator lifetime rule, that an
// allocator must not be reset while the GPU may still read from it, is
// enforced by the caller through the fence engine.
package command

import (
	"errors"
	"fmt"

	"github.com/mythforge/mythforge/gpu"
)

// Errors.
var (
	// ErrListOpen is returned when a closed list is required.
	ErrListOpen = errors.New("command: list is open")

	// ErrListClosed is returned when an open list is required.
	ErrListClosed = errors.New("command: list is closed")
)

// NewQueue creates the direct command queue at normal priority.
func NewQueue(dev gpu.Device) (gpu.Queue, error) {
	q, err := dev.CreateCommandQueue(gpu.QueueDesc{
		Type:     gpu.CommandListDirect,
		Priority: gpu.QueuePriorityNormal,
	})
	if err != nil {
		return nil, fmt.Errorf("command: create queue: %w", err)
	}
	return q, nil
}

// NewAllocators creates n direct allocators, one per frame slot. On failure
// every allocator already created is released.
func NewAllocators(dev gpu.Device, n int) ([]gpu.CommandAllocator, error) {
	allocs := make([]gpu.CommandAllocator, 0, n)
	for i := 0; i < n; i++ {
		a, err := dev.CreateCommandAllocator(gpu.CommandListDirect)
		if err != nil {
			for _, prev := range allocs {
				prev.Release()
			}
			return nil, fmt.Errorf("command: create allocator %d: %w", i, err)
		}
		allocs = append(allocs, a)
	}
	return allocs, nil
}

// List wraps the reusable direct command list with open/closed tracking.
type List struct {
	raw  gpu.CommandList
	open bool
}

// NewList creates a direct list bound to alloc and closes it immediately, so
// the frame loop always starts from a closed list.
func NewList(dev gpu.Device, alloc gpu.CommandAllocator) (*List, error) {
	raw, err := dev.CreateCommandList(gpu.CommandListDirect, alloc)
	if err != nil {
		return nil, fmt.Errorf("command: create list: %w", err)
	}
	if err := raw.Close(); err != nil {
		raw.Release()
		return nil, fmt.Errorf("command: close new list: %w", err)
	}
	return &List{raw: raw}, nil
}

// Reset reopens the list against alloc.
func (l *List) Reset(alloc gpu.CommandAllocator) error {
	if l.open {
		return ErrListOpen
	}
	if err := l.raw.Reset(alloc); err != nil {
		return fmt.Errorf("command: reset list: %w", err)
	}
	l.open = true
	return nil
}

// Close finishes recording.
func (l *List) Close() error {
	if !l.open {
		return ErrListClosed
	}
	if err := l.raw.Close(); err != nil {
		return fmt.Errorf("command: close list: %w", err)
	}
	l.open = false
	return nil
}

// Submit executes the closed list on q.
func (l *List) Submit(q gpu.Queue) error {
	if l.open {
		return ErrListOpen
	}
	q.ExecuteCommandLists(l.raw)
	return nil
}

// Commands returns the underlying list for recording. It is only valid
// between Reset and Close.
func (l *List) Commands() gpu.CommandList { return l.raw }

// IsOpen reports whether the list is recording.
func (l *List) IsOpen() bool { return l.open }

// Release releases the underlying list.
func (l *List) Release() {
	if l.raw != nil {
		l.raw.Release()
		l.raw = nil
	}
}
