package sim

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/gpu"
)

// Command is one recorded command, kept for inspection in tests.
type Command struct {
	Op      string
	Target  gpu.DescriptorHandle
	Color   gputypes.Color
	Depth   float32
	Barrier gpu.Barrier
}

// CommandList is a simulated direct command list. Commands are validated
// as they are recorded.
type CommandList struct {
	object
	device *Device

	mu       sync.Mutex
	alloc    *CommandAllocator
	open     bool
	commands []Command
	last     []Command
	once     sync.Once
}

var _ gpu.CommandList = (*CommandList)(nil)

func (l *CommandList) isOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *CommandList) currentAllocator() *CommandAllocator {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alloc
}

// Reset reopens the list against alloc.
func (l *CommandList) Reset(alloc gpu.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("sim: allocator is %T: %w", alloc, ErrInvalidCall)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		return fmt.Errorf("sim: reset of open list %q: %w", l.name, ErrInvalidCall)
	}
	l.alloc = a
	l.open = true
	l.commands = l.commands[:0]
	return nil
}

// Close finishes recording.
func (l *CommandList) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return fmt.Errorf("sim: close of closed list %q: %w", l.name, ErrInvalidCall)
	}
	l.open = false
	l.last = append(l.last[:0], l.commands...)
	return nil
}

// LastRecorded returns the commands of the most recently closed recording.
func (l *CommandList) LastRecorded() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Command(nil), l.last...)
}

func (l *CommandList) record(c Command) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		l.device.backend.violate("%s recorded into closed list %q", c.Op, l.name)
		return false
	}
	l.commands = append(l.commands, c)
	return true
}

// ResourceBarrier records transitions and updates tracked states.
func (l *CommandList) ResourceBarrier(barriers ...gpu.Barrier) {
	for _, b := range barriers {
		if !l.record(Command{Op: "barrier", Barrier: b}) {
			return
		}
		r, ok := b.Resource.(*Resource)
		if !ok {
			l.device.backend.violate("barrier on foreign resource %T", b.Resource)
			continue
		}
		if r.isDestroyed() {
			l.device.backend.violate("barrier on released resource %q", r.name)
			continue
		}
		r.transition(b.Before, b.After)
	}
}

// RSSetViewports records viewports.
func (l *CommandList) RSSetViewports(viewports ...gpu.Viewport) {
	for _, vp := range viewports {
		if vp.Width <= 0 || vp.Height <= 0 {
			l.device.backend.violate("empty viewport %vx%v", vp.Width, vp.Height)
		}
	}
	l.record(Command{Op: "viewport"})
}

// RSSetScissorRects records scissor rectangles.
func (l *CommandList) RSSetScissorRects(rects ...gpu.Rect) {
	l.record(Command{Op: "scissor"})
}

// OMSetRenderTargets records output-merger bindings.
func (l *CommandList) OMSetRenderTargets(rtvs []gpu.DescriptorHandle, dsv *gpu.DescriptorHandle) {
	if !l.record(Command{Op: "bind"}) {
		return
	}
	for _, h := range rtvs {
		l.checkView(h, "bind", gpu.ResourceStateRenderTarget)
	}
	if dsv != nil {
		l.checkView(*dsv, "bind", gpu.ResourceStateDepthWrite)
	}
}

// ClearRenderTargetView records a colour clear.
func (l *CommandList) ClearRenderTargetView(rtv gpu.DescriptorHandle, c gputypes.Color) {
	if l.record(Command{Op: "clear-color", Target: rtv, Color: c}) {
		l.checkView(rtv, "clear", gpu.ResourceStateRenderTarget)
	}
}

// ClearDepthStencilView records a depth clear.
func (l *CommandList) ClearDepthStencilView(dsv gpu.DescriptorHandle, depth float32, stencil uint8) {
	if l.record(Command{Op: "clear-depth", Target: dsv, Depth: depth}) {
		l.checkView(dsv, "clear", gpu.ResourceStateDepthWrite)
	}
}

func (l *CommandList) checkView(h gpu.DescriptorHandle, op string, want gpu.ResourceState) {
	r, ok := l.device.View(h)
	if !ok {
		l.device.backend.violate("%s through unknown descriptor %#x", op, uintptr(h))
		return
	}
	if r.isDestroyed() {
		l.device.backend.violate("%s through stale view of %q", op, r.name)
		return
	}
	if st := r.State(); st != want {
		l.device.backend.violate("%s of %q in state %s, want %s", op, r.name, st, want)
	}
}

// Release releases the list.
func (l *CommandList) Release() {
	l.once.Do(func() { l.device.backend.untrack("list") })
}
