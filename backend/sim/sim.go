// Package sim implements a simulated GPU backend.
//
// The simulated GPU executes submitted work on its own goroutine, in
// submission order, optionally sleeping for a fixed latency per command
// list. It validates the usage rules a real driver would only report
// through the debug layer, and records each breach as a violation:
//
//   - resetting an allocator whose commands are still executing
//   - submitting an open command list or resetting an open one
//   - barriers whose before-state does not match the tracked state
//   - clears through views of released or resized buffers
//   - presenting a back buffer that is not in the present state
//
// Tests use Violations and LiveObjects to assert the frame loop obeys them.
//
// The backend registers itself as "sim" with priority 10.
package sim

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/mythforge/mythforge/backend"
	"github.com/mythforge/mythforge/gpu"
	"github.com/mythforge/mythforge/internal/event"
)

func init() {
	backend.Register("sim", 10, func() (gpu.Backend, error) {
		return New(), nil
	}, nil)
}

// Errors.
var (
	// ErrAllocatorInUse is returned by CommandAllocator.Reset while lists
	// recorded into the allocator are still executing.
	ErrAllocatorInUse = errors.New("sim: allocator reset while in flight")

	// ErrInvalidCall mirrors DXGI_ERROR_INVALID_CALL.
	ErrInvalidCall = errors.New("sim: invalid call")
)

// AdapterSpec describes a simulated adapter.
type AdapterSpec struct {
	Info     gpu.AdapterInfo
	MaxLevel gpu.FeatureLevel
}

// DefaultAdapters returns a software rasterizer, an integrated and a
// discrete GPU, in that order.
func DefaultAdapters() []AdapterSpec {
	return []AdapterSpec{
		{
			Info:     gpu.AdapterInfo{Description: "Microsoft Basic Render Driver", VendorID: 0x1414, DeviceID: 0x8c, Software: true},
			MaxLevel: gpu.FeatureLevel12_1,
		},
		{
			Info:     gpu.AdapterInfo{Description: "Simulated Integrated GPU", VendorID: 0x8086, DeviceID: 0x9a49, DedicatedVideoMemory: 128 << 20},
			MaxLevel: gpu.FeatureLevel12_1,
		},
		{
			Info:     gpu.AdapterInfo{Description: "Simulated Discrete GPU", VendorID: 0x10de, DeviceID: 0x2684, DedicatedVideoMemory: 8 << 30},
			MaxLevel: gpu.FeatureLevel12_1,
		},
	}
}

// Option configures a Backend.
type Option func(*Backend)

// WithAdapters replaces the default adapter list.
func WithAdapters(specs ...AdapterSpec) Option {
	return func(b *Backend) {
		b.adapters = specs
	}
}

// WithLatency makes the simulated GPU take d to execute each command list.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) {
		b.latency = d
	}
}

// WithWindowSize registers the client-area size reported for window.
func WithWindowSize(window gpu.WindowHandle, width, height uint32) Option {
	return func(b *Backend) {
		b.windows[window] = [2]uint32{width, height}
	}
}

// Backend is the simulated backend. All methods are safe for concurrent use.
type Backend struct {
	adapters []AdapterSpec
	latency  time.Duration

	mu           sync.Mutex
	windows      map[gpu.WindowHandle][2]uint32
	debug        bool
	devices      int
	violations   []string
	live         map[string]int
	nextHeapBase uint64

	presentErr error
	signalErr  error
}

var _ gpu.Backend = (*Backend)(nil)

// New returns a simulated backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		adapters:     DefaultAdapters(),
		windows:      make(map[gpu.WindowHandle][2]uint32),
		live:         make(map[string]int),
		nextHeapBase: 0x10000,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "sim".
func (b *Backend) Name() string { return "sim" }

// Release is a no-op; the backend owns no OS resources.
func (b *Backend) Release() {}

// EnableDebugLayer turns on the simulated debug layer. Like the real one it
// must be enabled before the first device is created.
func (b *Backend) EnableDebugLayer() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.devices > 0 {
		return fmt.Errorf("sim: debug layer enabled after device creation: %w", ErrInvalidCall)
	}
	b.debug = true
	return nil
}

// EnumerateAdapters returns one adapter per spec.
func (b *Backend) EnumerateAdapters() ([]gpu.Adapter, error) {
	out := make([]gpu.Adapter, len(b.adapters))
	for i, spec := range b.adapters {
		out[i] = &Adapter{spec: spec, backend: b}
		b.track("adapter")
	}
	return out, nil
}

// CheckDeviceSupport reports whether a supports level.
func (b *Backend) CheckDeviceSupport(a gpu.Adapter, level gpu.FeatureLevel) bool {
	sa, ok := a.(*Adapter)
	return ok && level <= sa.spec.MaxLevel
}

// CreateDevice creates a simulated device.
func (b *Backend) CreateDevice(a gpu.Adapter, level gpu.FeatureLevel) (gpu.Device, error) {
	if !b.CheckDeviceSupport(a, level) {
		return nil, fmt.Errorf("sim: feature level %s: %w", level, gpu.ErrNotSupported)
	}
	b.mu.Lock()
	b.devices++
	debug := b.debug
	b.mu.Unlock()

	b.track("device")
	d := &Device{
		backend: b,
		adapter: a.(*Adapter).spec.Info,
		level:   level,
		views:   make(map[gpu.DescriptorHandle]*Resource),
	}
	if debug {
		d.info = &InfoQueue{breakOn: make(map[gpu.MessageSeverity]bool)}
	}
	return d, nil
}

// CreateSwapChain creates a flip-discard swap chain presenting through queue.
// A zero width or height is taken from the window's client area.
func (b *Backend) CreateSwapChain(window gpu.WindowHandle, queue gpu.Queue, desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	q, ok := queue.(*Queue)
	if !ok {
		return nil, fmt.Errorf("sim: swap chain queue is %T: %w", queue, ErrInvalidCall)
	}
	if desc.BufferCount < 2 || desc.BufferCount > 16 {
		return nil, fmt.Errorf("sim: flip model needs 2..16 buffers, got %d: %w", desc.BufferCount, ErrInvalidCall)
	}
	if desc.SampleCount != 1 {
		return nil, fmt.Errorf("sim: flip model needs one sample, got %d: %w", desc.SampleCount, ErrInvalidCall)
	}
	if desc.Width == 0 || desc.Height == 0 {
		w, h, err := b.WindowSize(window)
		if err != nil {
			return nil, err
		}
		desc.Width, desc.Height = w, h
	}

	sc := &SwapChain{backend: b, queue: q, window: window, desc: desc}
	sc.allocBuffers()
	b.track("swapchain")
	return sc, nil
}

// CreateEvent returns a channel-based auto-reset event.
func (b *Backend) CreateEvent() (gpu.Event, error) {
	return event.New(), nil
}

// WindowSize returns the size registered for window.
func (b *Backend) WindowSize(window gpu.WindowHandle) (uint32, uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sz, ok := b.windows[window]
	if !ok {
		return 0, 0, fmt.Errorf("sim: unknown window %#x: %w", uintptr(window), ErrInvalidCall)
	}
	return sz[0], sz[1], nil
}

// SetWindowSize changes the size reported for window, as if the user
// resized it.
func (b *Backend) SetWindowSize(window gpu.WindowHandle, width, height uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows[window] = [2]uint32{width, height}
}

// FailNextPresent makes the next Present on any swap chain return err.
func (b *Backend) FailNextPresent(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentErr = err
}

// FailNextSignal makes the next Queue.Signal return err.
func (b *Backend) FailNextSignal(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signalErr = err
}

// Violations returns the usage violations recorded so far.
func (b *Backend) Violations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.violations...)
}

// LiveObjects returns the number of unreleased objects per kind. Kinds with
// no live objects are omitted.
func (b *Backend) LiveObjects() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.live)
}

func (b *Backend) violate(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.violations = append(b.violations, fmt.Sprintf(format, args...))
}

func (b *Backend) track(kind string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live[kind]++
}

func (b *Backend) untrack(kind string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.live[kind]--; b.live[kind] <= 0 {
		delete(b.live, kind)
	}
}

func (b *Backend) takeFault(p *error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := *p
	*p = nil
	return err
}

func (b *Backend) reserveHeap(size uint64) gpu.DescriptorHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := b.nextHeapBase
	b.nextHeapBase += size + 0x10000
	return gpu.DescriptorHandle(base)
}

// Adapter is a simulated adapter.
type Adapter struct {
	spec    AdapterSpec
	backend *Backend
	once    sync.Once
}

// Info returns the adapter description.
func (a *Adapter) Info() gpu.AdapterInfo { return a.spec.Info }

// Release releases the adapter.
func (a *Adapter) Release() {
	a.once.Do(func() { a.backend.untrack("adapter") })
}

// object carries the debug name of a simulated device child.
type object struct {
	name string
}

// SetName implements gpu.Named.
func (o *object) SetName(name string) error {
	o.name = name
	return nil
}

// Name returns the debug name.
func (o *object) Name() string { return o.name }
