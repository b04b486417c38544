package sim

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/gpu"
)

// Descriptor increments per heap type, as reported by typical hardware.
var increments = map[gpu.DescriptorHeapType]uint32{
	gpu.DescriptorHeapCBVSRVUAV: 32,
	gpu.DescriptorHeapSampler:   32,
	gpu.DescriptorHeapRTV:       32,
	gpu.DescriptorHeapDSV:       8,
}

// Device is a simulated logical device.
type Device struct {
	object
	backend *Backend
	adapter gpu.AdapterInfo
	level   gpu.FeatureLevel
	info    *InfoQueue

	mu    sync.Mutex
	heaps []*DescriptorHeap
	views map[gpu.DescriptorHandle]*Resource
	once  sync.Once
}

var _ gpu.Device = (*Device)(nil)

// FeatureLevel returns the level the device was created at.
func (d *Device) FeatureLevel() gpu.FeatureLevel { return d.level }

// Adapter returns the description of the adapter the device runs on.
func (d *Device) Adapter() gpu.AdapterInfo { return d.adapter }

// Release releases the device.
func (d *Device) Release() {
	d.once.Do(func() { d.backend.untrack("device") })
}

// CreateCommandQueue starts the simulated GPU for a new queue.
func (d *Device) CreateCommandQueue(desc gpu.QueueDesc) (gpu.Queue, error) {
	if desc.Type != gpu.CommandListDirect {
		return nil, fmt.Errorf("sim: queue type %d: %w", desc.Type, gpu.ErrNotSupported)
	}
	q := newQueue(d.backend, desc)
	d.backend.track("queue")
	return q, nil
}

// CreateCommandAllocator creates an allocator.
func (d *Device) CreateCommandAllocator(t gpu.CommandListType) (gpu.CommandAllocator, error) {
	if t != gpu.CommandListDirect {
		return nil, fmt.Errorf("sim: allocator type %d: %w", t, gpu.ErrNotSupported)
	}
	d.backend.track("allocator")
	return &CommandAllocator{backend: d.backend}, nil
}

// CreateCommandList creates an open list bound to alloc.
func (d *Device) CreateCommandList(t gpu.CommandListType, alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	if t != gpu.CommandListDirect {
		return nil, fmt.Errorf("sim: list type %d: %w", t, gpu.ErrNotSupported)
	}
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return nil, fmt.Errorf("sim: allocator is %T: %w", alloc, ErrInvalidCall)
	}
	d.backend.track("list")
	return &CommandList{device: d, alloc: a, open: true}, nil
}

// CreateDescriptorHeap creates a CPU-only descriptor heap.
func (d *Device) CreateDescriptorHeap(t gpu.DescriptorHeapType, count uint32) (gpu.DescriptorHeap, error) {
	inc, ok := increments[t]
	if !ok {
		return nil, fmt.Errorf("sim: heap type %d: %w", t, ErrInvalidCall)
	}
	if count == 0 {
		return nil, fmt.Errorf("sim: empty descriptor heap: %w", ErrInvalidCall)
	}
	h := &DescriptorHeap{
		device: d,
		typ:    t,
		count:  count,
		start:  d.backend.reserveHeap(uint64(count) * uint64(inc)),
	}
	d.mu.Lock()
	d.heaps = append(d.heaps, h)
	d.mu.Unlock()
	d.backend.track("heap")
	return h, nil
}

// DescriptorIncrement returns the handle increment for heap type t.
func (d *Device) DescriptorIncrement(t gpu.DescriptorHeapType) uint32 {
	return increments[t]
}

// CreateRenderTargetView writes a view of res into dst.
func (d *Device) CreateRenderTargetView(res gpu.Resource, dst gpu.DescriptorHandle) {
	d.writeView(res, dst, gpu.DescriptorHeapRTV)
}

// CreateDepthStencilView writes a depth view of res into dst.
func (d *Device) CreateDepthStencilView(res gpu.Resource, dst gpu.DescriptorHandle) {
	d.writeView(res, dst, gpu.DescriptorHeapDSV)
}

func (d *Device) writeView(res gpu.Resource, dst gpu.DescriptorHandle, t gpu.DescriptorHeapType) {
	r, ok := res.(*Resource)
	if !ok {
		d.backend.violate("view of foreign resource %T", res)
		return
	}
	if !d.inHeap(dst, t) {
		d.backend.violate("view %#x outside any heap of type %d", uintptr(dst), t)
		return
	}
	if (t == gpu.DescriptorHeapDSV) != r.desc.DepthStencil {
		d.backend.violate("view type %d does not match resource %q", t, r.name)
		return
	}
	d.mu.Lock()
	d.views[dst] = r
	d.mu.Unlock()
}

func (d *Device) inHeap(h gpu.DescriptorHandle, t gpu.DescriptorHeapType) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	inc := increments[t]
	for _, heap := range d.heaps {
		if heap.typ != t || heap.released {
			continue
		}
		end := heap.start + gpu.DescriptorHandle(heap.count*inc)
		if h >= heap.start && h < end && (h-heap.start)%gpu.DescriptorHandle(inc) == 0 {
			return true
		}
	}
	return false
}

// View returns the resource the descriptor at h refers to.
func (d *Device) View(h gpu.DescriptorHandle) (*Resource, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.views[h]
	return r, ok
}

// Views returns every descriptor currently referring to a live resource.
func (d *Device) Views() map[gpu.DescriptorHandle]*Resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[gpu.DescriptorHandle]*Resource, len(d.views))
	for h, r := range d.views {
		if !r.isDestroyed() {
			out[h] = r
		}
	}
	return out
}

// CreateDepthStencil creates a D32 depth buffer in the depth-write state.
func (d *Device) CreateDepthStencil(width, height uint32) (gpu.Resource, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("sim: depth buffer %dx%d: %w", width, height, gpu.ErrInvalidSize)
	}
	r := newResource(d.backend, "depth", gpu.ResourceDesc{
		Width:        width,
		Height:       height,
		Format:       gputypes.TextureFormatUndefined,
		DepthStencil: true,
	}, gpu.ResourceStateDepthWrite)
	r.name = "depthStencil"
	return r, nil
}

// CreateFence creates a fence with the given initial value.
func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	d.backend.track("fence")
	return &Fence{backend: d.backend, completed: initial}, nil
}

// InfoQueue returns the debug message queue when the debug layer is on.
func (d *Device) InfoQueue() (gpu.InfoQueue, error) {
	if d.info == nil {
		return nil, fmt.Errorf("sim: info queue: %w", gpu.ErrNotSupported)
	}
	return d.info, nil
}

// DescriptorHeap is a simulated descriptor heap.
type DescriptorHeap struct {
	object
	device   *Device
	typ      gpu.DescriptorHeapType
	count    uint32
	start    gpu.DescriptorHandle
	released bool
}

// Type returns the heap type.
func (h *DescriptorHeap) Type() gpu.DescriptorHeapType { return h.typ }

// Len returns the number of descriptors.
func (h *DescriptorHeap) Len() uint32 { return h.count }

// CPUStart returns the handle of the first descriptor.
func (h *DescriptorHeap) CPUStart() gpu.DescriptorHandle { return h.start }

// Release releases the heap and drops its views.
func (h *DescriptorHeap) Release() {
	d := h.device
	d.mu.Lock()
	if h.released {
		d.mu.Unlock()
		return
	}
	h.released = true
	inc := gpu.DescriptorHandle(increments[h.typ])
	for i := uint32(0); i < h.count; i++ {
		delete(d.views, h.start+gpu.DescriptorHandle(i)*inc)
	}
	d.mu.Unlock()
	d.backend.untrack("heap")
}

// Resource is a simulated texture. Back buffers are reference counted;
// other resources hold a single reference.
type Resource struct {
	object
	backend *Backend
	desc    gpu.ResourceDesc
	kind    string

	mu        sync.Mutex
	state     gpu.ResourceState
	refs      int
	destroyed bool
}

var _ gpu.Resource = (*Resource)(nil)

func newResource(b *Backend, kind string, desc gpu.ResourceDesc, state gpu.ResourceState) *Resource {
	b.track(kind)
	return &Resource{backend: b, desc: desc, kind: kind, state: state, refs: 1}
}

// Desc returns the resource description.
func (r *Resource) Desc() gpu.ResourceDesc { return r.desc }

// State returns the tracked resource state.
func (r *Resource) State() gpu.ResourceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Release drops one reference.
func (r *Resource) Release() {
	r.mu.Lock()
	if r.refs == 0 {
		r.mu.Unlock()
		r.backend.violate("release of %s %q with no references", r.kind, r.name)
		return
	}
	r.refs--
	last := r.refs == 0
	if last && r.kind != "backbuffer" {
		r.destroyed = true
	}
	r.mu.Unlock()
	if last && r.kind != "backbuffer" {
		r.backend.untrack(r.kind)
	}
}

func (r *Resource) addRef() {
	r.mu.Lock()
	r.refs++
	r.mu.Unlock()
}

func (r *Resource) refCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}

func (r *Resource) destroy() {
	r.mu.Lock()
	r.destroyed = true
	r.mu.Unlock()
}

func (r *Resource) isDestroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

func (r *Resource) transition(before, after gpu.ResourceState) {
	r.mu.Lock()
	cur := r.state
	r.state = after
	r.mu.Unlock()
	if cur != before {
		r.backend.violate("barrier on %q: before state %s, tracked state %s", r.name, before, cur)
	}
}
