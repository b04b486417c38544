package sim

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/backend"
	"github.com/mythforge/mythforge/gpu"
	"github.com/mythforge/mythforge/internal/event"
)

const testWindow gpu.WindowHandle = 0x42

func newTestDevice(t *testing.T, opts ...Option) (*Backend, *Device) {
	t.Helper()
	b := New(append([]Option{WithWindowSize(testWindow, 640, 480)}, opts...)...)
	adapters, err := b.EnumerateAdapters()
	if err != nil {
		t.Fatalf("EnumerateAdapters: %v", err)
	}
	dev, err := b.CreateDevice(adapters[2], gpu.FeatureLevel12_1)
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	for _, a := range adapters {
		a.Release()
	}
	return b, dev.(*Device)
}

func TestRegistered(t *testing.T) {
	b, err := backend.NewByName("sim")
	if err != nil {
		t.Fatalf("NewByName(sim): %v", err)
	}
	if b.Name() != "sim" {
		t.Errorf("Name = %q", b.Name())
	}
}

func TestCheckDeviceSupport(t *testing.T) {
	b := New(WithAdapters(AdapterSpec{
		Info:     gpu.AdapterInfo{Description: "old"},
		MaxLevel: gpu.FeatureLevel11_1,
	}))
	adapters, _ := b.EnumerateAdapters()
	if b.CheckDeviceSupport(adapters[0], gpu.FeatureLevel12_1) {
		t.Error("11_1 adapter reported support for 12_1")
	}
	if !b.CheckDeviceSupport(adapters[0], gpu.FeatureLevel11_0) {
		t.Error("11_1 adapter rejected 11_0")
	}
	if _, err := b.CreateDevice(adapters[0], gpu.FeatureLevel12_0); !errors.Is(err, gpu.ErrNotSupported) {
		t.Errorf("CreateDevice error = %v, want ErrNotSupported", err)
	}
}

func TestDebugLayerOrder(t *testing.T) {
	b, dev := newTestDevice(t)
	defer dev.Release()

	if _, err := dev.InfoQueue(); !errors.Is(err, gpu.ErrNotSupported) {
		t.Errorf("InfoQueue without debug = %v, want ErrNotSupported", err)
	}
	if err := b.EnableDebugLayer(); err == nil {
		t.Error("EnableDebugLayer after device creation succeeded")
	}
}

func TestFenceSignalThroughQueue(t *testing.T) {
	b, dev := newTestDevice(t, WithLatency(time.Millisecond))
	q, _ := dev.CreateCommandQueue(gpu.QueueDesc{Type: gpu.CommandListDirect})
	defer q.Release()
	f, _ := dev.CreateFence(0)
	defer f.Release()

	ev := event.New()
	if err := q.Signal(f, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if err := f.SetEventOnCompletion(1, ev); err != nil {
		t.Fatalf("SetEventOnCompletion: %v", err)
	}
	if err := ev.Wait(time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := f.CompletedValue(); got != 1 {
		t.Errorf("CompletedValue = %d, want 1", got)
	}

	// Already reached: the event is set immediately.
	if err := f.SetEventOnCompletion(1, ev); err != nil {
		t.Fatal(err)
	}
	if !ev.IsSet() {
		t.Error("event not set for a reached value")
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestAllocatorInUse(t *testing.T) {
	b, dev := newTestDevice(t, WithLatency(50*time.Millisecond))
	q, _ := dev.CreateCommandQueue(gpu.QueueDesc{Type: gpu.CommandListDirect})
	defer q.Release()
	alloc, _ := dev.CreateCommandAllocator(gpu.CommandListDirect)
	defer alloc.Release()
	list, _ := dev.CreateCommandList(gpu.CommandListDirect, alloc)
	defer list.Release()

	if err := list.Close(); err != nil {
		t.Fatal(err)
	}
	q.ExecuteCommandLists(list)

	if err := alloc.Reset(); !errors.Is(err, ErrAllocatorInUse) {
		t.Fatalf("Reset while in flight = %v, want ErrAllocatorInUse", err)
	}
	if len(b.Violations()) != 1 {
		t.Errorf("violations = %v, want one", b.Violations())
	}

	f, _ := dev.CreateFence(0)
	defer f.Release()
	ev := event.New()
	_ = q.Signal(f, 1)
	_ = f.SetEventOnCompletion(1, ev)
	if err := ev.Wait(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := alloc.Reset(); err != nil {
		t.Errorf("Reset after completion: %v", err)
	}
}

func TestCommandListStates(t *testing.T) {
	b, dev := newTestDevice(t)
	alloc, _ := dev.CreateCommandAllocator(gpu.CommandListDirect)
	list, _ := dev.CreateCommandList(gpu.CommandListDirect, alloc)
	q, _ := dev.CreateCommandQueue(gpu.QueueDesc{Type: gpu.CommandListDirect})
	defer q.Release()

	if err := list.Reset(alloc); err == nil {
		t.Error("Reset of open list succeeded")
	}
	q.ExecuteCommandLists(list)
	if v := b.Violations(); len(v) != 1 || !strings.Contains(v[0], "open command list") {
		t.Errorf("violations = %v", v)
	}
	if err := list.Close(); err != nil {
		t.Fatal(err)
	}
	if err := list.Close(); err == nil {
		t.Error("Close of closed list succeeded")
	}
}

func TestSwapChainFrame(t *testing.T) {
	b, dev := newTestDevice(t)
	q, _ := dev.CreateCommandQueue(gpu.QueueDesc{Type: gpu.CommandListDirect})
	defer q.Release()

	sc, err := b.CreateSwapChain(testWindow, q, gpu.SwapChainDesc{
		Format:      gputypes.TextureFormatRGBA8Unorm,
		BufferCount: 2,
		SampleCount: 1,
	})
	if err != nil {
		t.Fatalf("CreateSwapChain: %v", err)
	}
	if d := sc.Desc(); d.Width != 640 || d.Height != 480 {
		t.Errorf("size = %dx%d, want window size 640x480", d.Width, d.Height)
	}

	heap, _ := dev.CreateDescriptorHeap(gpu.DescriptorHeapRTV, 2)
	buf, _ := sc.Buffer(0)
	dev.CreateRenderTargetView(buf, heap.CPUStart())

	alloc, _ := dev.CreateCommandAllocator(gpu.CommandListDirect)
	list, _ := dev.CreateCommandList(gpu.CommandListDirect, alloc)

	// Clearing a buffer still in the present state is a violation.
	list.ClearRenderTargetView(heap.CPUStart(), gputypes.Color{R: 1})
	list.ResourceBarrier(gpu.Transition(buf, gpu.ResourceStatePresent, gpu.ResourceStateRenderTarget))
	list.ClearRenderTargetView(heap.CPUStart(), gputypes.Color{R: 1})
	_ = list.Close()

	// Presenting a buffer in the render-target state is a violation.
	if err := sc.Present(1); err != nil {
		t.Fatal(err)
	}
	if got := sc.CurrentBackBufferIndex(); got != 1 {
		t.Errorf("index after Present = %d, want 1", got)
	}
	if v := b.Violations(); len(v) != 2 {
		t.Errorf("violations = %v, want 2", v)
	}

	// Resize fails while buf is referenced.
	if err := sc.ResizeBuffers(2, 800, 600); !errors.Is(err, ErrInvalidCall) {
		t.Errorf("ResizeBuffers with reference = %v, want ErrInvalidCall", err)
	}
	buf.Release()
	if err := sc.ResizeBuffers(2, 800, 600); err != nil {
		t.Fatalf("ResizeBuffers: %v", err)
	}
	if sc.CurrentBackBufferIndex() != 0 {
		t.Error("resize did not reset the index")
	}

	// The old view is stale now.
	if got := len(dev.Views()); got != 0 {
		t.Errorf("live views after resize = %d, want 0", got)
	}
	_ = list.Reset(alloc)
	list.ClearRenderTargetView(heap.CPUStart(), gputypes.Color{})
	if v := b.Violations(); !strings.Contains(v[len(v)-1], "stale view") {
		t.Errorf("last violation = %q, want stale view", v[len(v)-1])
	}
}

func TestInjectedFaults(t *testing.T) {
	b, dev := newTestDevice(t)
	q, _ := dev.CreateCommandQueue(gpu.QueueDesc{Type: gpu.CommandListDirect})
	defer q.Release()
	f, _ := dev.CreateFence(0)

	b.FailNextSignal(gpu.ErrDeviceLost)
	if err := q.Signal(f, 1); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Signal = %v, want ErrDeviceLost", err)
	}
	if err := q.Signal(f, 1); err != nil {
		t.Errorf("second Signal = %v, want nil", err)
	}
}

func TestLiveObjects(t *testing.T) {
	b, dev := newTestDevice(t)
	q, _ := dev.CreateCommandQueue(gpu.QueueDesc{Type: gpu.CommandListDirect})
	depth, _ := dev.CreateDepthStencil(64, 64)
	heap, _ := dev.CreateDescriptorHeap(gpu.DescriptorHeapDSV, 1)
	dev.CreateDepthStencilView(depth, heap.CPUStart())

	live := b.LiveObjects()
	for _, kind := range []string{"device", "queue", "depth", "heap"} {
		if live[kind] != 1 {
			t.Errorf("live[%s] = %d, want 1", kind, live[kind])
		}
	}

	heap.Release()
	depth.Release()
	q.Release()
	dev.Release()
	if live := b.LiveObjects(); len(live) != 0 {
		t.Errorf("leaked objects: %v", live)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}
