package mythforge

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/backend/sim"
	"github.com/mythforge/mythforge/gpu"
)

const testWindow gpu.WindowHandle = 0xbeef

func newTestRenderer(t *testing.T, simOpts []sim.Option, opts ...Option) (*Renderer, *sim.Backend) {
	t.Helper()
	b := sim.New(append([]sim.Option{sim.WithWindowSize(testWindow, 640, 480)}, simOpts...)...)
	r := New(b, opts...)
	if err := r.Initialize(testWindow); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, b
}

func assertNoViolations(t *testing.T, b *sim.Backend) {
	t.Helper()
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("GPU usage violations:\n%v", v)
	}
}

func TestThreeFramesDoubleBuffered(t *testing.T) {
	r, b := newTestRenderer(t, nil, WithFrameCount(2))

	start := r.CurrentBackBufferIndex()
	if start > 1 {
		t.Fatalf("initial index = %d, want 0 or 1", start)
	}
	before := r.SignaledValue()

	var indices []uint32
	for i := 0; i < 3; i++ {
		indices = append(indices, r.CurrentBackBufferIndex())
		if err := r.RenderFrame(); err != nil {
			t.Fatalf("RenderFrame %d: %v", i, err)
		}
	}

	if got := r.SignaledValue() - before; got != 3 {
		t.Errorf("signaled value grew by %d, want 3", got)
	}
	if !slices.Equal(indices, []uint32{0, 1, 0}) {
		t.Errorf("indices = %v, want [0 1 0]", indices)
	}
	if r.State() != StateIdle {
		t.Errorf("state = %s, want idle", r.State())
	}
	assertNoViolations(t, b)
}

func TestBackBufferCycling(t *testing.T) {
	for _, n := range []int{2, 3, 4} {
		r, b := newTestRenderer(t, nil, WithFrameCount(n))
		for i := 0; i < 3*n; i++ {
			if got, want := r.CurrentBackBufferIndex(), uint32(i%n); got != want {
				t.Fatalf("N=%d frame %d: index %d, want %d", n, i, got, want)
			}
			if err := r.RenderFrame(); err != nil {
				t.Fatalf("N=%d RenderFrame: %v", n, err)
			}
		}
		assertNoViolations(t, b)
	}
}

func TestFlushDrainsAllWork(t *testing.T) {
	for _, n := range []int{2, 3, 4} {
		r, b := newTestRenderer(t,
			[]sim.Option{sim.WithLatency(2 * time.Millisecond)},
			WithFrameCount(n), WithSyncMode(SyncDeferred))

		for i := 0; i < 2*n; i++ {
			if err := r.RenderFrame(); err != nil {
				t.Fatalf("N=%d RenderFrame: %v", n, err)
			}
		}
		if err := r.Flush(); err != nil {
			t.Fatalf("N=%d Flush: %v", n, err)
		}
		if r.CompletedValue() != r.SignaledValue() {
			t.Errorf("N=%d: completed %d != signaled %d after Flush", n, r.CompletedValue(), r.SignaledValue())
		}
		assertNoViolations(t, b)
	}
}

func TestDeferredNeverResetsInFlightAllocator(t *testing.T) {
	r, b := newTestRenderer(t,
		[]sim.Option{sim.WithLatency(time.Millisecond)},
		WithFrameCount(3), WithSyncMode(SyncDeferred))

	for i := 0; i < 30; i++ {
		slot := r.CurrentBackBufferIndex()
		prev := r.SlotFenceValue(int(slot))
		if err := r.RenderFrame(); err != nil {
			t.Fatalf("RenderFrame %d: %v", i, err)
		}
		// The slot was only reused after its previous value completed.
		if r.CompletedValue() < prev {
			t.Fatalf("frame %d reused slot %d before fence %d completed", i, slot, prev)
		}
	}
	st := r.SyncStats()
	if st.Signals != 30 {
		t.Errorf("signals = %d, want 30", st.Signals)
	}
	assertNoViolations(t, b)
}

func TestImmediateModeWaitsEveryFrame(t *testing.T) {
	r, b := newTestRenderer(t,
		[]sim.Option{sim.WithLatency(time.Millisecond)},
		WithFrameCount(2))

	for i := 0; i < 5; i++ {
		if err := r.RenderFrame(); err != nil {
			t.Fatal(err)
		}
		if r.CompletedValue() != r.SignaledValue() {
			t.Fatalf("frame %d returned before the GPU finished", i)
		}
	}
	assertNoViolations(t, b)
}

func TestResizeTwiceWithoutFrames(t *testing.T) {
	r, b := newTestRenderer(t, nil, WithFrameCount(2))

	if err := r.Resize(800, 600); err != nil {
		t.Fatalf("Resize(800, 600): %v", err)
	}
	if err := r.Resize(1920, 1080); err != nil {
		t.Fatalf("Resize(1920, 1080): %v", err)
	}

	s := r.Surface()
	if w, h := s.Size(); w != 1920 || h != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", w, h)
	}
	if vp := s.Viewport(); vp.Width != 1920 || vp.Height != 1080 {
		t.Errorf("viewport = %+v", vp)
	}
	dev := r.Device().(*sim.Device)
	for h, res := range dev.Views() {
		if d := res.Desc(); d.Width != 1920 || d.Height != 1080 {
			t.Errorf("view %#x still refers to a %dx%d buffer", uintptr(h), d.Width, d.Height)
		}
	}
	assertNoViolations(t, b)
}

func TestResizeAfterFrames(t *testing.T) {
	r, b := newTestRenderer(t,
		[]sim.Option{sim.WithLatency(time.Millisecond)},
		WithFrameCount(3), WithSyncMode(SyncDeferred))

	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			if err := r.RenderFrame(); err != nil {
				t.Fatal(err)
			}
		}
		if err := r.Resize(uint32(400+round*100), 300); err != nil {
			t.Fatalf("Resize: %v", err)
		}
		if s := r.Surface(); s.BufferCount() != 3 || s.ViewCount() != 3 {
			t.Errorf("after resize: %d buffers, %d views, want 3", s.BufferCount(), s.ViewCount())
		}
	}
	if err := r.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame after resize: %v", err)
	}
	assertNoViolations(t, b)
}

func TestResizeZeroIsNotFatal(t *testing.T) {
	r, _ := newTestRenderer(t, nil)

	err := r.Resize(0, 0)
	var scErr *gpu.SwapChainError
	if !errors.As(err, &scErr) || !errors.Is(err, gpu.ErrInvalidSize) {
		t.Fatalf("Resize(0, 0) = %v, want SwapChainError wrapping ErrInvalidSize", err)
	}
	if err := r.RenderFrame(); err != nil {
		t.Errorf("RenderFrame after minimized resize: %v", err)
	}
}

func TestPresentFailureIsSticky(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	if err := r.RenderFrame(); err != nil {
		t.Fatal(err)
	}

	b.FailNextPresent(gpu.ErrDeviceLost)
	err := r.RenderFrame()
	var pe *gpu.PresentationError
	if !errors.As(err, &pe) || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("RenderFrame = %v, want PresentationError wrapping ErrDeviceLost", err)
	}
	if r.State() != StateSubmitted {
		t.Errorf("state = %s, want submitted", r.State())
	}

	err = r.RenderFrame()
	if !errors.Is(err, ErrRendererFailed) || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("RenderFrame after failure = %v, want ErrRendererFailed", err)
	}
	if err := r.Resize(100, 100); !errors.Is(err, ErrRendererFailed) {
		t.Errorf("Resize after failure = %v, want ErrRendererFailed", err)
	}

	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := r.Initialize(testWindow); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if err := r.RenderFrame(); err != nil {
		t.Errorf("RenderFrame after re-Initialize: %v", err)
	}
}

func TestSignalFailure(t *testing.T) {
	r, b := newTestRenderer(t, nil)

	b.FailNextSignal(gpu.ErrDeviceLost)
	err := r.RenderFrame()
	var se *gpu.SynchronizationError
	if !errors.As(err, &se) {
		t.Fatalf("RenderFrame = %v, want SynchronizationError", err)
	}
	if se.Op != "signal" || se.Value != 1 {
		t.Errorf("error = %+v, want signal of value 1", se)
	}
	if r.SignaledValue() != 0 {
		t.Errorf("signaled value advanced to %d after failed signal", r.SignaledValue())
	}
	// Shutdown must not wait on a broken fence.
	if err := r.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestWaitTimeout(t *testing.T) {
	r, _ := newTestRenderer(t,
		[]sim.Option{sim.WithLatency(200 * time.Millisecond)},
		WithWaitTimeout(10*time.Millisecond))

	err := r.RenderFrame()
	if !errors.Is(err, gpu.ErrWaitTimeout) {
		t.Fatalf("RenderFrame = %v, want ErrWaitTimeout", err)
	}
	var se *gpu.SynchronizationError
	if !errors.As(err, &se) {
		t.Errorf("error %T is not a SynchronizationError", err)
	}
}

func TestDrawFunc(t *testing.T) {
	var infos []FrameInfo
	draw := func(cmd gpu.CommandList, info FrameInfo) error {
		infos = append(infos, info)
		return nil
	}
	r, b := newTestRenderer(t, nil, WithDrawFunc(draw), WithClearColor(gputypes.Color{R: 1, A: 1}))

	for i := 0; i < 2; i++ {
		if err := r.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}
	if len(infos) != 2 {
		t.Fatalf("draw called %d times, want 2", len(infos))
	}
	if infos[1].Frame != 1 || infos[1].Slot != 1 {
		t.Errorf("second frame info = %+v", infos[1])
	}
	if infos[0].Viewport.Width != 640 || infos[0].Projection[11] != -1 {
		t.Errorf("frame info viewport/projection wrong: %+v", infos[0])
	}
	if infos[0].RenderTarget == infos[1].RenderTarget {
		t.Error("both frames used the same render target view")
	}

	// The recorded frame clears with the configured colour and depth 1.
	list := r.list.Commands().(*sim.CommandList)
	var ops []string
	for _, c := range list.LastRecorded() {
		ops = append(ops, c.Op)
		if c.Op == "clear-color" && c.Color.R != 1 {
			t.Errorf("clear colour = %+v", c.Color)
		}
		if c.Op == "clear-depth" && c.Depth != 1 {
			t.Errorf("clear depth = %v", c.Depth)
		}
	}
	want := []string{"barrier", "viewport", "scissor", "bind", "clear-color", "clear-depth", "barrier"}
	if !slices.Equal(ops, want) {
		t.Errorf("recorded %v, want %v", ops, want)
	}
	assertNoViolations(t, b)
}

func TestDrawFuncError(t *testing.T) {
	boom := errors.New("boom")
	r, _ := newTestRenderer(t, nil, WithDrawFunc(func(gpu.CommandList, FrameInfo) error { return boom }))

	if err := r.RenderFrame(); !errors.Is(err, boom) {
		t.Fatalf("RenderFrame = %v, want boom", err)
	}
	if r.list.IsOpen() {
		t.Error("list left open after draw error")
	}
	if !errors.Is(r.RenderFrame(), ErrRendererFailed) {
		t.Error("renderer not failed after draw error")
	}
}

func TestImmediate(t *testing.T) {
	r, b := newTestRenderer(t, []sim.Option{sim.WithLatency(time.Millisecond)})

	called := false
	err := r.Immediate(func(cmd gpu.CommandList) error {
		called = true
		cmd.RSSetViewports(r.Surface().Viewport())
		return nil
	})
	if err != nil {
		t.Fatalf("Immediate: %v", err)
	}
	if !called {
		t.Fatal("record func not called")
	}
	if r.CompletedValue() != r.SignaledValue() || r.SignaledValue() != 1 {
		t.Errorf("completed %d signaled %d, want both 1", r.CompletedValue(), r.SignaledValue())
	}
	if err := r.RenderFrame(); err != nil {
		t.Errorf("RenderFrame after Immediate: %v", err)
	}
	assertNoViolations(t, b)
}

func TestShutdownReleasesEverything(t *testing.T) {
	b := sim.New(sim.WithWindowSize(testWindow, 320, 200), sim.WithLatency(time.Millisecond))
	r := New(b, WithFrameCount(3), WithSyncMode(SyncDeferred), WithDebug(true))
	if err := r.Initialize(testWindow); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := r.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := r.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
	if live := b.LiveObjects(); len(live) != 0 {
		t.Errorf("leaked objects after Shutdown: %v", live)
	}
	assertNoViolations(t, b)
	if err := r.RenderFrame(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RenderFrame after Shutdown = %v, want ErrNotInitialized", err)
	}
}

func TestDebugConfiguration(t *testing.T) {
	r, _ := newTestRenderer(t, nil, WithDebug(true))

	dev := r.Device().(*sim.Device)
	if dev.Name() != "device" {
		t.Errorf("device name = %q, want device", dev.Name())
	}
	if q := r.Queue().(*sim.Queue); q.Name() != "commandQueue" {
		t.Errorf("queue name = %q", q.Name())
	}
	iq, err := dev.InfoQueue()
	if err != nil {
		t.Fatalf("InfoQueue: %v", err)
	}
	if n := len(iq.(*sim.InfoQueue).Filters()); n != 1 {
		t.Errorf("filters pushed = %d, want 1", n)
	}
}

func TestInitializeErrors(t *testing.T) {
	b := sim.New(sim.WithWindowSize(testWindow, 64, 64), sim.WithAdapters(sim.AdapterSpec{
		Info:     gpu.AdapterInfo{Description: "warp", Software: true},
		MaxLevel: gpu.FeatureLevel12_1,
	}))
	r := New(b)
	err := r.Initialize(testWindow)
	var de *gpu.DeviceCreationError
	if !errors.As(err, &de) || !errors.Is(err, gpu.ErrNoAdapter) {
		t.Fatalf("Initialize = %v, want DeviceCreationError wrapping ErrNoAdapter", err)
	}
	if live := b.LiveObjects(); len(live) != 0 {
		t.Errorf("leaked after failed Initialize: %v", live)
	}

	r = New(sim.New(), WithFrameCount(1))
	if err := r.Initialize(testWindow); err == nil {
		t.Error("Initialize accepted frame count 1")
	}

	r, _ = newTestRenderer(t, nil)
	if err := r.Initialize(testWindow); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitializeUnknownWindow(t *testing.T) {
	b := sim.New()
	r := New(b)
	err := r.Initialize(testWindow)
	var scErr *gpu.SwapChainError
	if !errors.As(err, &scErr) {
		t.Fatalf("Initialize = %v, want SwapChainError", err)
	}
	if live := b.LiveObjects(); len(live) != 0 {
		t.Errorf("leaked after failed Initialize: %v", live)
	}
}

func TestDeviceProvider(t *testing.T) {
	r, _ := newTestRenderer(t,
		[]sim.Option{sim.WithLatency(time.Millisecond)},
		WithSyncMode(SyncDeferred), WithFrameCount(3))

	p := r.DeviceProvider()
	if p.SurfaceFormat() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("SurfaceFormat = %v", p.SurfaceFormat())
	}
	if p.Queue() == nil || p.Adapter() == nil {
		t.Fatal("nil queue or adapter")
	}
	for i := 0; i < 3; i++ {
		if err := r.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}
	p.Device().Poll(true)
	if r.CompletedValue() != r.SignaledValue() {
		t.Errorf("Poll(true) did not flush: %d/%d", r.CompletedValue(), r.SignaledValue())
	}
}
