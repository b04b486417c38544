// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/backend/sim"
	"github.com/mythforge/mythforge/gpu"
)

const testWindow gpu.WindowHandle = 0x1

type fixture struct {
	backend *sim.Backend
	device  *sim.Device
	queue   gpu.Queue
}

func newFixture(t *testing.T, width, height uint32) *fixture {
	t.Helper()
	b := sim.New(sim.WithWindowSize(testWindow, width, height))
	adapters, _ := b.EnumerateAdapters()
	dev, err := b.CreateDevice(adapters[len(adapters)-1], gpu.FeatureLevel12_1)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range adapters {
		a.Release()
	}
	q, err := dev.CreateCommandQueue(gpu.QueueDesc{Type: gpu.CommandListDirect})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		q.Release()
		dev.Release()
	})
	return &fixture{backend: b, device: dev.(*sim.Device), queue: q}
}

func TestNewUsesWindowSize(t *testing.T) {
	f := newFixture(t, 1280, 720)
	s, err := New(f.backend, f.device, f.queue, testWindow, Desc{BufferCount: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Release()

	if w, h := s.Size(); w != 1280 || h != 720 {
		t.Errorf("size = %dx%d, want 1280x720", w, h)
	}
	if s.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("format = %v, want RGBA8Unorm", s.Format())
	}
	if s.ViewCount() != 3 || s.BufferCount() != 3 {
		t.Errorf("views %d buffers %d, want 3", s.ViewCount(), s.BufferCount())
	}
	if s.CurrentBackBufferIndex() != 0 {
		t.Errorf("initial index = %d", s.CurrentBackBufferIndex())
	}
	if vp := s.Viewport(); vp.Width != 1280 || vp.Height != 720 || vp.MaxDepth != 1 {
		t.Errorf("viewport = %+v", vp)
	}
	if sc := s.ScissorRect(); sc.Right != 1280 || sc.Bottom != 720 {
		t.Errorf("scissor = %+v", sc)
	}
}

func TestNewFallsBackToConfiguredSize(t *testing.T) {
	f := newFixture(t, 0, 0)
	s, err := New(f.backend, f.device, f.queue, testWindow, Desc{BufferCount: 2, Width: 320, Height: 240})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Release()
	if w, h := s.Size(); w != 320 || h != 240 {
		t.Errorf("size = %dx%d, want 320x240", w, h)
	}
}

func TestNewRejectsBadDesc(t *testing.T) {
	f := newFixture(t, 64, 64)
	tests := []struct {
		name string
		desc Desc
		want error
	}{
		{"one buffer", Desc{BufferCount: 1}, gpu.ErrInvalidSize},
		{"too many buffers", Desc{BufferCount: 17}, gpu.ErrInvalidSize},
		{"depth format", Desc{BufferCount: 2, Format: gputypes.TextureFormatDepth24PlusStencil8}, gpu.ErrNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(f.backend, f.device, f.queue, testWindow, tt.desc)
			var scErr *gpu.SwapChainError
			if !errors.As(err, &scErr) || !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want SwapChainError wrapping %v", err, tt.want)
			}
		})
	}
}

func TestRenderTargetViewsInBufferOrder(t *testing.T) {
	f := newFixture(t, 64, 64)
	s, err := New(f.backend, f.device, f.queue, testWindow, Desc{BufferCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release()

	inc := f.device.DescriptorIncrement(gpu.DescriptorHeapRTV)
	for i := uint32(0); i < 3; i++ {
		h := s.RenderTargetView(i)
		if h != s.RenderTargetView(0).Offset(int(i), inc) {
			t.Errorf("view %d at %#x, not one increment apart", i, uintptr(h))
		}
		r, ok := f.device.View(h)
		if !ok {
			t.Fatalf("no view at slot %d", i)
		}
		if gpu.Resource(r) != s.BackBuffer(i) {
			t.Errorf("slot %d refers to %q, want back buffer %d", i, r.Name(), i)
		}
	}
	if _, ok := f.device.View(s.DepthStencilView()); !ok {
		t.Error("no depth view")
	}
}

func TestResizeTwice(t *testing.T) {
	f := newFixture(t, 640, 480)
	s, err := New(f.backend, f.device, f.queue, testWindow, Desc{BufferCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release()

	if err := s.Resize(800, 600); err != nil {
		t.Fatalf("Resize(800, 600): %v", err)
	}
	if err := s.Resize(1920, 1080); err != nil {
		t.Fatalf("Resize(1920, 1080): %v", err)
	}

	if w, h := s.Size(); w != 1920 || h != 1080 {
		t.Errorf("size = %dx%d", w, h)
	}
	if s.BufferCount() != 2 || s.ViewCount() != 2 {
		t.Errorf("buffers %d views %d, want 2", s.BufferCount(), s.ViewCount())
	}
	for h, r := range f.device.Views() {
		if d := r.Desc(); d.Width != 1920 || d.Height != 1080 {
			t.Errorf("view %#x refers to a %dx%d resource", uintptr(h), d.Width, d.Height)
		}
	}
	if n := len(f.device.Views()); n != 3 {
		t.Errorf("live views = %d, want 2 RTVs + 1 DSV", n)
	}
	if v := f.backend.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
	m := s.Projection()
	if aspect := float32(1920) / 1080; math.Abs(float64(m[0]*aspect-m[5])) > 1e-4 {
		t.Errorf("projection not updated for aspect %v: %v", aspect, m)
	}
}

func TestResizeZeroRejected(t *testing.T) {
	f := newFixture(t, 64, 64)
	s, err := New(f.backend, f.device, f.queue, testWindow, Desc{BufferCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release()

	for _, sz := range [][2]uint32{{0, 600}, {800, 0}} {
		err := s.Resize(sz[0], sz[1])
		if !errors.Is(err, gpu.ErrInvalidSize) {
			t.Errorf("Resize(%d, %d) = %v, want ErrInvalidSize", sz[0], sz[1], err)
		}
	}
	if s.ViewCount() != 2 {
		t.Error("rejected resize dropped the views")
	}
}

func TestPresentWrapsError(t *testing.T) {
	f := newFixture(t, 64, 64)
	s, err := New(f.backend, f.device, f.queue, testWindow, Desc{BufferCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release()

	f.backend.FailNextPresent(gpu.ErrDeviceLost)
	err = s.Present(1)
	var pe *gpu.PresentationError
	if !errors.As(err, &pe) || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Present = %v, want PresentationError wrapping ErrDeviceLost", err)
	}
}

func TestReleaseLeavesNothing(t *testing.T) {
	f := newFixture(t, 64, 64)
	s, err := New(f.backend, f.device, f.queue, testWindow, Desc{BufferCount: 2, Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Resize(128, 128)
	s.Release()

	live := f.backend.LiveObjects()
	for _, kind := range []string{"swapchain", "backbuffer", "depth", "heap"} {
		if live[kind] != 0 {
			t.Errorf("%d %s objects leaked", live[kind], kind)
		}
	}
	if v := f.backend.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestPerspective(t *testing.T) {
	p := DefaultProjection()
	m := p.Matrix(16.0 / 9.0)

	// Row vector (0, 0, -z, 1) times m gives clip z = -z*m[10] + m[14] and
	// clip w = z.
	depth := func(z float32) float32 { return (-z*m[10] + m[14]) / z }
	if d := depth(p.Near); math.Abs(float64(d)) > 1e-5 {
		t.Errorf("depth at near plane = %v, want 0", d)
	}
	if d := depth(p.Far); math.Abs(float64(d-1)) > 1e-5 {
		t.Errorf("depth at far plane = %v, want 1", d)
	}
	if m[11] != -1 {
		t.Errorf("m[11] = %v, want -1 (right handed)", m[11])
	}
	wantH := float32(1 / math.Tan(math.Pi/8))
	if math.Abs(float64(m[5]-wantH)) > 1e-4 {
		t.Errorf("y scale = %v, want %v", m[5], wantH)
	}
	if math.Abs(float64(m[0]-wantH*9/16)) > 1e-4 {
		t.Errorf("x scale = %v, want %v", m[0], wantH*9/16)
	}
}
