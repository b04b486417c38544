package sim

import (
	"fmt"
	"sync"

	"github.com/mythforge/mythforge/gpu"
)

// SwapChain is a simulated flip-discard swap chain.
type SwapChain struct {
	object
	backend *Backend
	queue   *Queue
	window  gpu.WindowHandle

	mu       sync.Mutex
	desc     gpu.SwapChainDesc
	buffers  []*Resource
	index    uint32
	presents uint64
	once     sync.Once
}

var _ gpu.SwapChain = (*SwapChain)(nil)

func (s *SwapChain) allocBuffers() {
	s.buffers = make([]*Resource, s.desc.BufferCount)
	for i := range s.buffers {
		r := newResource(s.backend, "backbuffer", gpu.ResourceDesc{
			Width:  s.desc.Width,
			Height: s.desc.Height,
			Format: s.desc.Format,
		}, gpu.ResourceStatePresent)
		r.refs = 0
		r.name = fmt.Sprintf("backBuffer[%d]", i)
		s.buffers[i] = r
	}
	s.index = 0
}

func (s *SwapChain) freeBuffers() {
	for _, r := range s.buffers {
		r.destroy()
		s.backend.untrack("backbuffer")
	}
	s.buffers = nil
}

// Desc returns the current description.
func (s *SwapChain) Desc() gpu.SwapChainDesc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

// CurrentBackBufferIndex returns the buffer that will be rendered next.
func (s *SwapChain) CurrentBackBufferIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Presents returns the number of successful presents.
func (s *SwapChain) Presents() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// Buffer returns a new reference to back buffer i.
func (s *SwapChain) Buffer(i uint32) (gpu.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(i) >= len(s.buffers) {
		return nil, fmt.Errorf("sim: buffer %d of %d: %w", i, len(s.buffers), ErrInvalidCall)
	}
	r := s.buffers[i]
	r.addRef()
	return r, nil
}

// Present flips the current buffer and advances the index.
func (s *SwapChain) Present(syncInterval uint32) error {
	if syncInterval > 4 {
		return fmt.Errorf("sim: sync interval %d: %w", syncInterval, ErrInvalidCall)
	}
	if err := s.backend.takeFault(&s.backend.presentErr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.buffers[s.index]
	if st := cur.State(); st != gpu.ResourceStatePresent {
		s.backend.violate("present of %q in state %s", cur.name, st)
	}
	s.index = (s.index + 1) % uint32(len(s.buffers))
	s.presents++
	return nil
}

// ResizeBuffers recreates the buffers. It fails while references returned
// by Buffer are outstanding, like DXGI does.
func (s *SwapChain) ResizeBuffers(count, width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.buffers {
		if n := r.refCount(); n > 0 {
			s.backend.violate("resize with %d outstanding references to %q", n, r.name)
			return fmt.Errorf("sim: resize buffers: %q still referenced: %w", r.name, ErrInvalidCall)
		}
	}

	if count == 0 {
		count = s.desc.BufferCount
	}
	if width == 0 || height == 0 {
		w, h, err := s.backend.WindowSize(s.window)
		if err != nil {
			return err
		}
		width, height = w, h
	}

	s.freeBuffers()
	s.desc.BufferCount = count
	s.desc.Width = width
	s.desc.Height = height
	s.allocBuffers()
	return nil
}

// Release releases the swap chain and its buffers.
func (s *SwapChain) Release() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, r := range s.buffers {
			if n := r.refCount(); n > 0 {
				s.backend.violate("swap chain released with %d references to %q", n, r.name)
			}
		}
		s.freeBuffers()
		s.backend.untrack("swapchain")
	})
}
