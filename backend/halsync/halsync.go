// Package halsync drives a gogpu/wgpu HAL fence with the frame fence engine.
//
// wgpu's HAL exposes timeline fences through Queue.Submit and Device.Wait
// rather than through completion events. Fence adapts that model to
// gpu.Fence: CompletedValue polls with a zero timeout, and
// SetEventOnCompletion parks a goroutine in Device.Wait that sets the event
// once the value is reached. Queue adapts hal.Queue to fence.Signaler.
//
// Use New for a device and queue you own, or NewFromProvider for a device
// shared through a provider exposing HalDevice() and HalQueue().
package halsync

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/mythforge/mythforge/fence"
	"github.com/mythforge/mythforge/gpu"
	"github.com/mythforge/mythforge/internal/event"
)

// waitSlice bounds each Device.Wait call made by a completion goroutine so
// Release is never held up by a wait that will not finish.
const waitSlice = 100 * time.Millisecond

// ErrReleased is returned when a fence is used after Release.
var ErrReleased = errors.New("halsync: fence released")

// Device is the part of hal.Device used for fences.
type Device interface {
	CreateFence() (hal.Fence, error)
	DestroyFence(f hal.Fence)
	Wait(f hal.Fence, value uint64, timeout time.Duration) (bool, error)
}

// Submitter is the part of hal.Queue used for signals.
type Submitter interface {
	Submit(cmds []hal.CommandBuffer, f hal.Fence, value uint64) error
}

// Fence is a gpu.Fence backed by a HAL timeline fence.
type Fence struct {
	device Device
	raw    hal.Fence
	log    *slog.Logger

	// signaled is the highest value submitted; completed the highest value
	// observed as reached.
	signaled  atomic.Uint64
	completed atomic.Uint64

	mu      sync.Mutex
	err     error
	closed  chan struct{}
	waiters sync.WaitGroup
	once    sync.Once
}

var _ gpu.Fence = (*Fence)(nil)

// NewFence creates a HAL fence on device.
func NewFence(device Device, log *slog.Logger) (*Fence, error) {
	raw, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halsync: create fence: %w", err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Fence{
		device: device,
		raw:    raw,
		log:    log,
		closed: make(chan struct{}),
	}, nil
}

// CompletedValue returns the highest value the GPU is known to have
// reached. It polls the fence for the last submitted value.
func (f *Fence) CompletedValue() uint64 {
	done := f.completed.Load()
	target := f.signaled.Load()
	if target <= done {
		return done
	}
	ok, err := f.device.Wait(f.raw, target, 0)
	if err != nil {
		f.setErr(err)
		return done
	}
	if ok {
		f.advance(target)
		return target
	}
	return done
}

// SetEventOnCompletion signals e once the fence reaches value.
func (f *Fence) SetEventOnCompletion(value uint64, e gpu.Event) error {
	s, ok := e.(interface{ Signal() })
	if !ok {
		return fmt.Errorf("halsync: event %T cannot be signaled: %w", e, gpu.ErrNotSupported)
	}
	if err := f.Err(); err != nil {
		return err
	}
	select {
	case <-f.closed:
		return ErrReleased
	default:
	}
	if f.CompletedValue() >= value {
		s.Signal()
		return nil
	}

	f.waiters.Add(1)
	go func() {
		defer f.waiters.Done()
		for {
			ok, err := f.device.Wait(f.raw, value, waitSlice)
			if err != nil {
				f.setErr(err)
				// Wake the waiter; it re-checks the value and reports failure.
				s.Signal()
				return
			}
			if ok {
				f.advance(value)
				s.Signal()
				return
			}
			select {
			case <-f.closed:
				return
			default:
			}
		}
	}()
	return nil
}

// Err returns the first error reported by the HAL device, if any.
func (f *Fence) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Fence) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = fmt.Errorf("halsync: wait: %w", err)
		f.log.Warn("halsync: fence wait failed", "err", err)
	}
}

func (f *Fence) advance(v uint64) {
	for {
		cur := f.completed.Load()
		if v <= cur || f.completed.CompareAndSwap(cur, v) {
			return
		}
	}
}

func (f *Fence) submitted(v uint64) {
	for {
		cur := f.signaled.Load()
		if v <= cur || f.signaled.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Release stops pending completion goroutines and destroys the HAL fence.
func (f *Fence) Release() {
	f.once.Do(func() {
		close(f.closed)
		f.waiters.Wait()
		f.device.DestroyFence(f.raw)
	})
}

// Queue adapts a HAL queue to fence.Signaler.
type Queue struct {
	raw Submitter
}

var _ fence.Signaler = (*Queue)(nil)

// NewQueue wraps q.
func NewQueue(q Submitter) *Queue { return &Queue{raw: q} }

// Signal submits an empty batch that sets f to value when the queue
// reaches it. f must be a *Fence.
func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	hf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("halsync: fence is %T: %w", f, gpu.ErrNotSupported)
	}
	if err := q.raw.Submit(nil, hf.raw, value); err != nil {
		return fmt.Errorf("halsync: submit signal %d: %w", value, err)
	}
	hf.submitted(value)
	return nil
}

// Sync bundles a HAL fence, its event and the engine driving them.
type Sync struct {
	*fence.Engine

	fence *Fence
	event *event.Auto
}

// New creates a fence on device and an engine signaling it through queue.
func New(device Device, queue Submitter, opts ...fence.Option) (*Sync, error) {
	f, err := NewFence(device, nil)
	if err != nil {
		return nil, &gpu.SynchronizationError{Op: "create fence", Err: err}
	}
	ev := event.New()
	return &Sync{
		Engine: fence.New(NewQueue(queue), f, ev, opts...),
		fence:  f,
		event:  ev,
	}, nil
}

// NewFromProvider is like New for a device shared by a provider
// implementing HalDevice() any and HalQueue() any.
func NewFromProvider(provider any, opts ...fence.Option) (*Sync, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("halsync: provider %T does not expose HAL types", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("halsync: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("halsync: provider HalQueue is not hal.Queue")
	}
	return New(device, queue, opts...)
}

// Fence returns the underlying fence.
func (s *Sync) Fence() *Fence { return s.fence }

// Release closes the event and destroys the fence. Flush first if
// submitted work may still reference the fence.
func (s *Sync) Release() {
	_ = s.event.Close()
	s.fence.Release()
}
