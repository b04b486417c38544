package sim

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mythforge/mythforge/gpu"
)

// Queue is a simulated direct queue. Its GPU is a goroutine draining a FIFO
// of work items.
type Queue struct {
	object
	backend *Backend
	desc    gpu.QueueDesc
	latency time.Duration

	work     chan func()
	done     chan struct{}
	once     sync.Once
	executed atomic.Uint64
}

var _ gpu.Queue = (*Queue)(nil)

func newQueue(b *Backend, desc gpu.QueueDesc) *Queue {
	q := &Queue{
		backend: b,
		desc:    desc,
		latency: b.latency,
		work:    make(chan func(), 256),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for fn := range q.work {
		fn()
	}
}

// Desc returns the queue description.
func (q *Queue) Desc() gpu.QueueDesc { return q.desc }

// Executed returns how many command lists the GPU has finished.
func (q *Queue) Executed() uint64 { return q.executed.Load() }

// ExecuteCommandLists queues closed lists for execution.
func (q *Queue) ExecuteCommandLists(lists ...gpu.CommandList) {
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			q.backend.violate("execute of foreign command list %T", l)
			continue
		}
		if cl.isOpen() {
			q.backend.violate("execute of open command list %q", cl.name)
			continue
		}
		alloc := cl.currentAllocator()
		alloc.pending.Add(1)
		q.work <- func() {
			if q.latency > 0 {
				time.Sleep(q.latency)
			}
			alloc.pending.Add(-1)
			q.executed.Add(1)
		}
	}
}

// Signal queues a fence update behind all previously queued work.
func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	if err := q.backend.takeFault(&q.backend.signalErr); err != nil {
		return err
	}
	sf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("sim: signal of foreign fence %T: %w", f, ErrInvalidCall)
	}
	q.work <- func() { sf.complete(value) }
	return nil
}

// Release drains outstanding work and stops the simulated GPU.
func (q *Queue) Release() {
	q.once.Do(func() {
		close(q.work)
		<-q.done
		q.backend.untrack("queue")
	})
}

// Fence is a simulated fence.
type Fence struct {
	object
	backend *Backend

	mu        sync.Mutex
	completed uint64
	waiters   []waiter
	once      sync.Once
}

type waiter struct {
	value uint64
	event signaler
}

// signaler is implemented by events the simulated GPU can set.
type signaler interface {
	Signal()
}

var _ gpu.Fence = (*Fence)(nil)

// CompletedValue returns the last value the simulated GPU reached.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// SetEventOnCompletion arranges for e to be set when the fence reaches value.
func (f *Fence) SetEventOnCompletion(value uint64, e gpu.Event) error {
	s, ok := e.(signaler)
	if !ok {
		return fmt.Errorf("sim: event %T cannot be signaled: %w", e, ErrInvalidCall)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed >= value {
		s.Signal()
		return nil
	}
	f.waiters = append(f.waiters, waiter{value: value, event: s})
	return nil
}

func (f *Fence) complete(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value < f.completed {
		f.backend.violate("fence %q moved backwards: %d -> %d", f.name, f.completed, value)
		return
	}
	f.completed = value
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= value {
			w.event.Signal()
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

// Release releases the fence.
func (f *Fence) Release() {
	f.once.Do(func() { f.backend.untrack("fence") })
}

// CommandAllocator is a simulated allocator. It counts the lists recorded
// into it that the GPU has not finished yet.
type CommandAllocator struct {
	object
	backend *Backend
	pending atomic.Int64
	resets  atomic.Uint64
	once    sync.Once
}

var _ gpu.CommandAllocator = (*CommandAllocator)(nil)

// Reset reclaims the allocator. It fails with ErrAllocatorInUse while
// submitted lists are still executing.
func (a *CommandAllocator) Reset() error {
	if n := a.pending.Load(); n > 0 {
		a.backend.violate("reset of allocator %q with %d lists in flight", a.name, n)
		return fmt.Errorf("sim: allocator %q: %w", a.name, ErrAllocatorInUse)
	}
	a.resets.Add(1)
	return nil
}

// Resets returns how many times the allocator was reset successfully.
func (a *CommandAllocator) Resets() uint64 { return a.resets.Load() }

// Release releases the allocator.
func (a *CommandAllocator) Release() {
	a.once.Do(func() {
		if n := a.pending.Load(); n > 0 {
			a.backend.violate("release of allocator %q with %d lists in flight", a.name, n)
		}
		a.backend.untrack("allocator")
	})
}
