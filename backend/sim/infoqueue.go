package sim

import (
	"sync"

	"github.com/mythforge/mythforge/gpu"
)

// InfoQueue records the debug configuration applied to a device.
type InfoQueue struct {
	mu      sync.Mutex
	filters []gpu.MessageFilter
	breakOn map[gpu.MessageSeverity]bool
}

var _ gpu.InfoQueue = (*InfoQueue)(nil)

// PushStorageFilter records f.
func (q *InfoQueue) PushStorageFilter(f gpu.MessageFilter) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.filters = append(q.filters, f)
	return nil
}

// SetBreakOnSeverity records the break setting for s.
func (q *InfoQueue) SetBreakOnSeverity(s gpu.MessageSeverity, enable bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.breakOn[s] = enable
	return nil
}

// Filters returns the pushed storage filters.
func (q *InfoQueue) Filters() []gpu.MessageFilter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]gpu.MessageFilter(nil), q.filters...)
}

// BreakOn reports whether the debugger breaks on s.
func (q *InfoQueue) BreakOn(s gpu.MessageSeverity) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.breakOn[s]
}

// Release is a no-op; the queue lives as long as its device.
func (q *InfoQueue) Release() {}
