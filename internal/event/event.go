// Package event provides a portable auto-reset event for backends that do
// not have a native OS event object.
package event

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mythforge/mythforge/gpu"
)

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("event: closed")

// Auto is an auto-reset event: each Signal releases at most one Wait, and
// a Signal with no waiter is remembered until the next Wait.
type Auto struct {
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ gpu.Event = (*Auto)(nil)

// New returns an unsignaled event.
func New() *Auto {
	return &Auto{
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Signal sets the event. Signaling an already-set event is a no-op.
func (e *Auto) Signal() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the event is set and resets it. A timeout <= 0 waits
// forever.
func (e *Auto) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case <-e.ch:
			return nil
		case <-e.done:
			return ErrClosed
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.ch:
		return nil
	case <-e.done:
		return ErrClosed
	case <-timer.C:
		return fmt.Errorf("event: after %v: %w", timeout, gpu.ErrWaitTimeout)
	}
}

// IsSet reports whether the event is currently set without consuming it.
func (e *Auto) IsSet() bool {
	return len(e.ch) > 0
}

// Close wakes any waiter with ErrClosed. It is idempotent.
func (e *Auto) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}
