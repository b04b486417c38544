// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fence implements the CPU side of GPU/CPU frame synchronization.
//
// An [Engine] owns the CPU counter of one fence. [Engine.Signal] queues a
// new value behind all work submitted so far, [Engine.WaitForValue] blocks
// until the GPU has reached a value, and [Engine.Flush] drains the queue.
//
// WaitForValue never touches the event when the fence has already reached
// the value. With enough back buffers, steady-state frames should take that
// path and never block.
//
// Any failure is reported as a *gpu.SynchronizationError and must be
// treated as fatal: the device state is unknown and the session should be
// torn down rather than retried.
package fence

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mythforge/mythforge/gpu"
)

// Signaler enqueues fence signals. gpu.Queue implements it.
type Signaler interface {
	Signal(f gpu.Fence, value uint64) error
}

// Stats counts engine activity.
type Stats struct {
	Signals       uint64
	Waits         uint64
	FastWaits     uint64
	BlockingWaits uint64
}

// Engine tracks the CPU-side counter of a fence and implements the
// signal/wait/flush protocol. It is not safe for concurrent use; the frame
// loop owns it.
type Engine struct {
	queue   Signaler
	fence   gpu.Fence
	event   gpu.Event
	timeout time.Duration
	log     *slog.Logger

	signaled uint64
	stats    Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds blocking waits. Zero, the default, waits forever.
// Expiry is reported as a SynchronizationError wrapping gpu.ErrWaitTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithInitialValue sets the starting counter; it must equal the initial
// value the fence was created with.
func WithInitialValue(v uint64) Option {
	return func(e *Engine) {
		e.signaled = v
	}
}

// WithLogger sets the logger. By default the engine is silent.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an engine that signals f through queue and blocks on event.
func New(queue Signaler, f gpu.Fence, event gpu.Event, opts ...Option) *Engine {
	e := &Engine{
		queue: queue,
		fence: f,
		event: event,
		log:   slog.New(discardHandler{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Signal increments the counter and queues a GPU signal of the new value.
// Call it after all commands of a frame have been submitted. If queueing
// fails the counter is left unchanged.
func (e *Engine) Signal() (uint64, error) {
	value := e.signaled + 1
	if err := e.queue.Signal(e.fence, value); err != nil {
		return 0, &gpu.SynchronizationError{Op: "signal", Value: value, Err: err}
	}
	e.signaled = value
	e.stats.Signals++
	return value, nil
}

// WaitForValue blocks until the fence has reached value. It returns at once,
// without registering the event, when the fence is already there.
func (e *Engine) WaitForValue(value uint64) error {
	e.stats.Waits++
	if e.fence.CompletedValue() >= value {
		e.stats.FastWaits++
		return nil
	}

	if err := e.fence.SetEventOnCompletion(value, e.event); err != nil {
		return &gpu.SynchronizationError{Op: "set event on completion", Value: value, Err: err}
	}
	e.stats.BlockingWaits++

	start := time.Now()
	if err := e.event.Wait(e.timeout); err != nil {
		if errors.Is(err, gpu.ErrWaitTimeout) {
			e.log.Warn("fence: wait timed out", "value", value, "completed", e.fence.CompletedValue())
		}
		return &gpu.SynchronizationError{Op: "wait", Value: value, Err: err}
	}
	if completed := e.fence.CompletedValue(); completed < value {
		return &gpu.SynchronizationError{Op: "wait", Value: value, Err: errEarlyWake}
	}

	e.log.Debug("fence: blocked", "value", value, "elapsed", time.Since(start))
	return nil
}

// Flush signals a new value and waits for it, draining all submitted work.
// Afterwards CompletedValue equals SignaledValue.
func (e *Engine) Flush() error {
	value, err := e.Signal()
	if err != nil {
		return err
	}
	return e.WaitForValue(value)
}

// Completed reports whether the fence has reached value.
func (e *Engine) Completed(value uint64) bool {
	return e.fence.CompletedValue() >= value
}

// SignaledValue returns the last value queued for signal.
func (e *Engine) SignaledValue() uint64 { return e.signaled }

// CompletedValue returns the last value the GPU has reached.
func (e *Engine) CompletedValue() uint64 { return e.fence.CompletedValue() }

// Stats returns activity counters.
func (e *Engine) Stats() Stats { return e.stats }

var errEarlyWake = errors.New("fence: event signaled before the fence reached the value")
