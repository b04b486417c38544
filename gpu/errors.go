// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
)

// Errors.
var (
	// ErrNoAdapter is returned when no hardware adapter supports the
	// required feature level.
	ErrNoAdapter = errors.New("gpu: no capable adapter")

	// ErrDeviceLost is returned when the device was removed or reset.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrWaitTimeout is returned when a bounded fence wait expires.
	ErrWaitTimeout = errors.New("gpu: wait timed out")

	// ErrInvalidSize is returned for zero or out-of-range dimensions.
	ErrInvalidSize = errors.New("gpu: invalid size")

	// ErrNotSupported is returned for optional features the backend lacks.
	ErrNotSupported = errors.New("gpu: not supported")
)

// DeviceCreationError indicates that no capable adapter was found or the
// driver rejected device creation. It is fatal; the caller should not retry.
type DeviceCreationError struct {
	Op  string
	Err error
}

func (e *DeviceCreationError) Error() string {
	return "gpu: device creation: " + e.Op + ": " + e.Err.Error()
}

func (e *DeviceCreationError) Unwrap() error { return e.Err }

// SwapChainError indicates that swap chain creation or resize failed. The
// surface must be torn down completely before it is recreated.
type SwapChainError struct {
	Op  string
	Err error
}

func (e *SwapChainError) Error() string {
	return "gpu: swap chain: " + e.Op + ": " + e.Err.Error()
}

func (e *SwapChainError) Unwrap() error { return e.Err }

// SynchronizationError indicates that a fence signal, wait registration or
// wait failed. Fence corruption implies an unrecoverable device state; the
// session must be torn down.
type SynchronizationError struct {
	Op    string
	Value uint64
	Err   error
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("gpu: synchronization: %s (fence value %d): %v", e.Op, e.Value, e.Err)
}

func (e *SynchronizationError) Unwrap() error { return e.Err }

// PresentationError indicates that Present failed. No presentation failure
// is treated as transient.
type PresentationError struct {
	Op  string
	Err error
}

func (e *PresentationError) Error() string {
	return "gpu: presentation: " + e.Op + ": " + e.Err.Error()
}

func (e *PresentationError) Unwrap() error { return e.Err }
