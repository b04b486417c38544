// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu defines the backend-neutral object model used by mythforge.
//
// The interfaces mirror the Direct3D 12 objects the frame loop touches:
// adapters, a logical device, a direct command queue, per-frame command
// allocators, a reusable command list, descriptor heaps, the swap chain and
// a fence with its wait event. Backends (backend/d3d12, backend/sim)
// implement them; the device, command, surface and fence packages and the
// root renderer only ever talk to these interfaces.
//
// # Ownership
//
// Every object that holds GPU or OS resources implements [Releaser]. Objects
// are released in reverse order of creation; [ReleaseStack] does that
// bookkeeping so callers can push resources as they are acquired and tear
// everything down with a single call.
//
// # Errors
//
// Failures of the frame protocol are reported with four typed errors:
// [DeviceCreationError], [SwapChainError], [SynchronizationError] and
// [PresentationError]. All of them are fatal to the rendering session; none
// is retried internally. Use errors.As to classify them and errors.Is with
// the sentinel values ([ErrDeviceLost], [ErrWaitTimeout], ...) to inspect the
// cause.
package gpu
