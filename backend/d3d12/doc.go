// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package d3d12 is the Direct3D 12 / DXGI backend.
//
// The backend calls d3d12.dll and dxgi.dll through COM vtables with
// syscall.SyscallN; it needs no cgo and no SDK headers. It registers itself
// as "d3d12" with priority 100 on Windows and is reported unavailable when
// d3d12.dll cannot be loaded.
//
// Failed calls return an [HRESULT]. Device-removed, device-reset and
// device-hung codes match gpu.ErrDeviceLost with errors.Is.
//
// Import the package for its side effect:
//
//	import _ "github.com/mythforge/mythforge/backend/d3d12"
package d3d12
