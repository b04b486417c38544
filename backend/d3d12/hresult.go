// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package d3d12

import (
	"fmt"

	"github.com/mythforge/mythforge/gpu"
)

// HRESULT is a COM status code returned by a failed Direct3D or DXGI call.
type HRESULT int32

// Status codes the backend distinguishes.
const (
	S_OK                          HRESULT = 0
	S_FALSE                       HRESULT = 1
	E_NOINTERFACE                 HRESULT = -0x7fffbffe // 0x80004002
	E_FAIL                        HRESULT = -0x7fffbffb // 0x80004005
	E_OUTOFMEMORY                 HRESULT = -0x7ff8fff2 // 0x8007000E
	E_INVALIDARG                  HRESULT = -0x7ff8ffa9 // 0x80070057
	DXGI_ERROR_INVALID_CALL       HRESULT = -0x7785ffff // 0x887A0001
	DXGI_ERROR_NOT_FOUND          HRESULT = -0x7785fffe // 0x887A0002
	DXGI_ERROR_UNSUPPORTED        HRESULT = -0x7785fffc // 0x887A0004
	DXGI_ERROR_DEVICE_REMOVED     HRESULT = -0x7785fffb // 0x887A0005
	DXGI_ERROR_DEVICE_HUNG        HRESULT = -0x7785fffa // 0x887A0006
	DXGI_ERROR_DEVICE_RESET       HRESULT = -0x7785fff9 // 0x887A0007
	DXGI_ERROR_DRIVER_INTERNAL    HRESULT = -0x7785ffe0 // 0x887A0020
	DXGI_ERROR_SDK_COMPONENT_MISS HRESULT = -0x7785ffd3 // 0x887A002D
)

var hresultNames = map[HRESULT]string{
	S_FALSE:                       "S_FALSE",
	E_NOINTERFACE:                 "E_NOINTERFACE",
	E_FAIL:                        "E_FAIL",
	E_OUTOFMEMORY:                 "E_OUTOFMEMORY",
	E_INVALIDARG:                  "E_INVALIDARG",
	DXGI_ERROR_INVALID_CALL:       "DXGI_ERROR_INVALID_CALL",
	DXGI_ERROR_NOT_FOUND:          "DXGI_ERROR_NOT_FOUND",
	DXGI_ERROR_UNSUPPORTED:        "DXGI_ERROR_UNSUPPORTED",
	DXGI_ERROR_DEVICE_REMOVED:     "DXGI_ERROR_DEVICE_REMOVED",
	DXGI_ERROR_DEVICE_HUNG:        "DXGI_ERROR_DEVICE_HUNG",
	DXGI_ERROR_DEVICE_RESET:       "DXGI_ERROR_DEVICE_RESET",
	DXGI_ERROR_DRIVER_INTERNAL:    "DXGI_ERROR_DRIVER_INTERNAL_ERROR",
	DXGI_ERROR_SDK_COMPONENT_MISS: "DXGI_ERROR_SDK_COMPONENT_MISSING",
}

// Failed reports whether hr is an error code.
func (hr HRESULT) Failed() bool { return hr < 0 }

func (hr HRESULT) Error() string {
	if name, ok := hresultNames[hr]; ok {
		return fmt.Sprintf("d3d12: %s (%#08x)", name, uint32(hr))
	}
	return fmt.Sprintf("d3d12: HRESULT %#08x", uint32(hr))
}

// Is matches gpu.ErrDeviceLost for removed, reset and hung devices and
// gpu.ErrNotSupported for missing interfaces and unsupported calls.
func (hr HRESULT) Is(target error) bool {
	switch target {
	case gpu.ErrDeviceLost:
		return hr.DeviceLost()
	case gpu.ErrNotSupported:
		return hr == E_NOINTERFACE || hr == DXGI_ERROR_UNSUPPORTED || hr == DXGI_ERROR_SDK_COMPONENT_MISS
	}
	return false
}

// DeviceLost reports whether hr means the device must be recreated.
func (hr HRESULT) DeviceLost() bool {
	switch hr {
	case DXGI_ERROR_DEVICE_REMOVED, DXGI_ERROR_DEVICE_RESET, DXGI_ERROR_DEVICE_HUNG, DXGI_ERROR_DRIVER_INTERNAL:
		return true
	}
	return false
}

// check converts a raw call result to an error; success codes return nil.
func check(r uintptr) error {
	if hr := HRESULT(int32(uint32(r))); hr.Failed() {
		return hr
	}
	return nil
}
