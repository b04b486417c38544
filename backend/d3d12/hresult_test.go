// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package d3d12

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/gpu"
)

func TestHRESULTValues(t *testing.T) {
	tests := []struct {
		hr   HRESULT
		want uint32
	}{
		{E_NOINTERFACE, 0x80004002},
		{E_FAIL, 0x80004005},
		{E_OUTOFMEMORY, 0x8007000E},
		{E_INVALIDARG, 0x80070057},
		{DXGI_ERROR_INVALID_CALL, 0x887A0001},
		{DXGI_ERROR_NOT_FOUND, 0x887A0002},
		{DXGI_ERROR_DEVICE_REMOVED, 0x887A0005},
		{DXGI_ERROR_DEVICE_RESET, 0x887A0007},
	}
	for _, tt := range tests {
		if uint32(tt.hr) != tt.want {
			t.Errorf("%s = %#x, want %#x", tt.hr, uint32(tt.hr), tt.want)
		}
		if !tt.hr.Failed() {
			t.Errorf("%s.Failed() = false", tt.hr)
		}
	}
	if S_OK.Failed() || S_FALSE.Failed() {
		t.Error("success codes report failure")
	}
}

func TestHRESULTDeviceLost(t *testing.T) {
	for _, hr := range []HRESULT{DXGI_ERROR_DEVICE_REMOVED, DXGI_ERROR_DEVICE_RESET, DXGI_ERROR_DEVICE_HUNG} {
		err := &gpu.PresentationError{Op: "present", Err: hr}
		if !errors.Is(err, gpu.ErrDeviceLost) {
			t.Errorf("%s does not match ErrDeviceLost", hr)
		}
	}
	if errors.Is(E_INVALIDARG, gpu.ErrDeviceLost) {
		t.Error("E_INVALIDARG matches ErrDeviceLost")
	}
	if !errors.Is(fmt.Errorf("wrap: %w", E_NOINTERFACE), gpu.ErrNotSupported) {
		t.Error("E_NOINTERFACE does not match ErrNotSupported")
	}

	var hr HRESULT
	if !errors.As(fmt.Errorf("wrap: %w", DXGI_ERROR_DEVICE_RESET), &hr) || hr != DXGI_ERROR_DEVICE_RESET {
		t.Errorf("errors.As = %v", hr)
	}
}

func TestHRESULTError(t *testing.T) {
	if got := DXGI_ERROR_DEVICE_REMOVED.Error(); !strings.Contains(got, "DXGI_ERROR_DEVICE_REMOVED") || !strings.Contains(got, "887a0005") {
		t.Errorf("Error() = %q", got)
	}
	if got := HRESULT(-1).Error(); !strings.Contains(got, "0xffffffff") {
		t.Errorf("Error() = %q", got)
	}
}

func TestCheck(t *testing.T) {
	if err := check(0); err != nil {
		t.Errorf("check(S_OK) = %v", err)
	}
	if err := check(1); err != nil {
		t.Errorf("check(S_FALSE) = %v", err)
	}
	// Calls return the HRESULT zero-extended in a 64-bit register.
	if err := check(uintptr(0x887A0005)); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("check(DEVICE_REMOVED) = %v", err)
	}
}

func TestDXGIFormat(t *testing.T) {
	if code, _ := dxgiFormat(gputypes.TextureFormatBGRA8Unorm); code != dxgiFormatB8G8R8A8Unorm {
		t.Errorf("BGRA8 = %d, want 87", code)
	}
	for _, f := range []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm} {
		if _, err := dxgiFormat(f); err != nil {
			t.Errorf("dxgiFormat(%v): %v", f, err)
		}
	}
	if _, err := dxgiFormat(gputypes.TextureFormatDepth24PlusStencil8); !errors.Is(err, gpu.ErrNotSupported) {
		t.Errorf("dxgiFormat(depth) = %v, want ErrNotSupported", err)
	}
	if featureLevelCode(gpu.FeatureLevel12_0) != 0xc000 {
		t.Error("feature level codes must match D3D_FEATURE_LEVEL")
	}
}
