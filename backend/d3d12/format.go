// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package d3d12

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/gpu"
)

// DXGI_FORMAT values used by the backend.
const (
	dxgiFormatUnknown       uint32 = 0
	dxgiFormatR8G8B8A8Unorm uint32 = 28
	dxgiFormatD32Float      uint32 = 40
	dxgiFormatB8G8R8A8Unorm uint32 = 87
)

// dxgiFormat maps a back buffer format to its DXGI_FORMAT.
func dxgiFormat(f gputypes.TextureFormat) (uint32, error) {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return dxgiFormatR8G8B8A8Unorm, nil
	case gputypes.TextureFormatBGRA8Unorm:
		return dxgiFormatB8G8R8A8Unorm, nil
	}
	return dxgiFormatUnknown, fmt.Errorf("d3d12: back buffer format %v: %w", f, gpu.ErrNotSupported)
}

// featureLevelCode returns the D3D_FEATURE_LEVEL constant for l.
func featureLevelCode(l gpu.FeatureLevel) uint32 { return uint32(l) }
