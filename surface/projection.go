// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"math"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Projection describes a right-handed perspective projection.
type Projection struct {
	// FovY is the vertical field of view in degrees.
	FovY float32
	Near float32
	Far  float32
}

// DefaultProjection returns a 45 degree field of view with clip planes at
// 0.1 and 100.
func DefaultProjection() Projection {
	return Projection{FovY: 45, Near: 0.1, Far: 100}
}

// Matrix returns the projection for aspect (width / height).
func (p Projection) Matrix(aspect float32) f32.Mat4 {
	return Perspective(p.FovY*float32(math.Pi)/180, aspect, p.Near, p.Far)
}

// Perspective builds a right-handed perspective matrix mapping depth to
// [0, 1], in row-major order for row vectors (v' = v * M). fovY is in
// radians.
func Perspective(fovY, aspect, near, far float32) f32.Mat4 {
	h := 1 / math32.Tan(fovY/2)
	w := h / aspect
	r := far / (near - far)
	return f32.Mat4{
		w, 0, 0, 0,
		0, h, 0, 0,
		0, 0, r, -1,
		0, 0, r * near, 0,
	}
}
