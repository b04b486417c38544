//go:build !windows

package main

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/mythforge/mythforge/gpu"
)

var nextHandle gpu.WindowHandle

// nativeHandle returns an identifier for w. Only the simulated backend can
// present to it.
func nativeHandle(*glfw.Window) gpu.WindowHandle {
	nextHandle++
	return nextHandle
}
