//go:build windows

package main

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/mythforge/mythforge/gpu"
)

func nativeHandle(w *glfw.Window) gpu.WindowHandle {
	return gpu.WindowHandle(unsafe.Pointer(w.GetWin32Window()))
}
