// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package d3d12

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/mythforge/mythforge/backend"
	"github.com/mythforge/mythforge/gpu"
)

var (
	d3d12DLL = windows.NewLazySystemDLL("d3d12.dll")
	dxgiDLL  = windows.NewLazySystemDLL("dxgi.dll")
	user32   = windows.NewLazySystemDLL("user32.dll")

	procD3D12CreateDevice      = d3d12DLL.NewProc("D3D12CreateDevice")
	procD3D12GetDebugInterface = d3d12DLL.NewProc("D3D12GetDebugInterface")
	procCreateDXGIFactory2     = dxgiDLL.NewProc("CreateDXGIFactory2")
	procGetClientRect          = user32.NewProc("GetClientRect")
)

const (
	dxgiCreateFactoryDebug  = 0x1
	dxgiAdapterFlagSoftware = 0x2
	dxgiMWANoAltEnter       = 0x2
)

func init() {
	backend.Register("d3d12", 100, func() (gpu.Backend, error) {
		return New()
	}, Available)
}

// Available reports whether d3d12.dll and dxgi.dll can be loaded.
func Available() bool {
	return d3d12DLL.Load() == nil && dxgiDLL.Load() == nil
}

// Backend is the Direct3D 12 backend.
type Backend struct {
	mu      sync.Mutex
	factory *comObject
	debug   bool
	devices int
}

var _ gpu.Backend = (*Backend)(nil)

// New loads the runtime DLLs. The DXGI factory is created lazily so that
// EnableDebugLayer can still request a debug factory.
func New() (*Backend, error) {
	if err := d3d12DLL.Load(); err != nil {
		return nil, fmt.Errorf("d3d12: %w", err)
	}
	if err := dxgiDLL.Load(); err != nil {
		return nil, fmt.Errorf("d3d12: %w", err)
	}
	return &Backend{}, nil
}

// Name returns "d3d12".
func (b *Backend) Name() string { return "d3d12" }

// Release releases the DXGI factory.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factory.release()
	b.factory = nil
}

// EnableDebugLayer enables the D3D12 debug layer and requests a debug DXGI
// factory. It fails once a device exists.
func (b *Backend) EnableDebugLayer() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.devices > 0 {
		return fmt.Errorf("d3d12: debug layer enabled after device creation: %w", DXGI_ERROR_INVALID_CALL)
	}
	var dbg *comObject
	r, _, _ := procD3D12GetDebugInterface.Call(uintptr(unsafe.Pointer(iidID3D12Debug)), uintptr(unsafe.Pointer(&dbg)))
	if err := check(r); err != nil {
		return fmt.Errorf("d3d12: D3D12GetDebugInterface: %w", err)
	}
	defer dbg.release()
	dbg.call(vtblEnableDebugLayer)
	b.debug = true
	return nil
}

func (b *Backend) dxgiFactory() (*comObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.factory != nil {
		return b.factory, nil
	}
	var flags uintptr
	if b.debug {
		flags = dxgiCreateFactoryDebug
	}
	var f *comObject
	r, _, _ := procCreateDXGIFactory2.Call(flags, uintptr(unsafe.Pointer(iidIDXGIFactory4)), uintptr(unsafe.Pointer(&f)))
	if err := check(r); err != nil {
		return nil, fmt.Errorf("d3d12: CreateDXGIFactory2: %w", err)
	}
	b.factory = f
	return f, nil
}

// dxgiAdapterDesc1 matches DXGI_ADAPTER_DESC1.
type dxgiAdapterDesc1 struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	AdapterLuidLow        uint32
	AdapterLuidHigh       int32
	Flags                 uint32
}

// Adapter is an IDXGIAdapter1.
type Adapter struct {
	raw  *comObject
	info gpu.AdapterInfo
	once sync.Once
}

// Info returns the adapter description.
func (a *Adapter) Info() gpu.AdapterInfo { return a.info }

// Release releases the adapter.
func (a *Adapter) Release() {
	a.once.Do(a.raw.release)
}

// EnumerateAdapters returns every adapter in DXGI order.
func (b *Backend) EnumerateAdapters() ([]gpu.Adapter, error) {
	f, err := b.dxgiFactory()
	if err != nil {
		return nil, err
	}
	var out []gpu.Adapter
	for i := uintptr(0); ; i++ {
		var raw *comObject
		err := check(f.call(vtblEnumAdapters1, i, uintptr(unsafe.Pointer(&raw))))
		if errors.Is(err, DXGI_ERROR_NOT_FOUND) {
			break
		}
		if err != nil {
			for _, a := range out {
				a.Release()
			}
			return nil, fmt.Errorf("d3d12: EnumAdapters1(%d): %w", i, err)
		}
		var desc dxgiAdapterDesc1
		if err := check(raw.call(vtblGetDesc1, uintptr(unsafe.Pointer(&desc)))); err != nil {
			raw.release()
			continue
		}
		out = append(out, &Adapter{raw: raw, info: gpu.AdapterInfo{
			Description:          windows.UTF16ToString(desc.Description[:]),
			VendorID:             desc.VendorID,
			DeviceID:             desc.DeviceID,
			DedicatedVideoMemory: uint64(desc.DedicatedVideoMemory),
			Software:             desc.Flags&dxgiAdapterFlagSoftware != 0,
		}})
	}
	return out, nil
}

// CheckDeviceSupport calls D3D12CreateDevice without an output pointer,
// which tests support without creating a device.
func (b *Backend) CheckDeviceSupport(a gpu.Adapter, level gpu.FeatureLevel) bool {
	da, ok := a.(*Adapter)
	if !ok {
		return false
	}
	r, _, _ := procD3D12CreateDevice.Call(
		uintptr(unsafe.Pointer(da.raw)),
		uintptr(featureLevelCode(level)),
		uintptr(unsafe.Pointer(iidID3D12Device)),
		0,
	)
	return check(r) == nil
}

// CreateDevice creates an ID3D12Device on a.
func (b *Backend) CreateDevice(a gpu.Adapter, level gpu.FeatureLevel) (gpu.Device, error) {
	da, ok := a.(*Adapter)
	if !ok {
		return nil, fmt.Errorf("d3d12: adapter is %T: %w", a, gpu.ErrNotSupported)
	}
	var raw *comObject
	r, _, _ := procD3D12CreateDevice.Call(
		uintptr(unsafe.Pointer(da.raw)),
		uintptr(featureLevelCode(level)),
		uintptr(unsafe.Pointer(iidID3D12Device)),
		uintptr(unsafe.Pointer(&raw)),
	)
	if err := check(r); err != nil {
		return nil, fmt.Errorf("d3d12: D3D12CreateDevice(%s): %w", level, err)
	}
	b.mu.Lock()
	b.devices++
	debug := b.debug
	b.mu.Unlock()
	return &Device{raw: raw, adapter: da.info, level: level, debug: debug}, nil
}

// CreateEvent creates an auto-reset Win32 event.
func (b *Backend) CreateEvent() (gpu.Event, error) {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateEvent: %w", err)
	}
	return &Event{h: h}, nil
}

// WindowSize returns the client-area size of the HWND window.
func (b *Backend) WindowSize(window gpu.WindowHandle) (uint32, uint32, error) {
	var rc struct{ Left, Top, Right, Bottom int32 }
	r, _, err := procGetClientRect.Call(uintptr(window), uintptr(unsafe.Pointer(&rc)))
	if r == 0 {
		return 0, 0, fmt.Errorf("d3d12: GetClientRect: %w", err)
	}
	return uint32(rc.Right - rc.Left), uint32(rc.Bottom - rc.Top), nil
}

// Event is a Win32 auto-reset event.
type Event struct {
	h windows.Handle
}

var _ gpu.Event = (*Event)(nil)

// Handle returns the event handle.
func (e *Event) Handle() windows.Handle { return e.h }

// Wait blocks until the event is set or timeout expires.
func (e *Event) Wait(timeout time.Duration) error {
	ms := uint32(windows.INFINITE)
	if timeout > 0 {
		ms = uint32(timeout.Milliseconds())
	}
	s, err := windows.WaitForSingleObject(e.h, ms)
	switch {
	case err != nil:
		return fmt.Errorf("d3d12: WaitForSingleObject: %w", err)
	case s == uint32(windows.WAIT_TIMEOUT):
		return fmt.Errorf("d3d12: event wait %v: %w", timeout, gpu.ErrWaitTimeout)
	}
	return nil
}

// Close closes the handle.
func (e *Event) Close() error {
	return windows.CloseHandle(e.h)
}
