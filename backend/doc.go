// Package backend keeps the registry of GPU backends.
//
// A backend is a gpu.Backend implementation: the D3D12/DXGI backend on
// Windows, or the simulated backend everywhere. Backends register
// themselves from init functions and are selected at runtime:
//
//	import _ "github.com/mythforge/mythforge/backend/sim"
//
// # Registration
//
//	func init() {
//		backend.Register("d3d12", 100, factory, available)
//	}
//
// Registering an existing name replaces the previous entry.
//
// # Selection
//
// Use New to get the best available backend, or NewByName to request a
// specific one:
//
//	// Best available (highest priority whose factory succeeds)
//	b, err := backend.New()
//
//	// Or a specific backend
//	b, err := backend.NewByName("sim")
//
// # Available Backends
//
//   - "d3d12": Direct3D 12 through DXGI (Windows, priority 100)
//   - "sim": simulated asynchronous GPU (all platforms, priority 10)
package backend
