package mythforge

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/mythforge/mythforge/gpu"
)

// DeviceProvider exposes the renderer's device to gogpu-ecosystem code that
// accepts a gpucontext.DeviceProvider. Poll(true) on the returned device
// flushes the queue; Destroy is a no-op because the renderer owns the
// device. The provider is valid until Shutdown.
func (r *Renderer) DeviceProvider() gpucontext.DeviceProvider {
	return &deviceProvider{r: r}
}

type deviceProvider struct {
	r *Renderer
}

func (p *deviceProvider) Device() gpucontext.Device   { return &providedDevice{r: p.r} }
func (p *deviceProvider) Queue() gpucontext.Queue     { return &providedQueue{queue: p.r.queue} }
func (p *deviceProvider) Adapter() gpucontext.Adapter { return &providedAdapter{info: p.r.adapter} }

func (p *deviceProvider) SurfaceFormat() gputypes.TextureFormat {
	if p.r.surface == nil {
		return gputypes.TextureFormatUndefined
	}
	return p.r.surface.Format()
}

// providedDevice adapts the renderer to gpucontext.Device.
type providedDevice struct {
	r *Renderer
}

// Poll drains submitted work when wait is true. Without wait there is
// nothing to poll: fence completion is observed directly.
func (d *providedDevice) Poll(wait bool) {
	if !wait || !d.r.initialized || d.r.err != nil {
		return
	}
	if err := d.r.Flush(); err != nil {
		d.r.logger().Warn("mythforge: poll flush", "err", err)
	}
}

func (d *providedDevice) Destroy() {}

// GPUDevice returns the underlying gpu.Device.
func (d *providedDevice) GPUDevice() gpu.Device { return d.r.device }

type providedQueue struct {
	queue gpu.Queue
}

// GPUQueue returns the underlying gpu.Queue.
func (q *providedQueue) GPUQueue() gpu.Queue { return q.queue }

type providedAdapter struct {
	info gpu.AdapterInfo
}

// Info returns the adapter description.
func (a *providedAdapter) Info() gpu.AdapterInfo { return a.info }
