package mythforge

import (
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
)

// Option configures a Renderer during creation. Options are applied over
// DefaultConfig, or over the Config passed to WithConfig, in order.
//
// Example:
//
//	r := mythforge.New(b,
//	    mythforge.WithConfig(cfg),
//	    mythforge.WithFrameCount(3),
//	    mythforge.WithSyncMode(mythforge.SyncDeferred),
//	)
type Option func(*rendererOptions)

// rendererOptions holds optional configuration for Renderer creation.
type rendererOptions struct {
	config Config
	draw   DrawFunc
	logger *slog.Logger
}

func defaultOptions() rendererOptions {
	return rendererOptions{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration. Options after it override
// individual fields.
func WithConfig(c Config) Option {
	return func(o *rendererOptions) {
		o.config = c
	}
}

// WithFrameCount sets the number of back buffers and frame slots.
func WithFrameCount(n int) Option {
	return func(o *rendererOptions) {
		o.config.FrameCount = n
	}
}

// WithSyncMode selects immediate or deferred frame synchronization.
func WithSyncMode(m SyncMode) Option {
	return func(o *rendererOptions) {
		o.config.SyncMode = m
	}
}

// WithWaitTimeout bounds every fence wait. Expiry fails the renderer with a
// *gpu.SynchronizationError wrapping gpu.ErrWaitTimeout.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *rendererOptions) {
		o.config.WaitTimeout = Duration(d)
	}
}

// WithDebug enables the validation layer, the info-queue filter and debug
// object names.
func WithDebug(enabled bool) Option {
	return func(o *rendererOptions) {
		o.config.Debug = enabled
	}
}

// WithVSync presents with sync interval 1 when enabled, 0 otherwise.
func WithVSync(enabled bool) Option {
	return func(o *rendererOptions) {
		o.config.VSync = enabled
	}
}

// WithClearColor sets the colour the back buffer is cleared to every frame.
func WithClearColor(c gputypes.Color) Option {
	return func(o *rendererOptions) {
		o.config.ClearColor = [4]float64{c.R, c.G, c.B, c.A}
	}
}

// WithDrawFunc sets a callback recording draw commands after the clears.
func WithDrawFunc(fn DrawFunc) Option {
	return func(o *rendererOptions) {
		o.draw = fn
	}
}

// WithLogger sets the renderer's logger. Without it the package logger
// (see SetLogger) is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *rendererOptions) {
		o.logger = l
	}
}
