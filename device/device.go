// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device selects a hardware adapter and creates the logical device.
package device

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mythforge/mythforge/gpu"
)

// MinFeatureLevel is the lowest feature level a device may be created at.
const MinFeatureLevel = gpu.FeatureLevel11_0

// DefaultFeatureLevel is the feature level used when none is configured.
const DefaultFeatureLevel = gpu.FeatureLevel12_1

// SelectAdapter returns the hardware adapter with the most dedicated video
// memory among those that can create a device at level. Software adapters
// are skipped. Every adapter not returned is released.
func SelectAdapter(b gpu.Backend, level gpu.FeatureLevel) (gpu.Adapter, error) {
	adapters, err := b.EnumerateAdapters()
	if err != nil {
		return nil, &gpu.DeviceCreationError{Op: "enumerate adapters", Err: err}
	}

	var best gpu.Adapter
	for _, a := range adapters {
		info := a.Info()
		if info.Software || !b.CheckDeviceSupport(a, level) {
			a.Release()
			continue
		}
		if best == nil || info.DedicatedVideoMemory > best.Info().DedicatedVideoMemory {
			if best != nil {
				best.Release()
			}
			best = a
			continue
		}
		a.Release()
	}

	if best == nil {
		return nil, &gpu.DeviceCreationError{
			Op:  "select adapter",
			Err: fmt.Errorf("feature level %s: %w", level, gpu.ErrNoAdapter),
		}
	}
	return best, nil
}

// Options configures device creation.
type Options struct {
	// Level is the feature level to create the device at. Zero means
	// DefaultFeatureLevel.
	Level gpu.FeatureLevel

	// Debug installs Filter on the device's info queue. The backend's debug
	// layer must have been enabled before the device is created.
	Debug bool

	// BreakOnSeverity makes the debugger break on corruption, error and
	// warning messages.
	BreakOnSeverity bool

	// Filter is the storage filter for debug devices. A zero filter means
	// gpu.DefaultMessageFilter.
	Filter *gpu.MessageFilter

	// Logger receives debug-configuration warnings. Nil disables logging.
	Logger *slog.Logger
}

// Create creates a device on adapter.
func Create(b gpu.Backend, adapter gpu.Adapter, opts Options) (gpu.Device, error) {
	level := opts.Level
	if level == 0 {
		level = DefaultFeatureLevel
	}
	if level < MinFeatureLevel {
		return nil, &gpu.DeviceCreationError{
			Op:  "create device",
			Err: fmt.Errorf("feature level %s below %s: %w", level, MinFeatureLevel, gpu.ErrNotSupported),
		}
	}

	dev, err := b.CreateDevice(adapter, level)
	if err != nil {
		return nil, &gpu.DeviceCreationError{Op: "create device", Err: err}
	}
	if !opts.Debug {
		return dev, nil
	}

	if err := configureDebug(dev, opts); err != nil {
		dev.Release()
		return nil, &gpu.DeviceCreationError{Op: "configure info queue", Err: err}
	}
	return dev, nil
}

func configureDebug(dev gpu.Device, opts Options) error {
	filter := gpu.DefaultMessageFilter()
	if opts.Filter != nil {
		filter = *opts.Filter
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	iq, err := dev.InfoQueue()
	if errors.Is(err, gpu.ErrNotSupported) {
		// Debug layer missing (SDK layers not installed).
		if opts.Logger != nil {
			opts.Logger.Warn("device: debug layer not available", "err", err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	defer iq.Release()

	if opts.BreakOnSeverity {
		for _, s := range []gpu.MessageSeverity{gpu.SeverityCorruption, gpu.SeverityError, gpu.SeverityWarning} {
			if err := iq.SetBreakOnSeverity(s, true); err != nil {
				return fmt.Errorf("break on %s: %w", s, err)
			}
		}
	}
	return iq.PushStorageFilter(filter)
}
