// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go accelerator that runs kernels on the CPU.
//
// Work-groups of a launch are spread over a bounded pool of goroutines.
// The device follows the same memory and queue rules as a GPU, so code
// written against it runs unchanged on the webgpu backend.
package cpu

import (
	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/device/host"
)

// Device is the CPU accelerator.
type Device = host.Device

// Config controls worker count, limits and queue depth.
type Config = host.Config

// Compile-time check that Device implements device.Device.
var _ device.Device = (*Device)(nil)

// DefaultConfig returns a device sized to the machine.
func DefaultConfig() Config {
	return host.DefaultConfig()
}

// New creates a CPU device with the default configuration.
// Call Release() when done to stop its queue worker.
func New() *Device {
	return host.New(host.DefaultConfig())
}

// NewWithConfig creates a CPU device with cfg.
func NewWithConfig(cfg Config) *Device {
	return host.New(cfg)
}
