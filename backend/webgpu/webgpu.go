// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU accelerator.
//
// The backend is built on Windows; elsewhere Open reports that no device is
// available.
//
// Example:
//
//	import (
//	    "github.com/born-ml/convlayer/backend/webgpu"
//	    "github.com/born-ml/convlayer/nn"
//	)
//
//	func main() {
//	    gpu, err := webgpu.Open(nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Release()
//
//	    out, timing, err := nn.RunLayer(ctx, gpu, nn.DefaultConfig(), input, weights, bias)
//	}
package webgpu

import (
	"github.com/born-ml/convlayer/device"
	internalwebgpu "github.com/born-ml/convlayer/internal/device/webgpu"
)

// Device is a WebGPU adapter with its device and queue.
type Device = internalwebgpu.Device

// Open requests a high-performance adapter accepted by pred. A nil pred
// accepts any adapter.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func Open(pred device.Predicate) (*Device, error) {
	return internalwebgpu.Open(pred)
}

// IsAvailable checks if WebGPU is available on the current system.
//
// Example:
//
//	var dev device.Device
//	if webgpu.IsAvailable() {
//	    dev, _ = webgpu.Open(nil)
//	} else {
//	    dev = cpu.New()
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
