// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn runs the forward pass of a convolutional layer on an
// accelerator.
//
// # Overview
//
// One layer invocation chains four kernels on a single in-order queue:
//   - Bias-init: broadcast the per-channel bias into the accumulator
//   - Convolution: valid K x K convolution across every input channel
//   - Activation: in-place ReLU
//   - Pooling: non-overlapping P x P max pooling
//
// The intermediate accumulator never leaves the device; only the pooled
// output is read back.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/convlayer/backend/cpu"
//	    "github.com/born-ml/convlayer/nn"
//	)
//
//	func main() {
//	    dev := cpu.New()
//	    defer dev.Release()
//
//	    cfg := nn.DefaultConfig()
//	    out, timing, err := nn.RunLayer(ctx, dev, cfg, input, weights, bias)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(out.Shape(), timing.GOPS(cfg))
//	}
//
// # Repeated Invocations
//
// A Pipeline builds the kernels once and can run many invocations. Each run
// allocates and releases its own device buffers.
//
//	p, err := nn.NewPipeline(dev, cfg)
//	defer p.Release()
//	out, _, err := p.Run(ctx, input, weights, bias)
//
// # Thread Safety
//
// Runs on one Pipeline are serialized. Separate Pipelines on the same device
// share its queue and execute in submission order.
package nn
