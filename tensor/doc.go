// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the host tensors exchanged with an accelerator.
//
// # Overview
//
// Tensors are dense, row-major float32 arrays in host memory. A device
// never holds a reference to a host tensor: transfers copy its contents,
// ownership stays with the caller.
//
// # Basic Usage
//
//	x, err := tensor.New(tensor.Shape{3, 32, 32})
//	x.Set(1.5, 0, 4, 7)
//	v := x.At(0, 4, 7)
//
//	// Wrap existing data without copying.
//	w, err := tensor.FromSlice(weights, tensor.Shape{3, 3, 5, 5})
package tensor
