// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/convlayer/internal/tensor"
)

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// Host is a dense float32 tensor in host memory.
type Host = tensor.Host

// New allocates a zero-filled tensor.
func New(shape Shape) (*Host, error) {
	return tensor.NewHost(shape)
}

// FromSlice wraps data as a tensor of the given shape without copying.
func FromSlice(data []float32, shape Shape) (*Host, error) {
	return tensor.FromSlice(data, shape)
}
