// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/convlayer/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	x, err := tensor.New(tensor.Shape{2, 3, 4})
	require.NoError(t, err)

	assert.Equal(t, 24, x.NumElements())
	assert.Equal(t, 96, x.ByteSize())
	x.Set(1.5, 1, 2, 3)
	assert.Equal(t, float32(1.5), x.At(1, 2, 3))
	assert.Equal(t, float32(1.5), x.Data()[23])

	_, err = tensor.New(tensor.Shape{2, 0})
	assert.Error(t, err)
}

func TestFromSlice(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	x, err := tensor.FromSlice(data, tensor.Shape{2, 3})
	require.NoError(t, err)

	assert.Equal(t, float32(6), x.At(1, 2))
	data[0] = 10
	assert.Equal(t, float32(10), x.At(0, 0), "data is shared, not copied")

	c := x.Clone()
	data[0] = 20
	assert.Equal(t, float32(10), c.At(0, 0))

	_, err = tensor.FromSlice(data, tensor.Shape{4, 2})
	assert.Error(t, err)
}
