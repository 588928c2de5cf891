// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"context"
	"testing"

	"github.com/born-ml/convlayer/backend/cpu"
	"github.com/born-ml/convlayer/nn"
	"github.com/born-ml/convlayer/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLayer(t *testing.T) {
	dev := cpu.New()
	defer dev.Release()

	// Two channels, ones everywhere, bias -9 on channel 1.
	cfg := nn.Config{Channels: 2, InputSize: 5, KernelSize: 2, PoolSize: 2}
	input, err := tensor.New(cfg.InputShape())
	require.NoError(t, err)
	for i := range input.Data() {
		input.Data()[i] = 1
	}
	weights, err := tensor.New(cfg.WeightShape())
	require.NoError(t, err)
	for i := range weights.Data() {
		weights.Data()[i] = 1
	}
	bias, err := tensor.FromSlice([]float32{0, -9}, cfg.BiasShape())
	require.NoError(t, err)

	out, timing, err := nn.RunLayer(context.Background(), dev, cfg, input, weights, bias)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2, 2}, out.Shape())
	assert.GreaterOrEqual(t, timing.Elapsed(), timing.KernelElapsed())

	// Each position sums 2 channels x 2 x 2 ones = 8.
	for i := 0; i < 4; i++ {
		assert.Equal(t, float32(8), out.Data()[i])
		assert.Equal(t, float32(0), out.Data()[4+i], "ReLU clamps 8 - 9")
	}

	want, err := nn.Reference(cfg, input, weights, bias)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), out.Data())
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	dev := cpu.New()
	defer dev.Release()

	_, err := nn.NewPipeline(dev, nn.Config{Channels: 1, InputSize: 3, KernelSize: 5, PoolSize: 1})
	assert.ErrorIs(t, err, nn.ErrInvalidConfig)
}

func TestPlanTiling(t *testing.T) {
	dev := cpu.New()
	defer dev.Release()

	tiling, err := nn.PlanTiling(nn.DefaultConfig(), dev)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 1, 16}, tiling.Local(nn.StagePooling))
}
