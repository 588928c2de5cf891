// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"context"

	"github.com/born-ml/convlayer/internal/cnn"
	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/tensor"
)

// Config fixes the layer dimensions.
type Config = cnn.Config

// DefaultConfig returns the reference layer: 256 channels, 228x228 input,
// 5x5 kernel, 2x2 pooling.
func DefaultConfig() Config {
	return cnn.DefaultConfig()
}

// Pipeline runs the layer on one device.
type Pipeline = cnn.Pipeline

// Option configures a Pipeline.
type Option = cnn.Option

// Timing records the milestones of one invocation.
type Timing = cnn.Timing

// Tiling holds the work-group shape of every stage.
type Tiling = cnn.Tiling

// Stage is one of the four kernels of the layer.
type Stage = cnn.Stage

// Stages in execution order.
const (
	StageBiasInit    = cnn.StageBiasInit
	StageConvolution = cnn.StageConvolution
	StageActivation  = cnn.StageActivation
	StagePooling     = cnn.StagePooling
)

// Errors returned for invalid layers and inputs.
var (
	ErrInvalidConfig = cnn.ErrInvalidConfig
	ErrShapeMismatch = cnn.ErrShapeMismatch
	ErrBadTiling     = cnn.ErrBadTiling
)

// NewPipeline builds the layer program on dev.
func NewPipeline(dev device.Device, cfg Config, opts ...Option) (*Pipeline, error) {
	return cnn.New(dev, cfg, opts...)
}

// WithTiling replaces the planned tiling.
func WithTiling(t Tiling) Option {
	return cnn.WithTiling(t)
}

// PlanTiling derives per-stage work-group shapes for cfg on dev.
func PlanTiling(cfg Config, dev device.Device) (Tiling, error) {
	return cnn.PlanTiling(cfg, dev.Limits())
}

// RunLayer runs the layer once on dev.
//
// Example:
//
//	out, timing, err := nn.RunLayer(ctx, dev, cfg, input, weights, bias)
//	// out has shape [C, Hout, Hout]
func RunLayer(ctx context.Context, dev device.Device, cfg Config, input, weights, bias *tensor.Host) (*tensor.Host, *Timing, error) {
	return cnn.RunLayer(ctx, dev, cfg, input, weights, bias)
}

// Reference computes the layer sequentially on the host.
func Reference(cfg Config, input, weights, bias *tensor.Host) (*tensor.Host, error) {
	return cnn.Reference(cfg, input, weights, bias)
}
