// Package cnn runs the forward pass of one convolutional layer on a device:
// bias initialization, valid convolution, ReLU and non-overlapping max
// pooling.
//
// All dimensions are fixed by a Config before a Pipeline is built. Tensors
// are dense, channel-major, row-major float32:
//
//	input        [C, Hin, Hin]
//	weights      [C, C, K, K]
//	bias         [C]
//	intermediate [C, Hconv, Hconv]   Hconv = Hin - K + 1 (device only)
//	output       [C, Hout, Hout]     Hout  = Hconv / P
package cnn

import (
	"errors"
	"fmt"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/tensor"
)

// ErrInvalidConfig is returned for layer shapes that violate the shape law.
var ErrInvalidConfig = errors.New("cnn: invalid layer configuration")

// Config fixes the layer dimensions.
type Config struct {
	Channels   int // C, input and output channel count.
	InputSize  int // Hin, side of the input activations.
	KernelSize int // K, side of the square kernel.
	PoolSize   int // P, side of the pooling window and its stride.
}

// DefaultConfig returns the reference layer: 256 channels, 228x228 input,
// 5x5 kernel, 2x2 pooling.
func DefaultConfig() Config {
	return Config{
		Channels:   256,
		InputSize:  228,
		KernelSize: 5,
		PoolSize:   2,
	}
}

// ConvSize returns Hconv = Hin - K + 1.
func (c Config) ConvSize() int {
	return c.InputSize - c.KernelSize + 1
}

// OutputSize returns Hout = Hconv / P, or 0 if P is not positive.
func (c Config) OutputSize() int {
	if c.PoolSize <= 0 {
		return 0
	}
	return c.ConvSize() / c.PoolSize
}

// Validate checks the shape law: every dimension positive, Hconv > 0 and
// Hconv divisible by P. Trailing rows that would not fill a pooling window
// are rejected rather than truncated.
func (c Config) Validate() error {
	switch {
	case c.Channels <= 0:
		return fmt.Errorf("%w: channels must be positive, got %d", ErrInvalidConfig, c.Channels)
	case c.InputSize <= 0:
		return fmt.Errorf("%w: input size must be positive, got %d", ErrInvalidConfig, c.InputSize)
	case c.KernelSize <= 0:
		return fmt.Errorf("%w: kernel size must be positive, got %d", ErrInvalidConfig, c.KernelSize)
	case c.PoolSize <= 0:
		return fmt.Errorf("%w: pool size must be positive, got %d", ErrInvalidConfig, c.PoolSize)
	case c.ConvSize() <= 0:
		return fmt.Errorf("%w: kernel %d larger than input %d", ErrInvalidConfig, c.KernelSize, c.InputSize)
	case c.ConvSize()%c.PoolSize != 0:
		return fmt.Errorf("%w: convolution output %d not divisible by pool size %d",
			ErrInvalidConfig, c.ConvSize(), c.PoolSize)
	}
	return nil
}

// InputShape returns [C, Hin, Hin].
func (c Config) InputShape() tensor.Shape {
	return tensor.Shape{c.Channels, c.InputSize, c.InputSize}
}

// WeightShape returns [C, C, K, K].
func (c Config) WeightShape() tensor.Shape {
	return tensor.Shape{c.Channels, c.Channels, c.KernelSize, c.KernelSize}
}

// BiasShape returns [C].
func (c Config) BiasShape() tensor.Shape {
	return tensor.Shape{c.Channels}
}

// ConvShape returns [C, Hconv, Hconv].
func (c Config) ConvShape() tensor.Shape {
	return tensor.Shape{c.Channels, c.ConvSize(), c.ConvSize()}
}

// OutputShape returns [C, Hout, Hout].
func (c Config) OutputShape() tensor.Shape {
	return tensor.Shape{c.Channels, c.OutputSize(), c.OutputSize()}
}

// MACs returns the multiply-accumulate count of the convolution,
// C^2 * Hconv^2 * K^2.
func (c Config) MACs() int64 {
	ch, hc, k := int64(c.Channels), int64(c.ConvSize()), int64(c.KernelSize)
	return ch * ch * hc * hc * k * k
}

// Defines returns the build-time constants the kernels are compiled with.
func (c Config) Defines() device.Defines {
	return device.Defines{
		"C":     c.Channels,
		"HIN":   c.InputSize,
		"K":     c.KernelSize,
		"HCONV": c.ConvSize(),
		"P":     c.PoolSize,
		"HOUT":  c.OutputSize(),
	}
}

// String implements fmt.Stringer.
func (c Config) String() string {
	return fmt.Sprintf("C=%d Hin=%d K=%d P=%d (Hconv=%d Hout=%d)",
		c.Channels, c.InputSize, c.KernelSize, c.PoolSize, c.ConvSize(), c.OutputSize())
}
