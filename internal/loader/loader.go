// Package loader produces the host tensors a layer runs on.
package loader

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/convlayer/internal/cnn"
	"github.com/born-ml/convlayer/internal/tensor"
	"gonum.org/v1/gonum/stat/distuv"
)

// Layer holds the host inputs of one invocation.
type Layer struct {
	Input   *tensor.Host // [C, Hin, Hin]
	Weights *tensor.Host // [C, C, K, K]
	Bias    *tensor.Host // [C]
}

// Synthetic returns reproducible random layer data for cfg. Inputs are drawn
// from U[0, 1), weights from U[-s, s) with s = 1/sqrt(C*K*K) and biases
// from U[-0.1, 0.1). The same seed always yields the same tensors.
func Synthetic(cfg cnn.Config, seed uint64) (*Layer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(seed, seed^0x5851f42d4c957f2d)

	l := &Layer{
		Input:   tensor.MustNew(cfg.InputShape()),
		Weights: tensor.MustNew(cfg.WeightShape()),
		Bias:    tensor.MustNew(cfg.BiasShape()),
	}

	scale := 1 / math.Sqrt(float64(cfg.Channels*cfg.KernelSize*cfg.KernelSize))
	Fill(l.Input, distuv.Uniform{Min: 0, Max: 1, Src: src})
	Fill(l.Weights, distuv.Uniform{Min: -scale, Max: scale, Src: src})
	Fill(l.Bias, distuv.Uniform{Min: -0.1, Max: 0.1, Src: src})
	return l, nil
}

// Fill overwrites every element of h with a draw from dist.
func Fill(h *tensor.Host, dist distuv.Rander) {
	data := h.Data()
	for i := range data {
		data[i] = float32(dist.Rand())
	}
}

// FromSlices wraps caller-owned data as a Layer after checking each slice
// against the shapes cfg requires. The slices are not copied.
func FromSlices(cfg cnn.Config, input, weights, bias []float32) (*Layer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	in, err := tensor.FromSlice(input, cfg.InputShape())
	if err != nil {
		return nil, fmt.Errorf("loader: input: %w", err)
	}
	w, err := tensor.FromSlice(weights, cfg.WeightShape())
	if err != nil {
		return nil, fmt.Errorf("loader: weights: %w", err)
	}
	b, err := tensor.FromSlice(bias, cfg.BiasShape())
	if err != nil {
		return nil, fmt.Errorf("loader: bias: %w", err)
	}
	return &Layer{Input: in, Weights: w, Bias: b}, nil
}
