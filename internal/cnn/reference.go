package cnn

import (
	"github.com/born-ml/convlayer/internal/tensor"
)

// Reference computes the layer sequentially on the host. It sums in the same
// order as the device kernels, so a correct device produces bit-identical
// results.
func Reference(cfg Config, input, weights, bias *tensor.Host) (*tensor.Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkShapes(cfg, input, weights, bias); err != nil {
		return nil, err
	}

	acc := BiasInit(cfg, bias)
	Convolve(cfg, acc, input, weights)
	ReLU(acc)
	return MaxPool(cfg, acc), nil
}

// BiasInit returns the [C, Hconv, Hconv] accumulator filled with bias[c] on
// every position of channel c.
func BiasInit(cfg Config, bias *tensor.Host) *tensor.Host {
	acc := tensor.MustNew(cfg.ConvShape())
	hc := cfg.ConvSize()
	data, b := acc.Data(), bias.Data()
	for c := 0; c < cfg.Channels; c++ {
		plane := data[c*hc*hc : (c+1)*hc*hc]
		for i := range plane {
			plane[i] = b[c]
		}
	}
	return acc
}

// Convolve adds the valid convolution of input with weights to acc.
func Convolve(cfg Config, acc, input, weights *tensor.Host) {
	c, hin, k, hc := cfg.Channels, cfg.InputSize, cfg.KernelSize, cfg.ConvSize()
	a, in, w := acc.Data(), input.Data(), weights.Data()

	for co := 0; co < c; co++ {
		for i := 0; i < hc; i++ {
			for j := 0; j < hc; j++ {
				var sum float32
				for ci := 0; ci < c; ci++ {
					wBase := (co*c + ci) * k * k
					inBase := ci * hin * hin
					for ki := 0; ki < k; ki++ {
						row := inBase + (i+ki)*hin + j
						wRow := wBase + ki*k
						for kj := 0; kj < k; kj++ {
							sum += w[wRow+kj] * in[row+kj]
						}
					}
				}
				a[(co*hc+i)*hc+j] += sum
			}
		}
	}
}

// ReLU clamps every element of t to be non-negative, in place.
func ReLU(t *tensor.Host) {
	data := t.Data()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
}

// MaxPool reduces disjoint P x P windows of acc into a new [C, Hout, Hout]
// tensor.
func MaxPool(cfg Config, acc *tensor.Host) *tensor.Host {
	out := tensor.MustNew(cfg.OutputShape())
	hc, ho, p := cfg.ConvSize(), cfg.OutputSize(), cfg.PoolSize
	a, o := acc.Data(), out.Data()

	for c := 0; c < cfg.Channels; c++ {
		for oi := 0; oi < ho; oi++ {
			for oj := 0; oj < ho; oj++ {
				base := (c*hc+oi*p)*hc + oj*p
				best := a[base]
				for pi := 0; pi < p; pi++ {
					for pj := 0; pj < p; pj++ {
						if v := a[base+pi*hc+pj]; v > best {
							best = v
						}
					}
				}
				o[(c*ho+oi)*ho+oj] = best
			}
		}
	}
	return out
}
