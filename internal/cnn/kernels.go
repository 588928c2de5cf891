package cnn

import (
	"fmt"

	"github.com/born-ml/convlayer/internal/device"
)

// Kernel names inside the layer program.
const (
	ProgramName = "cnn"

	KernelBiasInit    = "get_bias"
	KernelConvolution = "convolution"
	KernelActivation  = "relu"
	KernelPooling     = "max_pooling"
)

// Program returns the layer program. Argument order per kernel:
//
//	get_bias:    intermediate, bias
//	convolution: intermediate, weights, input
//	relu:        intermediate
//	max_pooling: intermediate, output
//
// Every kernel is launched over [channel, row, column] with the column as
// the innermost, stride-1 dimension.
func Program() device.ProgramSource {
	return device.ProgramSource{
		Name: ProgramName,
		Kernels: []device.KernelSource{
			{Name: KernelBiasInit, Args: 2, Func: biasInitKernel, WGSL: biasInitShader},
			{Name: KernelConvolution, Args: 3, Func: convolutionKernel, WGSL: convolutionShader},
			{Name: KernelActivation, Args: 1, Func: reluKernel, WGSL: reluShader},
			{Name: KernelPooling, Args: 2, Func: maxPoolingKernel, WGSL: maxPoolingShader},
		},
	}
}

// dims are the build-time constants as seen by a kernel.
type dims struct {
	c, hin, k, hconv, p, hout int
}

func dimsOf(defs device.Defines) (dims, error) {
	v, err := defs.Require("C", "HIN", "K", "HCONV", "P", "HOUT")
	if err != nil {
		return dims{}, err
	}
	d := dims{c: v[0], hin: v[1], k: v[2], hconv: v[3], p: v[4], hout: v[5]}
	if d.hconv != d.hin-d.k+1 {
		return dims{}, fmt.Errorf("HCONV=%d inconsistent with HIN=%d, K=%d", d.hconv, d.hin, d.k)
	}
	if d.hout*d.p != d.hconv {
		return dims{}, fmt.Errorf("HOUT=%d inconsistent with HCONV=%d, P=%d", d.hout, d.hconv, d.p)
	}
	return d, nil
}

// biasInitKernel: acc[c][i][j] = bias[c].
func biasInitKernel(defs device.Defines) (device.ItemFunc, error) {
	d, err := dimsOf(defs)
	if err != nil {
		return nil, err
	}
	return func(wi device.WorkItem, args [][]float32) {
		acc, bias := args[0], args[1]
		c, i, j := wi.Global[0], wi.Global[1], wi.Global[2]
		acc[(c*d.hconv+i)*d.hconv+j] = bias[c]
	}, nil
}

// convolutionKernel accumulates the K x K correlation over every input
// channel into acc[co][i][j]. The sum is private to the work-item and added
// to the accumulator with a single read-modify-write.
func convolutionKernel(defs device.Defines) (device.ItemFunc, error) {
	d, err := dimsOf(defs)
	if err != nil {
		return nil, err
	}
	return func(wi device.WorkItem, args [][]float32) {
		acc, weight, input := args[0], args[1], args[2]
		co, i, j := wi.Global[0], wi.Global[1], wi.Global[2]

		var sum float32
		for ci := 0; ci < d.c; ci++ {
			wBase := (co*d.c + ci) * d.k * d.k
			inBase := ci * d.hin * d.hin
			for ki := 0; ki < d.k; ki++ {
				row := inBase + (i+ki)*d.hin + j
				wRow := wBase + ki*d.k
				for kj := 0; kj < d.k; kj++ {
					sum += weight[wRow+kj] * input[row+kj]
				}
			}
		}
		acc[(co*d.hconv+i)*d.hconv+j] += sum
	}, nil
}

// reluKernel: acc = max(acc, 0), in place.
func reluKernel(defs device.Defines) (device.ItemFunc, error) {
	d, err := dimsOf(defs)
	if err != nil {
		return nil, err
	}
	return func(wi device.WorkItem, args [][]float32) {
		acc := args[0]
		idx := (wi.Global[0]*d.hconv+wi.Global[1])*d.hconv + wi.Global[2]
		if acc[idx] < 0 {
			acc[idx] = 0
		}
	}, nil
}

// maxPoolingKernel: out[c][oi][oj] = max of the P x P window at (oi*P, oj*P).
func maxPoolingKernel(defs device.Defines) (device.ItemFunc, error) {
	d, err := dimsOf(defs)
	if err != nil {
		return nil, err
	}
	return func(wi device.WorkItem, args [][]float32) {
		acc, out := args[0], args[1]
		c, oi, oj := wi.Global[0], wi.Global[1], wi.Global[2]

		base := (c*d.hconv+oi*d.p)*d.hconv + oj*d.p
		best := acc[base]
		for pi := 0; pi < d.p; pi++ {
			row := base + pi*d.hconv
			for pj := 0; pj < d.p; pj++ {
				if v := acc[row+pj]; v > best {
					best = v
				}
			}
		}
		out[(c*d.hout+oi)*d.hout+oj] = best
	}, nil
}
