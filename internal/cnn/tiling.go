package cnn

import (
	"errors"
	"fmt"

	"github.com/born-ml/convlayer/internal/device"
)

// ErrBadTiling is returned for work-group shapes that do not evenly divide a
// stage's launch extent or exceed device limits.
var ErrBadTiling = errors.New("cnn: invalid tiling")

// Preferred innermost tile widths. Actual widths are the largest divisor of
// the stage extent not above these.
const (
	elementwiseWidth = 32
	poolingWidth     = 16
	convolutionRows  = 8
)

// Stage is one of the four kernels of the layer.
type Stage int

// Pipeline stages in execution order.
const (
	StageBiasInit Stage = iota
	StageConvolution
	StageActivation
	StagePooling
)

// String returns the stage name used in diagnostics.
func (s Stage) String() string {
	switch s {
	case StageBiasInit:
		return "bias-init"
	case StageConvolution:
		return "convolution"
	case StageActivation:
		return "activation"
	case StagePooling:
		return "pooling"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Kernel returns the program kernel the stage launches.
func (s Stage) Kernel() string {
	switch s {
	case StageBiasInit:
		return KernelBiasInit
	case StageConvolution:
		return KernelConvolution
	case StageActivation:
		return KernelActivation
	case StagePooling:
		return KernelPooling
	default:
		return ""
	}
}

// Global returns the launch extent of s: [C, Hconv, Hconv] for the first
// three stages and [C, Hout, Hout] for pooling.
func (s Stage) Global(cfg Config) [3]int {
	if s == StagePooling {
		return [3]int{cfg.Channels, cfg.OutputSize(), cfg.OutputSize()}
	}
	return [3]int{cfg.Channels, cfg.ConvSize(), cfg.ConvSize()}
}

var stages = [...]Stage{StageBiasInit, StageConvolution, StageActivation, StagePooling}

// Tiling holds the work-group shape of every stage, [channel, row, column].
type Tiling [4][3]int

// Local returns the work-group shape of s.
func (t Tiling) Local(s Stage) [3]int {
	return t[s]
}

// Range returns the launch range of s.
func (t Tiling) Range(s Stage, cfg Config) device.NDRange {
	return device.NDRange{Global: s.Global(cfg), Local: t[s]}
}

// Validate checks that every stage's tile divides its extent and fits the
// device.
func (t Tiling) Validate(cfg Config, l device.Limits) error {
	for _, s := range stages {
		if err := t.Range(s, cfg).Validate(l); err != nil {
			return fmt.Errorf("%w: %s stage: %w", ErrBadTiling, s, err)
		}
	}
	return nil
}

// PlanTiling derives per-stage work-group shapes from the layer dimensions
// and device limits.
//
// Elementwise stages (bias-init, activation) use a single row of up to 32
// columns so writes stay contiguous. Pooling uses up to 16 columns of its
// own, smaller extent. Convolution stacks up to 8 rows on top of its columns
// so neighbouring rows of a group reuse the same weight slice and
// overlapping input windows.
//
// A tile covers one channel unless its rows and columns hold fewer items
// than the stage's preferred width. That happens when a side has no useful
// divisor, e.g. a prime Hconv of 37 gives 1x1 tiles; the tile then spans
// several channels instead, so groups stay full without partial groups.
func PlanTiling(cfg Config, l device.Limits) (Tiling, error) {
	if err := cfg.Validate(); err != nil {
		return Tiling{}, err
	}

	maxGroup := l.MaxWorkGroupSize
	if maxGroup <= 0 {
		maxGroup = 256
	}
	cols := capDim(l, 2, maxGroup)
	rows := capDim(l, 1, maxGroup)
	chans := capDim(l, 0, maxGroup)

	hc, ho := cfg.ConvSize(), cfg.OutputSize()
	fill := func(tile [3]int, width int) [3]int {
		return fillChannels(tile, cfg.Channels, width, min(chans, maxGroup/(tile[1]*tile[2])))
	}

	elementwise := fill([3]int{1, 1, largestDivisor(hc, min(elementwiseWidth, cols))}, elementwiseWidth)

	convX := largestDivisor(hc, min(elementwiseWidth, cols))
	convY := largestDivisor(hc, min(convolutionRows, rows, maxGroup/convX))

	var t Tiling
	t[StageBiasInit] = elementwise
	t[StageConvolution] = fill([3]int{1, convY, convX}, elementwiseWidth)
	t[StageActivation] = elementwise
	t[StagePooling] = fill([3]int{1, 1, largestDivisor(ho, min(poolingWidth, cols))}, poolingWidth)

	if err := t.Validate(cfg, l); err != nil {
		return Tiling{}, err
	}
	return t, nil
}

// fillChannels widens tile across channels when its rows and columns hold
// fewer than width items. The channel count stays a divisor of c and at most
// limit.
func fillChannels(tile [3]int, c, width, limit int) [3]int {
	area := tile[1] * tile[2]
	if area >= width {
		return tile
	}
	want := (width + area - 1) / area
	tile[0] = largestDivisor(c, min(want, limit))
	return tile
}

// capDim returns the per-dimension limit, bounded by the group limit.
func capDim(l device.Limits, d, maxGroup int) int {
	if lim := l.MaxWorkItemSizes[d]; lim > 0 && lim < maxGroup {
		return lim
	}
	return maxGroup
}

// largestDivisor returns the largest divisor of n that is at most limit.
func largestDivisor(n, limit int) int {
	for d := min(n, limit); d > 1; d-- {
		if n%d == 0 {
			return d
		}
	}
	return 1
}
