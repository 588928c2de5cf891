// Package verify checks a device result against the sequential host
// reference.
package verify

import (
	"fmt"
	"math"

	"github.com/born-ml/convlayer/internal/cnn"
	"github.com/born-ml/convlayer/internal/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Tolerance bounds the accepted difference per element. A value passes when
// it is within Abs or within Rel of the reference.
type Tolerance struct {
	Abs float64
	Rel float64
}

// DefaultTolerance accepts float32 rounding differences from a device that
// sums in a different order than the reference.
func DefaultTolerance() Tolerance {
	return Tolerance{Abs: 1e-4, Rel: 1e-4}
}

// Exact accepts only bit-identical results.
func Exact() Tolerance {
	return Tolerance{}
}

// Mismatch is one output element outside tolerance.
type Mismatch struct {
	Channel, Row, Col int
	Got, Want         float32
}

// String implements fmt.Stringer.
func (m Mismatch) String() string {
	return fmt.Sprintf("output[%d][%d][%d] = %g, want %g", m.Channel, m.Row, m.Col, m.Got, m.Want)
}

// Report summarizes a comparison.
type Report struct {
	Checked    int
	Mismatches int
	MaxAbsDiff float64
	// ChannelMaxDiff is the largest absolute difference within each output
	// channel.
	ChannelMaxDiff []float64
	First          *Mismatch
}

// OK reports whether every element was within tolerance.
func (r *Report) OK() bool {
	return r.Mismatches == 0
}

// String implements fmt.Stringer.
func (r *Report) String() string {
	if r.OK() {
		return fmt.Sprintf("%d values match (max abs diff %.3g)", r.Checked, r.MaxAbsDiff)
	}
	return fmt.Sprintf("%d of %d values differ (max abs diff %.3g), first: %v",
		r.Mismatches, r.Checked, r.MaxAbsDiff, r.First)
}

// Verify recomputes the layer on the host and compares out against it.
func Verify(cfg cnn.Config, input, weights, bias, out *tensor.Host, tol Tolerance) (*Report, error) {
	want, err := cnn.Reference(cfg, input, weights, bias)
	if err != nil {
		return nil, err
	}
	return Compare(cfg, out, want, tol)
}

// Compare checks got against want element by element.
func Compare(cfg cnn.Config, got, want *tensor.Host, tol Tolerance) (*Report, error) {
	shape := cfg.OutputShape()
	if got == nil || !got.Shape().Equal(shape) {
		return nil, fmt.Errorf("verify: result shape does not match %v", shape)
	}
	if !want.Shape().Equal(shape) {
		return nil, fmt.Errorf("verify: reference shape does not match %v", shape)
	}

	ho := cfg.OutputSize()
	plane := ho * ho
	r := &Report{
		Checked:        got.NumElements(),
		ChannelMaxDiff: make([]float64, cfg.Channels),
	}

	g64 := make([]float64, plane)
	w64 := make([]float64, plane)
	for c := 0; c < cfg.Channels; c++ {
		gp := got.Data()[c*plane : (c+1)*plane]
		wp := want.Data()[c*plane : (c+1)*plane]
		for i := range gp {
			g64[i], w64[i] = float64(gp[i]), float64(wp[i])
			if !scalar.EqualWithinAbsOrRel(g64[i], w64[i], tol.Abs, tol.Rel) {
				r.Mismatches++
				if r.First == nil {
					r.First = &Mismatch{Channel: c, Row: i / ho, Col: i % ho, Got: gp[i], Want: wp[i]}
				}
			}
		}

		var diff mat.Dense
		diff.Sub(mat.NewDense(ho, ho, g64), mat.NewDense(ho, ho, w64))
		diff.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, &diff)
		r.ChannelMaxDiff[c] = mat.Max(&diff)
	}
	r.MaxAbsDiff = floats.Max(r.ChannelMaxDiff)
	return r, nil
}
