package loader

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/born-ml/convlayer/internal/cnn"
	"github.com/born-ml/convlayer/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

var testConfig = cnn.Config{Channels: 4, InputSize: 9, KernelSize: 3, PoolSize: 7}

func TestSynthetic_Shapes(t *testing.T) {
	l, err := Synthetic(testConfig, 1)
	require.NoError(t, err)

	assert.True(t, l.Input.Shape().Equal(testConfig.InputShape()))
	assert.True(t, l.Weights.Shape().Equal(testConfig.WeightShape()))
	assert.True(t, l.Bias.Shape().Equal(testConfig.BiasShape()))
}

func TestSynthetic_Ranges(t *testing.T) {
	l, err := Synthetic(testConfig, 42)
	require.NoError(t, err)

	for _, v := range l.Input.Data() {
		assert.True(t, v >= 0 && v <= 1, "input %v out of range", v)
	}
	s := float32(1 / math.Sqrt(4*3*3))
	for _, v := range l.Weights.Data() {
		assert.True(t, v >= -s && v <= s, "weight %v out of range", v)
	}
	for _, v := range l.Bias.Data() {
		assert.True(t, v >= -0.1 && v <= 0.1, "bias %v out of range", v)
	}
}

func TestSynthetic_Reproducible(t *testing.T) {
	a, err := Synthetic(testConfig, 5)
	require.NoError(t, err)
	b, err := Synthetic(testConfig, 5)
	require.NoError(t, err)
	c, err := Synthetic(testConfig, 6)
	require.NoError(t, err)

	assert.Equal(t, a.Input.Data(), b.Input.Data())
	assert.Equal(t, a.Weights.Data(), b.Weights.Data())
	assert.Equal(t, a.Bias.Data(), b.Bias.Data())
	assert.NotEqual(t, a.Input.Data(), c.Input.Data())
}

func TestSynthetic_InvalidConfig(t *testing.T) {
	_, err := Synthetic(cnn.Config{Channels: 1, InputSize: 4, KernelSize: 3, PoolSize: 3}, 1)
	assert.ErrorIs(t, err, cnn.ErrInvalidConfig)
}

func TestFromSlices(t *testing.T) {
	cfg := cnn.Config{Channels: 1, InputSize: 4, KernelSize: 3, PoolSize: 2}

	in := make([]float32, 16)
	w := make([]float32, 9)
	b := []float32{0.5}
	l, err := FromSlices(cfg, in, w, b)
	require.NoError(t, err)
	in[0] = 3
	assert.Equal(t, float32(3), l.Input.At(0, 0, 0))

	_, err = FromSlices(cfg, in, w[:8], b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loader: weights")
}

func TestFill_AnyDistribution(t *testing.T) {
	h := tensor.MustNew(tensor.Shape{4, 64})

	Fill(h, distuv.Bernoulli{P: 1, Src: rand.NewPCG(1, 2)})
	for _, v := range h.Data() {
		assert.Equal(t, float32(1), v)
	}

	Fill(h, distuv.Normal{Mu: 3, Sigma: 0.5, Src: rand.NewPCG(1, 2)})
	for _, v := range h.Data() {
		assert.InDelta(t, 3, v, 10*0.5)
	}
}
