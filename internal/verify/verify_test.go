package verify

import (
	"testing"

	"github.com/born-ml/convlayer/internal/cnn"
	"github.com/born-ml/convlayer/internal/loader"
	"github.com/born-ml/convlayer/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = cnn.Config{Channels: 2, InputSize: 8, KernelSize: 3, PoolSize: 2}

func TestVerify_ReferenceMatches(t *testing.T) {
	l, err := loader.Synthetic(testConfig, 7)
	require.NoError(t, err)
	out, err := cnn.Reference(testConfig, l.Input, l.Weights, l.Bias)
	require.NoError(t, err)

	r, err := Verify(testConfig, l.Input, l.Weights, l.Bias, out, Exact())
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, 2*3*3, r.Checked)
	assert.Zero(t, r.MaxAbsDiff)
	assert.Nil(t, r.First)
	assert.Contains(t, r.String(), "18 values match")
}

func TestCompare_Mismatches(t *testing.T) {
	want := tensor.MustNew(testConfig.OutputShape())
	got := want.Clone()
	got.Set(0.5, 1, 2, 0)
	got.Set(1e-6, 0, 0, 1)

	r, err := Compare(testConfig, got, want, DefaultTolerance())
	require.NoError(t, err)
	assert.False(t, r.OK())
	assert.Equal(t, 1, r.Mismatches)
	require.NotNil(t, r.First)
	assert.Equal(t, Mismatch{Channel: 1, Row: 2, Col: 0, Got: 0.5, Want: 0}, *r.First)
	assert.InDelta(t, 0.5, r.MaxAbsDiff, 1e-9)
	assert.InDelta(t, 1e-6, r.ChannelMaxDiff[0], 1e-9)
	assert.InDelta(t, 0.5, r.ChannelMaxDiff[1], 1e-9)
	assert.Contains(t, r.String(), "output[1][2][0]")

	r, err = Compare(testConfig, got, want, Exact())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Mismatches)
	assert.Equal(t, 0, r.First.Channel)
}

func TestCompare_ShapeMismatch(t *testing.T) {
	want := tensor.MustNew(testConfig.OutputShape())
	_, err := Compare(testConfig, tensor.MustNew(tensor.Shape{2, 2, 2}), want, Exact())
	assert.Error(t, err)
	_, err = Compare(testConfig, nil, want, Exact())
	assert.Error(t, err)
}
