package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_Strides(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 23, s.Offset(1, 2, 3))
	assert.Equal(t, 4, s.Offset(0, 1, 0))
}

func TestShape_Offset_Panics(t *testing.T) {
	s := Shape{2, 3}
	assert.Panics(t, func() { s.Offset(1) })
	assert.Panics(t, func() { s.Offset(2, 0) })
	assert.Panics(t, func() { s.Offset(0, -1) })
}

func TestShape_EqualClone(t *testing.T) {
	s := Shape{3, 5}
	c := s.Clone()
	assert.True(t, s.Equal(c))
	c[0] = 4
	assert.False(t, s.Equal(c))
	assert.False(t, s.Equal(Shape{3, 5, 1}))
	assert.Error(t, Shape{3, 0}.Validate())
}

func TestHost_AtSet(t *testing.T) {
	h, err := NewHost(Shape{2, 2, 2})
	require.NoError(t, err)

	h.Set(7, 1, 0, 1)
	assert.Equal(t, float32(7), h.At(1, 0, 1))
	assert.Equal(t, float32(7), h.Data()[5])
	assert.Equal(t, 32, h.ByteSize())
	assert.Len(t, h.Bytes(), 32)
}

func TestHost_FromSlice(t *testing.T) {
	_, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)

	data := []float32{1, 2, 3, 4}
	h, err := FromSlice(data, Shape{2, 2})
	require.NoError(t, err)

	clone := h.Clone()
	data[3] = 40
	assert.Equal(t, float32(40), h.At(1, 1))
	assert.Equal(t, float32(4), clone.At(1, 1))
}

func TestBytesRoundTrip(t *testing.T) {
	src := []float32{1.5, -2, 0, 3.25}
	assert.Equal(t, src, BytesFloat32(Float32Bytes(src)))
	assert.Nil(t, Float32Bytes(nil))
	assert.Nil(t, BytesFloat32(nil))
}
