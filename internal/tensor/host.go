package tensor

import (
	"fmt"
	"unsafe"
)

// Host is a dense, row-major float32 tensor living in host memory.
//
// A Host tensor is never shared with a device: transfers copy its contents
// across the boundary, ownership stays with the caller.
type Host struct {
	shape Shape
	data  []float32
}

// NewHost allocates a zero-filled host tensor.
func NewHost(shape Shape) (*Host, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Host{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// FromSlice wraps data as a host tensor of the given shape.
// The slice is used directly, not copied.
func FromSlice(data []float32, shape Shape) (*Host, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Host{shape: shape.Clone(), data: data}, nil
}

// MustNew is like NewHost but panics on error. Intended for fixtures.
func MustNew(shape Shape) *Host {
	h, err := NewHost(shape)
	if err != nil {
		panic(err)
	}
	return h
}

// Shape returns the tensor's shape.
func (h *Host) Shape() Shape {
	return h.shape
}

// NumElements returns the total number of elements.
func (h *Host) NumElements() int {
	return len(h.data)
}

// ByteSize returns the total memory size in bytes.
func (h *Host) ByteSize() int {
	return len(h.data) * 4
}

// Data returns the backing slice.
func (h *Host) Data() []float32 {
	return h.data
}

// At returns the element at idx.
func (h *Host) At(idx ...int) float32 {
	return h.data[h.shape.Offset(idx...)]
}

// Set stores v at idx.
func (h *Host) Set(v float32, idx ...int) {
	h.data[h.shape.Offset(idx...)] = v
}

// Bytes returns a little-endian byte view of the data without copying.
func (h *Host) Bytes() []byte {
	return Float32Bytes(h.data)
}

// Clone returns a deep copy.
func (h *Host) Clone() *Host {
	data := make([]float32, len(h.data))
	copy(data, h.data)
	return &Host{shape: h.shape.Clone(), data: data}
}

// Float32Bytes reinterprets a float32 slice as bytes.
func Float32Bytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion, length derived from len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

// BytesFloat32 reinterprets a byte slice as float32 values.
// len(data) must be a multiple of 4.
func BytesFloat32(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion, length derived from len(data)
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}
