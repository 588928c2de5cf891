package cnn

import (
	"errors"
	"fmt"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/tensor"
)

// ErrShapeMismatch is returned when a host tensor does not match the layer.
var ErrShapeMismatch = errors.New("cnn: tensor shape mismatch")

// BufferSet owns the device buffers of one invocation.
type BufferSet struct {
	Input        device.Buffer // [C, Hin, Hin], read-only.
	Weights      device.Buffer // [C, C, K, K], read-only.
	Bias         device.Buffer // [C], read-only.
	Intermediate device.Buffer // [C, Hconv, Hconv], read-write, never read by the host.
	Output       device.Buffer // [C, Hout, Hout], write-only.

	cfg Config
}

// NewBufferSet allocates every buffer of the layer on dev. If any allocation
// fails the buffers already created are released.
func NewBufferSet(dev device.Device, cfg Config) (*BufferSet, error) {
	bs := &BufferSet{cfg: cfg}
	allocs := []struct {
		dst    *device.Buffer
		label  string
		shape  tensor.Shape
		access device.Access
	}{
		{&bs.Output, "output", cfg.OutputShape(), device.WriteOnly},
		{&bs.Input, "input", cfg.InputShape(), device.ReadOnly},
		{&bs.Weights, "weights", cfg.WeightShape(), device.ReadOnly},
		{&bs.Bias, "bias", cfg.BiasShape(), device.ReadOnly},
		{&bs.Intermediate, "intermediate", cfg.ConvShape(), device.ReadWrite},
	}

	for _, a := range allocs {
		buf, err := dev.CreateBuffer(a.label, a.shape.NumElements(), a.access)
		if err != nil {
			bs.Release()
			return nil, err
		}
		*a.dst = buf
	}
	return bs, nil
}

// Upload checks the host tensors against the layer and enqueues their
// non-blocking transfers. Kernels enqueued afterwards on q observe the data.
func (bs *BufferSet) Upload(q device.Queue, input, weights, bias *tensor.Host) error {
	if err := checkShapes(bs.cfg, input, weights, bias); err != nil {
		return err
	}
	for _, u := range []struct {
		dst device.Buffer
		src *tensor.Host
	}{
		{bs.Input, input},
		{bs.Weights, weights},
		{bs.Bias, bias},
	} {
		if err := q.EnqueueWrite(u.dst, u.src.Data()); err != nil {
			return err
		}
	}
	return nil
}

func checkShapes(cfg Config, input, weights, bias *tensor.Host) error {
	for _, c := range []struct {
		name string
		src  *tensor.Host
		want tensor.Shape
	}{
		{"input", input, cfg.InputShape()},
		{"weights", weights, cfg.WeightShape()},
		{"bias", bias, cfg.BiasShape()},
	} {
		if c.src == nil {
			return fmt.Errorf("%w: %s is nil", ErrShapeMismatch, c.name)
		}
		if !c.src.Shape().Equal(c.want) {
			return fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, c.name, c.src.Shape(), c.want)
		}
	}
	return nil
}

// Release releases every allocated buffer. Safe to call more than once.
func (bs *BufferSet) Release() {
	for _, b := range []*device.Buffer{&bs.Input, &bs.Weights, &bs.Bias, &bs.Intermediate, &bs.Output} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
}
