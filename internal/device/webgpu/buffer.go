//go:build windows

package webgpu

import (
	"errors"
	"sync/atomic"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

var errForeignBuffer = errors.New("buffer does not belong to this device")

// Buffer is a storage buffer in GPU memory.
type Buffer struct {
	dev      *Device
	label    string
	access   device.Access
	elems    int
	buf      *wgpu.Buffer
	released atomic.Bool
}

// Label returns the buffer name.
func (b *Buffer) Label() string { return b.label }

// Len returns the number of float32 elements.
func (b *Buffer) Len() int { return b.elems }

// Size returns the size in bytes.
func (b *Buffer) Size() int64 { return int64(b.elems) * 4 }

// Access returns the kernel-side access mode.
func (b *Buffer) Access() device.Access { return b.access }

// Release frees the GPU memory. Idempotent.
func (b *Buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.buf.Release()
	b.dev.free(b.Size())
}

func (d *Device) resolve(buf device.Buffer) (*Buffer, error) {
	gb, ok := buf.(*Buffer)
	if !ok || gb == nil || gb.dev != d {
		return nil, errForeignBuffer
	}
	if gb.released.Load() {
		return nil, device.ErrReleased
	}
	return gb, nil
}
