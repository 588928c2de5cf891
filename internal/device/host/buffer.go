package host

import (
	"sync/atomic"

	"github.com/born-ml/convlayer/internal/device"
)

// Buffer is host-device memory.
//
// mem is only touched by the queue worker and kernel goroutines. Commands
// capture mem when they are enqueued, so releasing a buffer while work is in
// flight only returns its accounting; the memory lives until the last
// command referencing it has run.
type Buffer struct {
	dev      *Device
	label    string
	access   device.Access
	mem      []float32
	released atomic.Bool
}

// Label returns the buffer's name.
func (b *Buffer) Label() string { return b.label }

// Len returns the number of float32 elements.
func (b *Buffer) Len() int { return len(b.mem) }

// Size returns the size in bytes.
func (b *Buffer) Size() int64 { return int64(len(b.mem)) * 4 }

// Access returns the kernel-side access mode.
func (b *Buffer) Access() device.Access { return b.access }

// Release returns the buffer's memory to the device. Idempotent.
func (b *Buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.dev.free(b.Size())
}

// resolve checks that buf is a live buffer of d.
func (d *Device) resolve(buf device.Buffer) (*Buffer, error) {
	hb, ok := buf.(*Buffer)
	if !ok || hb == nil || hb.dev != d {
		return nil, errForeignBuffer
	}
	if hb.released.Load() {
		return nil, device.ErrReleased
	}
	return hb, nil
}
