// Package host implements a software accelerator that runs kernels on the
// host CPU.
//
// It follows the same contract as a real device: buffers are private memory
// reachable only through the queue, the queue is strictly in-order and
// drained by a single worker goroutine, and a launch fans its work-groups
// out over a bounded pool of goroutines. Items inside one work-group run
// sequentially.
package host

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/parallel"
)

// Config controls the host device.
type Config struct {
	Name      string
	Workers   parallel.Config
	Limits    device.Limits
	QueueSize int // Commands buffered before EnqueueXxx blocks.
}

// DefaultConfig returns a device sized to the machine.
func DefaultConfig() Config {
	return Config{
		Name:    "host",
		Workers: parallel.DefaultConfig(),
		Limits: device.Limits{
			MaxWorkGroupSize: 1024,
			MaxWorkItemSizes: [3]int{1024, 1024, 1024},
			MaxAllocBytes:    1 << 30,
			GlobalMemBytes:   4 << 30,
			ComputeUnits:     runtime.NumCPU(),
		},
		QueueSize: 64,
	}
}

// Device is the host accelerator.
type Device struct {
	cfg   Config
	queue *Queue

	mu        sync.Mutex
	allocated int64
	live      int
	released  bool
}

// Compile-time check that Device implements device.Device.
var _ device.Device = (*Device)(nil)

// New creates a host device and starts its queue worker.
func New(cfg Config) *Device {
	if cfg.Name == "" {
		cfg.Name = "host"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	d := &Device{cfg: cfg}
	d.queue = newQueue(d, cfg.QueueSize)
	return d
}

// Info describes the device.
func (d *Device) Info() device.Info {
	return device.Info{
		Name:    d.cfg.Name,
		Vendor:  "Go",
		Backend: "host",
		Type:    device.TypeCPU,
	}
}

// Limits returns the configured limits.
func (d *Device) Limits() device.Limits {
	return d.cfg.Limits
}

// Queue returns the device's in-order queue.
func (d *Device) Queue() device.Queue {
	return d.queue
}

// CreateBuffer allocates elems float32 values of device memory.
func (d *Device) CreateBuffer(label string, elems int, access device.Access) (device.Buffer, error) {
	op := "CreateBuffer " + label
	if elems <= 0 {
		return nil, &device.Error{
			Kind: device.KindAllocation,
			Op:   op,
			Code: device.CodeInvalidBufferSize,
			Err:  fmt.Errorf("invalid element count %d", elems),
		}
	}
	size := int64(elems) * 4

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, &device.Error{Kind: device.KindAllocation, Op: op, Code: device.CodeInvalidValue, Err: device.ErrReleased}
	}
	if limit := d.cfg.Limits.MaxAllocBytes; limit > 0 && size > limit {
		return nil, &device.Error{
			Kind: device.KindAllocation,
			Op:   op,
			Code: device.CodeMemAllocFailure,
			Err:  fmt.Errorf("%w: %d bytes exceeds max allocation %d", device.ErrOutOfMemory, size, limit),
		}
	}
	if total := d.cfg.Limits.GlobalMemBytes; total > 0 && d.allocated+size > total {
		return nil, &device.Error{
			Kind: device.KindAllocation,
			Op:   op,
			Code: device.CodeMemAllocFailure,
			Err: fmt.Errorf("%w: %d bytes requested, %d of %d in use",
				device.ErrOutOfMemory, size, d.allocated, total),
		}
	}

	d.allocated += size
	d.live++
	return &Buffer{
		dev:    d,
		label:  label,
		access: access,
		mem:    make([]float32, elems),
	}, nil
}

// Allocated returns the bytes currently held by live buffers.
func (d *Device) Allocated() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// LiveBuffers returns the number of buffers not yet released.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *Device) free(size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocated -= size
	d.live--
}

// Release drains the queue and stops its worker.
// Buffers and programs must not be used afterwards.
func (d *Device) Release() {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return
	}
	d.released = true
	d.mu.Unlock()

	d.queue.close()
}
