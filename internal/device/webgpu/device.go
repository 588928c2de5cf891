//go:build windows

package webgpu

import (
	"fmt"
	"sync"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Default WebGPU compute limits, indexed [channel, row, column] like
// device.NDRange (z, y, x).
var defaultLimits = device.Limits{
	MaxWorkGroupSize: 256,
	MaxWorkItemSizes: [3]int{64, 256, 256},
	MaxAllocBytes:    128 << 20,
}

// Device is a WebGPU adapter with its device and queue.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	wq       *wgpu.Queue

	info    device.Info
	limits  device.Limits
	queue   *Queue
	staging *stagingPool

	mu        sync.Mutex
	allocated int64
	live      int
	released  bool
}

// Compile-time check that Device implements device.Device.
var _ device.Device = (*Device)(nil)

// Open requests a high-performance adapter and its device. The adapter is
// rejected with a platform error when pred does not accept it. A nil pred
// accepts any adapter.
func Open(pred device.Predicate) (d *Device, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = &device.Error{
				Kind: device.KindPlatform,
				Op:   "Open",
				Code: device.CodeDeviceNotFound,
				Err:  fmt.Errorf("%w: native library not available: %v", device.ErrNoDevice, r),
			}
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, &device.Error{
			Kind: device.KindPlatform,
			Op:   "RequestAdapter",
			Code: device.CodeDeviceNotFound,
			Err:  fmt.Errorf("%w: %w", device.ErrNoDevice, adapterErr),
		}
	}

	adapterInfo := adapter.GetInfo()
	info := device.Info{
		Name:    adapterInfo.Device,
		Vendor:  adapterInfo.Vendor,
		Backend: "webgpu",
		Type:    device.TypeGPU,
	}
	if info.Name == "" {
		info.Name = adapterInfo.Description
	}

	if pred == nil {
		pred = device.Any()
	}
	if !pred(info) {
		adapter.Release()
		instance.Release()
		return nil, &device.Error{
			Kind: device.KindPlatform,
			Op:   "Open",
			Code: device.CodeDeviceNotFound,
			Err:  fmt.Errorf("%w: adapter %s rejected", device.ErrNoDevice, info),
		}
	}

	dev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, &device.Error{
			Kind: device.KindPlatform,
			Op:   "RequestDevice",
			Code: device.CodeDeviceNotFound,
			Err:  deviceErr,
		}
	}

	wq := dev.GetQueue()
	if wq == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, &device.Error{
			Kind: device.KindPlatform,
			Op:   "GetQueue",
			Code: device.CodeDeviceNotFound,
			Err:  device.ErrNoDevice,
		}
	}

	d = &Device{
		instance: instance,
		adapter:  adapter,
		device:   dev,
		wq:       wq,
		info:     info,
		limits:   defaultLimits,
		staging:  newStagingPool(dev),
	}
	d.queue = &Queue{dev: d}
	return d, nil
}

// IsAvailable reports whether a WebGPU adapter can be obtained.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Info describes the adapter.
func (d *Device) Info() device.Info {
	return d.info
}

// Limits returns the compute limits launches are validated against.
func (d *Device) Limits() device.Limits {
	return d.limits
}

// Queue returns the device's in-order queue.
func (d *Device) Queue() device.Queue {
	return d.queue
}

// CreateBuffer allocates a storage buffer of elems float32 values.
func (d *Device) CreateBuffer(label string, elems int, access device.Access) (buf device.Buffer, err error) {
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
	if limit := d.limits.MaxAllocBytes; limit > 0 && size > limit {
		return nil, &device.Error{
			Kind: device.KindAllocation,
			Op:   op,
			Code: device.CodeMemAllocFailure,
			Err:  fmt.Errorf("%w: %d bytes exceeds max binding size %d", device.ErrOutOfMemory, size, limit),
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, &device.Error{Kind: device.KindAllocation, Op: op, Code: device.CodeInvalidValue, Err: device.ErrReleased}
	}

	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = &device.Error{
				Kind: device.KindAllocation,
				Op:   op,
				Code: device.CodeMemAllocFailure,
				Err:  fmt.Errorf("%w: %v", device.ErrOutOfMemory, r),
			}
		}
	}()

	//nolint:gosec // G115: size is positive.
	gb := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  uint64(size),
	})
	if gb == nil {
		return nil, &device.Error{Kind: device.KindAllocation, Op: op, Code: device.CodeMemAllocFailure, Err: device.ErrOutOfMemory}
	}

	d.allocated += size
	d.live++
	return &Buffer{dev: d, label: label, access: access, elems: elems, buf: gb}, nil
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

// StagingStats returns how often read-back staging buffers were reused.
func (d *Device) StagingStats() (hits, misses uint64) {
	return d.staging.stats()
}

func (d *Device) free(size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocated -= size
	d.live--
}

// Release submits pending work and releases every WebGPU object.
// Buffers and programs must not be used afterwards.
func (d *Device) Release() {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return
	}
	d.released = true
	d.mu.Unlock()

	d.queue.flush()
	d.staging.clear()

	if d.wq != nil {
		d.wq.Release()
		d.wq = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
