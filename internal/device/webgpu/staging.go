//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// stagingClass is a size category of read-back buffers.
type stagingClass int

const (
	smallStaging stagingClass = iota
	mediumStaging
	largeStaging
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPooled       = 16          // Max buffers kept per class.
)

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// stagingPool recycles MapRead|CopyDst buffers used to read device memory
// back to the host. Device buffers of a layer invocation are never pooled.
type stagingPool struct {
	device *wgpu.Device

	mu      sync.Mutex
	classes [3][]pooledBuffer

	hits, misses uint64
}

func newStagingPool(device *wgpu.Device) *stagingPool {
	return &stagingPool{device: device}
}

// acquire returns a buffer of at least size bytes.
func (p *stagingPool) acquire(size uint64) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classOf(size)
	for i, pb := range p.classes[c] {
		if pb.size >= size {
			p.classes[c] = append(p.classes[c][:i], p.classes[c][i+1:]...)
			p.hits++
			return pb.buffer, pb.size
		}
	}

	p.misses++
	buf := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	return buf, size
}

// release returns buf to the pool, or frees it when its class is full.
func (p *stagingPool) release(buf *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classOf(size)
	if len(p.classes[c]) >= maxPooled {
		buf.Release()
		return
	}
	p.classes[c] = append(p.classes[c], pooledBuffer{buffer: buf, size: size})
}

// clear frees every pooled buffer.
func (p *stagingPool) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := range p.classes {
		for _, pb := range p.classes[c] {
			pb.buffer.Release()
		}
		p.classes[c] = nil
	}
}

// stats returns pool hits and misses.
func (p *stagingPool) stats() (hits, misses uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

func classOf(size uint64) stagingClass {
	switch {
	case size < smallThreshold:
		return smallStaging
	case size < mediumThreshold:
		return mediumStaging
	default:
		return largeStaging
	}
}
