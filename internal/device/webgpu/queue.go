//go:build windows

package webgpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Queue records commands and submits them to the WebGPU queue in enqueue
// order. Writes and launches are only encoded; they are submitted together
// by the next ReadBuffer or Finish, which then wait for completion.
type Queue struct {
	dev *Device

	mu        sync.Mutex
	pending   []*wgpu.CommandBuffer
	transient []*wgpu.Buffer    // Upload staging, freed after submission.
	groups    []*wgpu.BindGroup // Bind groups of pending launches.
}

// Compile-time check that Queue implements device.Queue.
var _ device.Queue = (*Queue)(nil)

func (q *Queue) record(cmd *wgpu.CommandBuffer, staging *wgpu.Buffer, group *wgpu.BindGroup) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, cmd)
	if staging != nil {
		q.transient = append(q.transient, staging)
	}
	if group != nil {
		q.groups = append(q.groups, group)
	}
}

// flush submits every pending command in order.
func (q *Queue) flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) > 0 {
		q.dev.wq.Submit(q.pending...)
		q.pending = q.pending[:0]
	}
	for _, b := range q.transient {
		b.Release()
	}
	q.transient = q.transient[:0]
	for _, g := range q.groups {
		g.Release()
	}
	q.groups = q.groups[:0]
}

// Reset drops every recorded command that has not been submitted, together
// with its upload staging buffers and bind groups.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, cmd := range q.pending {
		cmd.Release()
	}
	q.pending = q.pending[:0]
	for _, b := range q.transient {
		b.Release()
	}
	q.transient = q.transient[:0]
	for _, g := range q.groups {
		g.Release()
	}
	q.groups = q.groups[:0]
}

// EnqueueWrite copies src into a staging buffer now and records the
// staging-to-device copy.
func (q *Queue) EnqueueWrite(dst device.Buffer, src []float32) error {
	op := "EnqueueWrite " + labelOf(dst)
	gb, err := q.dev.resolve(dst)
	if err != nil {
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeInvalidMemObject, Err: err}
	}
	if len(src) != gb.Len() {
		return &device.Error{
			Kind: device.KindTransfer,
			Op:   op,
			Code: device.CodeInvalidValue,
			Err:  fmt.Errorf("source has %d elements, buffer holds %d", len(src), gb.Len()),
		}
	}

	data := tensor.Float32Bytes(src)
	size := uint64(len(data))

	staging := q.dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	if staging == nil {
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeOutOfResources, Err: device.ErrOutOfMemory}
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	staging.Unmap()

	encoder := q.dev.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, gb.buf, 0, size)
	q.record(encoder.Finish(nil), staging, nil)
	return nil
}

// EnqueueKernel validates the launch and records one compute pass.
func (q *Queue) EnqueueKernel(k device.Kernel, r device.NDRange, args ...device.Buffer) error {
	gk, ok := k.(*Kernel)
	if !ok || gk == nil || gk.prog.dev != q.dev {
		return &device.Error{
			Kind: device.KindLaunch,
			Op:   "EnqueueKernel",
			Code: device.CodeInvalidValue,
			Err:  errors.New("kernel does not belong to this device"),
		}
	}
	op := "EnqueueKernel " + gk.name
	if gk.prog.released.Load() {
		return &device.Error{Kind: device.KindLaunch, Op: op, Code: device.CodeInvalidValue, Err: device.ErrReleased}
	}
	if len(args) != gk.args {
		return &device.Error{
			Kind: device.KindLaunch,
			Op:   op,
			Code: device.CodeInvalidKernelArgs,
			Err:  fmt.Errorf("%w: got %d, want %d", device.ErrArgCount, len(args), gk.args),
		}
	}
	if err := r.Validate(q.dev.limits); err != nil {
		code := device.CodeInvalidWorkGroup
		for i, limit := range q.dev.limits.MaxWorkItemSizes {
			if limit > 0 && r.Local[i] > limit {
				code = device.CodeInvalidWorkItemSize
			}
		}
		return &device.Error{Kind: device.KindLaunch, Op: op, Code: code, Err: err}
	}

	pipeline, err := gk.pipeline(r.Local)
	if err != nil {
		return &device.Error{Kind: device.KindLaunch, Op: op, Code: device.CodeOutOfResources, Err: err}
	}

	entries := make([]wgpu.BindGroupEntry, len(args))
	for i, a := range args {
		gb, err := q.dev.resolve(a)
		if err != nil {
			return &device.Error{
				Kind: device.KindLaunch,
				Op:   fmt.Sprintf("%s arg %d (%s)", op, i, labelOf(a)),
				Code: device.CodeInvalidMemObject,
				Err:  err,
			}
		}
		//nolint:gosec // G115: binding index and size are non-negative.
		entries[i] = wgpu.BufferBindingEntry(uint32(i), gb.buf, 0, uint64(gb.Size()))
	}

	bindGroup := q.dev.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)

	encoder := q.dev.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(dispatchCounts(r))
	computePass.End()

	q.record(encoder.Finish(nil), nil, bindGroup)
	return nil
}

// ReadBuffer submits all pending work, then copies src to the host once the
// GPU has completed it. If ctx ends first, ctx.Err() is returned and dst is
// left untouched.
func (q *Queue) ReadBuffer(ctx context.Context, src device.Buffer, dst []float32) error {
	op := "ReadBuffer " + labelOf(src)
	gb, err := q.dev.resolve(src)
	if err != nil {
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeInvalidMemObject, Err: err}
	}
	if len(dst) != gb.Len() {
		return &device.Error{
			Kind: device.KindTransfer,
			Op:   op,
			Code: device.CodeInvalidValue,
			Err:  fmt.Errorf("destination has %d elements, buffer holds %d", len(dst), gb.Len()),
		}
	}

	//nolint:gosec // G115: size is positive.
	result, err := q.readBack(ctx, gb.buf, uint64(gb.Size()))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeOutOfResources, Err: err}
	}
	copy(dst, tensor.BytesFloat32(result))
	return nil
}

// Finish submits all pending work and waits for it to complete.
func (q *Queue) Finish(ctx context.Context) error {
	q.flush()

	// Mapping a buffer completes only after all prior submissions.
	marker := q.dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:  4,
	})
	defer marker.Release()

	if _, err := q.readBack(ctx, marker, 4); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &device.Error{Kind: device.KindTransfer, Op: "Finish", Code: device.CodeOutOfResources, Err: err}
	}
	return nil
}

// readBack flushes pending work and copies size bytes of src into host
// memory through a pooled staging buffer.
func (q *Queue) readBack(ctx context.Context, src *wgpu.Buffer, size uint64) ([]byte, error) {
	q.flush()

	staging, stagingSize := q.dev.staging.acquire(size)
	encoder := q.dev.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	q.dev.wq.Submit(encoder.Finish(nil))

	type mapped struct {
		data []byte
		err  error
	}
	done := make(chan mapped, 1)
	go func() {
		defer q.dev.staging.release(staging, stagingSize)

		if err := staging.MapAsync(q.dev.device, wgpu.MapModeRead, 0, size); err != nil {
			done <- mapped{err: fmt.Errorf("failed to map staging buffer: %w", err)}
			return
		}
		mappedPtr := staging.GetMappedRange(0, size)
		//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
		mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
		result := make([]byte, size)
		copy(result, mappedSlice)
		staging.Unmap()
		done <- mapped{data: result}
	}()

	select {
	case m := <-done:
		return m.data, m.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func labelOf(b device.Buffer) string {
	if b == nil {
		return "<nil>"
	}
	return b.Label()
}
