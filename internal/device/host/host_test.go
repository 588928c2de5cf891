package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testProgram has a kernel that adds ADD to every element of its single
// argument, and one that panics on a chosen element.
func testProgram() device.ProgramSource {
	return device.ProgramSource{
		Name: "test",
		Kernels: []device.KernelSource{
			{
				Name: "add_const",
				Args: 1,
				Func: func(defs device.Defines) (device.ItemFunc, error) {
					v, err := defs.Get("ADD")
					if err != nil {
						return nil, err
					}
					return func(wi device.WorkItem, args [][]float32) {
						args[0][wi.Global[2]] += float32(v)
					}, nil
				},
			},
			{
				Name: "fault",
				Args: 1,
				Func: func(device.Defines) (device.ItemFunc, error) {
					return func(wi device.WorkItem, args [][]float32) {
						if wi.Global[2] == 3 {
							panic("bad index")
						}
					}, nil
				},
			},
		},
	}
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	cfg.Limits.MaxWorkGroupSize = 64
	cfg.Limits.MaxWorkItemSizes = [3]int{64, 64, 64}
	cfg.Limits.MaxAllocBytes = 1024
	cfg.Limits.GlobalMemBytes = 2048
	d := New(cfg)
	t.Cleanup(d.Release)
	return d
}

func TestDevice_Info(t *testing.T) {
	d := newTestDevice(t)

	info := d.Info()
	assert.Equal(t, device.TypeCPU, info.Type)
	assert.Equal(t, "host", info.Name)
	assert.True(t, device.VendorPrefix("go")(info))
}

func TestCreateBuffer_Limits(t *testing.T) {
	d := newTestDevice(t)

	_, err := d.CreateBuffer("too-big", 257, device.ReadWrite)
	require.ErrorIs(t, err, device.ErrOutOfMemory)
	assert.Equal(t, device.KindAllocation, device.KindOf(err))
	assert.Contains(t, err.Error(), "too-big")

	a, err := d.CreateBuffer("a", 256, device.ReadWrite)
	require.NoError(t, err)
	b, err := d.CreateBuffer("b", 256, device.ReadWrite)
	require.NoError(t, err)

	_, err = d.CreateBuffer("c", 1, device.ReadWrite)
	require.ErrorIs(t, err, device.ErrOutOfMemory, "global memory exhausted")

	assert.Equal(t, int64(2048), d.Allocated())
	a.Release()
	a.Release()
	assert.Equal(t, int64(1024), d.Allocated())
	assert.Equal(t, 1, d.LiveBuffers())
	b.Release()
	assert.Zero(t, d.LiveBuffers())

	_, err = d.CreateBuffer("empty", 0, device.ReadWrite)
	assert.Equal(t, device.KindAllocation, device.KindOf(err))
}

func TestQueue_WriteKernelRead(t *testing.T) {
	d := newTestDevice(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 8, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	prog, err := d.BuildProgram(testProgram(), device.Defines{"ADD": 10})
	require.NoError(t, err)
	defer prog.Release()
	k, err := prog.Kernel("add_const")
	require.NoError(t, err)

	src := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	require.NoError(t, q.EnqueueWrite(buf, src))
	// The write was snapshotted; mutating src must not leak into the device.
	src[0] = 100

	r := device.NDRange{Global: [3]int{1, 1, 8}, Local: [3]int{1, 1, 4}}
	require.NoError(t, q.EnqueueKernel(k, r, buf))
	require.NoError(t, q.EnqueueKernel(k, r, buf))

	out := make([]float32, 8)
	require.NoError(t, q.ReadBuffer(context.Background(), buf, out))
	assert.Equal(t, []float32{20, 21, 22, 23, 24, 25, 26, 27}, out)
}

func TestQueue_InOrder(t *testing.T) {
	d := newTestDevice(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 4, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	// Each write overwrites the previous one; only the last may be visible.
	for i := 0; i < 50; i++ {
		v := float32(i)
		require.NoError(t, q.EnqueueWrite(buf, []float32{v, v, v, v}))
	}
	out := make([]float32, 4)
	require.NoError(t, q.ReadBuffer(context.Background(), buf, out))
	assert.Equal(t, []float32{49, 49, 49, 49}, out)
}

func TestEnqueueKernel_LaunchErrors(t *testing.T) {
	d := newTestDevice(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 8, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	prog, err := d.BuildProgram(testProgram(), device.Defines{"ADD": 1})
	require.NoError(t, err)
	k, err := prog.Kernel("add_const")
	require.NoError(t, err)

	ok := device.NDRange{Global: [3]int{1, 1, 8}, Local: [3]int{1, 1, 8}}

	err = q.EnqueueKernel(k, ok)
	require.ErrorIs(t, err, device.ErrArgCount)
	assert.Equal(t, device.KindLaunch, device.KindOf(err))

	err = q.EnqueueKernel(k, device.NDRange{Global: [3]int{1, 1, 8}, Local: [3]int{1, 1, 3}}, buf)
	require.ErrorIs(t, err, device.ErrBadRange)
	var de *device.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, device.CodeInvalidWorkGroup, de.Code)

	err = q.EnqueueKernel(k, device.NDRange{Global: [3]int{1, 1, 128}, Local: [3]int{1, 1, 128}}, buf)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, device.CodeInvalidWorkItemSize, de.Code)

	other := New(DefaultConfig())
	defer other.Release()
	foreign, err := other.CreateBuffer("foreign", 8, device.ReadWrite)
	require.NoError(t, err)
	err = q.EnqueueKernel(k, ok, foreign)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, device.CodeInvalidMemObject, de.Code)

	prog.Release()
	err = q.EnqueueKernel(k, ok, buf)
	assert.ErrorIs(t, err, device.ErrReleased)
}

func TestQueue_StickyError(t *testing.T) {
	d := newTestDevice(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 8, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	prog, err := d.BuildProgram(testProgram(), device.Defines{"ADD": 1})
	require.NoError(t, err)
	fault, err := prog.Kernel("fault")
	require.NoError(t, err)
	add, err := prog.Kernel("add_const")
	require.NoError(t, err)

	r := device.NDRange{Global: [3]int{1, 1, 8}, Local: [3]int{1, 1, 2}}
	require.NoError(t, q.EnqueueKernel(fault, r, buf))
	require.NoError(t, q.EnqueueKernel(add, r, buf))

	err = q.Finish(context.Background())
	require.Error(t, err)
	assert.Equal(t, device.KindLaunch, device.KindOf(err))
	assert.Contains(t, err.Error(), "fault")

	out := make([]float32, 8)
	err = q.ReadBuffer(context.Background(), buf, out)
	require.Error(t, err, "queue stays poisoned")
	assert.Equal(t, make([]float32, 8), out, "destination untouched on failure")
}

func TestQueue_Reset(t *testing.T) {
	d := newTestDevice(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 8, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	prog, err := d.BuildProgram(testProgram(), device.Defines{"ADD": 1})
	require.NoError(t, err)
	fault, err := prog.Kernel("fault")
	require.NoError(t, err)
	add, err := prog.Kernel("add_const")
	require.NoError(t, err)

	r := device.NDRange{Global: [3]int{1, 1, 8}, Local: [3]int{1, 1, 2}}
	require.NoError(t, q.EnqueueWrite(buf, make([]float32, 8)))
	require.NoError(t, q.EnqueueKernel(fault, r, buf))
	require.NoError(t, q.EnqueueKernel(add, r, buf))

	err = q.Finish(context.Background())
	var de *device.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "fault", de.Kernel)

	q.Reset()
	require.NoError(t, q.EnqueueKernel(add, r, buf))

	out := make([]float32, 8)
	require.NoError(t, q.ReadBuffer(context.Background(), buf, out))
	for _, v := range out {
		assert.Equal(t, float32(1), v, "only the launch after Reset ran")
	}
}

func TestReadBuffer_Validation(t *testing.T) {
	d := newTestDevice(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 8, device.WriteOnly)
	require.NoError(t, err)

	err = q.ReadBuffer(context.Background(), buf, make([]float32, 7))
	assert.Equal(t, device.KindTransfer, device.KindOf(err))

	err = q.EnqueueWrite(buf, make([]float32, 9))
	assert.Equal(t, device.KindTransfer, device.KindOf(err))

	buf.Release()
	err = q.ReadBuffer(context.Background(), buf, make([]float32, 8))
	assert.ErrorIs(t, err, device.ErrReleased)
}

func TestReadBuffer_ContextCancelled(t *testing.T) {
	d := newTestDevice(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 4, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	block := make(chan struct{})
	src := device.ProgramSource{Name: "slow", Kernels: []device.KernelSource{{
		Name: "wait",
		Args: 1,
		Func: func(device.Defines) (device.ItemFunc, error) {
			return func(device.WorkItem, [][]float32) { <-block }, nil
		},
	}}}
	prog, err := d.BuildProgram(src, nil)
	require.NoError(t, err)
	k, err := prog.Kernel("wait")
	require.NoError(t, err)
	require.NoError(t, q.EnqueueKernel(k, device.NDRange{Global: [3]int{1, 1, 1}, Local: [3]int{1, 1, 1}}, buf))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = q.ReadBuffer(ctx, buf, make([]float32, 4))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(block)
	require.NoError(t, q.Finish(context.Background()))
}

func TestBuildProgram_Failure(t *testing.T) {
	d := newTestDevice(t)

	src := testProgram()
	src.Kernels = append(src.Kernels, device.KernelSource{Name: "no_impl", Args: 1, WGSL: "fn main() {}"})

	_, err := d.BuildProgram(src, device.Defines{})
	require.ErrorIs(t, err, device.ErrBuildFailed)

	var de *device.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, device.KindBuild, de.Kind)
	assert.Equal(t, device.CodeBuildProgramFailure, de.Code)
	// Every problem is reported, not just the first.
	assert.Contains(t, de.Log, `kernel "add_const": undefined constant ADD`)
	assert.Contains(t, de.Log, `kernel "no_impl": no host implementation`)
	assert.Contains(t, err.Error(), de.Log)
}

func TestProgram_UnknownKernel(t *testing.T) {
	d := newTestDevice(t)

	prog, err := d.BuildProgram(testProgram(), device.Defines{"ADD": 1})
	require.NoError(t, err)
	assert.Contains(t, prog.BuildLog(), "-D ADD=1")

	_, err = prog.Kernel("nope")
	require.ErrorIs(t, err, device.ErrNoKernel)
}

func TestDevice_Released(t *testing.T) {
	d := New(DefaultConfig())
	buf, err := d.CreateBuffer("x", 4, device.ReadWrite)
	require.NoError(t, err)

	d.Release()
	d.Release()

	_, err = d.CreateBuffer("y", 4, device.ReadWrite)
	assert.ErrorIs(t, err, device.ErrReleased)
	_, err = d.BuildProgram(testProgram(), device.Defines{"ADD": 1})
	assert.ErrorIs(t, err, device.ErrReleased)
	err = d.Queue().EnqueueWrite(buf, make([]float32, 4))
	assert.ErrorIs(t, err, device.ErrReleased)
	err = d.Queue().Finish(context.Background())
	assert.ErrorIs(t, err, device.ErrReleased)
}
