//go:build windows

package webgpu

import (
	"context"
	"testing"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openOrSkip(t *testing.T) *Device {
	t.Helper()
	d, err := Open(nil)
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	t.Cleanup(d.Release)
	return d
}

func testProgram() device.ProgramSource {
	return device.ProgramSource{
		Name:    "test",
		Kernels: []device.KernelSource{{Name: "add_const", Args: 1, WGSL: testBody}},
	}
}

func TestIsAvailable(t *testing.T) {
	t.Logf("WebGPU available: %v", IsAvailable())
}

func TestOpen(t *testing.T) {
	d := openOrSkip(t)

	info := d.Info()
	assert.Equal(t, "webgpu", info.Backend)
	assert.Equal(t, device.TypeGPU, info.Type)
	t.Logf("Using GPU: %s", info)
}

func TestOpen_Rejected(t *testing.T) {
	if !IsAvailable() {
		t.Skip("WebGPU not available on this system")
	}
	_, err := Open(func(device.Info) bool { return false })
	require.ErrorIs(t, err, device.ErrNoDevice)
	assert.Equal(t, device.KindPlatform, device.KindOf(err))
}

func TestQueue_WriteKernelRead(t *testing.T) {
	d := openOrSkip(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 64, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	prog, err := d.BuildProgram(testProgram(), device.Defines{"N": 64, "SCALE": 3})
	require.NoError(t, err)
	defer prog.Release()
	k, err := prog.Kernel("add_const")
	require.NoError(t, err)

	src := make([]float32, 64)
	for i := range src {
		src[i] = float32(i)
	}
	require.NoError(t, q.EnqueueWrite(buf, src))
	r := device.NDRange{Global: [3]int{1, 1, 64}, Local: [3]int{1, 1, 16}}
	require.NoError(t, q.EnqueueKernel(k, r, buf))
	require.NoError(t, q.EnqueueKernel(k, r, buf))

	out := make([]float32, 64)
	require.NoError(t, q.ReadBuffer(context.Background(), buf, out))
	for i, v := range out {
		assert.Equal(t, float32(i+6), v)
	}
	require.NoError(t, q.Finish(context.Background()))
}

func TestBuildProgram_UndefinedConstant(t *testing.T) {
	d := openOrSkip(t)

	_, err := d.BuildProgram(testProgram(), device.Defines{"N": 64})
	require.ErrorIs(t, err, device.ErrBuildFailed)

	var de *device.Error
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Log, "SCALE")
}

func TestEnqueueKernel_ArgCount(t *testing.T) {
	d := openOrSkip(t)

	prog, err := d.BuildProgram(testProgram(), device.Defines{"N": 64, "SCALE": 1})
	require.NoError(t, err)
	defer prog.Release()
	k, err := prog.Kernel("add_const")
	require.NoError(t, err)

	r := device.NDRange{Global: [3]int{1, 1, 64}, Local: [3]int{1, 1, 16}}
	err = d.Queue().EnqueueKernel(k, r)
	assert.ErrorIs(t, err, device.ErrArgCount)
}

func TestQueue_ResetDropsRecorded(t *testing.T) {
	d := openOrSkip(t)
	q := d.Queue()

	buf, err := d.CreateBuffer("x", 16, device.ReadWrite)
	require.NoError(t, err)
	defer buf.Release()

	src := make([]float32, 16)
	for i := range src {
		src[i] = 1
	}
	require.NoError(t, q.EnqueueWrite(buf, src))
	q.Reset()

	out := make([]float32, 16)
	require.NoError(t, q.ReadBuffer(context.Background(), buf, out))
	assert.Equal(t, make([]float32, 16), out, "write recorded before Reset never ran")
}
