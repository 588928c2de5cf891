// Package device defines the accelerator model the layer pipeline runs on.
//
// A Device owns memory that host code cannot address directly. Host tensors
// reach device Buffers only through a Queue: EnqueueWrite copies host data in,
// ReadBuffer copies device data out. Every command submitted to a Queue
// executes in submission order, which is the only synchronization the
// pipeline relies on between dependent kernel launches.
package device

import (
	"context"
	"fmt"
)

// Type classifies a device.
type Type int

// Device types.
const (
	TypeOther Type = iota
	TypeCPU
	TypeGPU
)

// String returns a human-readable device type.
func (t Type) String() string {
	switch t {
	case TypeCPU:
		return "CPU"
	case TypeGPU:
		return "GPU"
	default:
		return "Other"
	}
}

// Info describes a device for selection and diagnostics.
type Info struct {
	Name    string
	Vendor  string
	Backend string
	Type    Type
}

// String implements fmt.Stringer.
func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s %s)", i.Name, i.Vendor, i.Backend, i.Type)
}

// Limits are the device capabilities a launch or allocation is validated against.
type Limits struct {
	MaxWorkGroupSize int    // Max work-items in one work-group.
	MaxWorkItemSizes [3]int // Max work-group extent per dimension.
	MaxAllocBytes    int64  // Max size of a single buffer.
	GlobalMemBytes   int64  // Total device memory.
	ComputeUnits     int
}

// Access is the kernel-side view of a buffer.
type Access int

// Buffer access modes.
const (
	ReadOnly Access = iota
	WriteOnly
	ReadWrite
)

// String returns the access mode name.
func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	case ReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// Buffer is a region of device memory holding float32 elements.
type Buffer interface {
	Label() string
	Len() int    // Number of float32 elements.
	Size() int64 // Size in bytes.
	Access() Access
	Release()
}

// Kernel is a compiled entry point of a Program.
type Kernel interface {
	Name() string
	NumArgs() int
}

// Program is a built ProgramSource.
type Program interface {
	Kernel(name string) (Kernel, error)
	BuildLog() string
	Release()
}

// Queue is a strictly in-order command queue.
type Queue interface {
	// EnqueueWrite schedules a host-to-device copy of src into dst and
	// returns without waiting. src is captured at enqueue time.
	EnqueueWrite(dst Buffer, src []float32) error

	// EnqueueKernel schedules k over r with the given buffer arguments.
	EnqueueKernel(k Kernel, r NDRange, args ...Buffer) error

	// ReadBuffer blocks until every previously enqueued command has
	// completed, then copies src into dst.
	ReadBuffer(ctx context.Context, src Buffer, dst []float32) error

	// Finish blocks until every previously enqueued command has completed.
	Finish(ctx context.Context) error

	// Reset abandons a failed invocation without waiting. Commands not yet
	// handed to the device are discarded and an earlier failure no longer
	// fails commands enqueued after Reset.
	Reset()
}

// Device is a single accelerator with its own memory and one in-order queue.
type Device interface {
	Info() Info
	Limits() Limits
	CreateBuffer(label string, elems int, access Access) (Buffer, error)
	BuildProgram(src ProgramSource, defs Defines) (Program, error)
	Queue() Queue
	Release()
}
