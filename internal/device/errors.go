package device

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies device failures. Every kind is fatal for the invocation
// that hit it.
type Kind int

// Failure kinds.
const (
	KindPlatform Kind = iota + 1
	KindAllocation
	KindTransfer
	KindBuild
	KindLaunch
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindAllocation:
		return "allocation"
	case KindTransfer:
		return "transfer"
	case KindBuild:
		return "build"
	case KindLaunch:
		return "launch"
	default:
		return "unknown"
	}
}

// Device-reported status codes. The values follow the OpenCL status codes
// so diagnostics read the same regardless of backend.
const (
	CodeDeviceNotFound      = -1
	CodeMemAllocFailure     = -4
	CodeOutOfResources      = -5
	CodeBuildProgramFailure = -11
	CodeInvalidValue        = -30
	CodeInvalidMemObject    = -38
	CodeInvalidKernelName   = -46
	CodeInvalidKernelArgs   = -52
	CodeInvalidWorkGroup    = -54
	CodeInvalidWorkItemSize = -55
	CodeInvalidBufferSize   = -61
)

// Sentinel causes wrapped by *Error.
var (
	ErrNoDevice    = errors.New("no capable device")
	ErrOutOfMemory = errors.New("device out of memory")
	ErrBadRange    = errors.New("invalid work range")
	ErrArgCount    = errors.New("kernel argument count mismatch")
	ErrBuildFailed = errors.New("program build failed")
	ErrReleased    = errors.New("object already released")
	ErrNoKernel    = errors.New("no such kernel")
)

// Error is a failed device operation.
type Error struct {
	Kind  Kind
	Op    string // Device operation, e.g. "CreateBuffer input".
	Stage string // Pipeline stage, empty outside a stage.
	// Kernel names the kernel that faulted while executing. Only set for
	// KindLaunch errors reported by a barrier rather than at enqueue.
	Kernel string
	Code  int    // Device-reported status.
	Log   string // Full build log for KindBuild.
	Err   error
}

// Error implements error.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(" error")
	if e.Stage != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Stage)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Op)
	fmt.Fprintf(&sb, " (%d)", e.Code)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.Log != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Log)
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithStage returns err annotated with stage when it is a *Error.
// Other errors are returned unchanged.
func WithStage(err error, stage string) error {
	var de *Error
	if !errors.As(err, &de) {
		return err
	}
	cp := *de
	cp.Stage = stage
	return &cp
}

// KindOf reports the Kind of err, or 0 if err is not a device error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
