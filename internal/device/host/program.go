package host

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/born-ml/convlayer/internal/device"
)

// Kernel is a kernel bound to its build-time constants.
type Kernel struct {
	prog *Program
	name string
	args int
	body device.ItemFunc
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// NumArgs returns the number of buffer arguments.
func (k *Kernel) NumArgs() int { return k.args }

// Program is a built host program.
type Program struct {
	dev      *Device
	name     string
	kernels  map[string]*Kernel
	log      string
	released atomic.Bool
}

// Kernel returns the kernel called name.
func (p *Program) Kernel(name string) (device.Kernel, error) {
	k, ok := p.kernels[name]
	if !ok {
		return nil, &device.Error{
			Kind: device.KindBuild,
			Op:   fmt.Sprintf("CreateKernel %s.%s", p.name, name),
			Code: device.CodeInvalidKernelName,
			Err:  device.ErrNoKernel,
		}
	}
	return k, nil
}

// BuildLog returns the build log.
func (p *Program) BuildLog() string { return p.log }

// Release marks the program as released. Idempotent.
func (p *Program) Release() { p.released.Store(true) }

// BuildProgram binds every kernel of src to defs. All problems are collected
// into the build log instead of stopping at the first one.
func (d *Device) BuildProgram(src device.ProgramSource, defs device.Defines) (device.Program, error) {
	op := "BuildProgram " + src.Name

	d.mu.Lock()
	released := d.released
	d.mu.Unlock()
	if released {
		return nil, &device.Error{Kind: device.KindBuild, Op: op, Code: device.CodeInvalidValue, Err: device.ErrReleased}
	}

	prog := &Program{
		dev:     d,
		name:    src.Name,
		kernels: make(map[string]*Kernel, len(src.Kernels)),
	}

	problems := src.Check()
	for _, ks := range src.Kernels {
		if ks.Func == nil {
			problems = append(problems, fmt.Sprintf("kernel %q: no host implementation", ks.Name))
			continue
		}
		body, err := ks.Func(defs)
		if err != nil {
			problems = append(problems, fmt.Sprintf("kernel %q: %v", ks.Name, err))
			continue
		}
		prog.kernels[ks.Name] = &Kernel{prog: prog, name: ks.Name, args: ks.Args, body: body}
	}

	var log strings.Builder
	fmt.Fprintf(&log, "program %q for %s\n", src.Name, d.cfg.Name)
	for _, n := range defs.Names() {
		fmt.Fprintf(&log, "  -D %s=%d\n", n, defs[n])
	}
	for _, p := range problems {
		log.WriteString("error: ")
		log.WriteString(p)
		log.WriteString("\n")
	}
	prog.log = log.String()

	if len(problems) > 0 {
		return nil, &device.Error{
			Kind: device.KindBuild,
			Op:   op,
			Code: device.CodeBuildProgramFailure,
			Log:  prog.log,
			Err:  fmt.Errorf("%w: %d error(s)", device.ErrBuildFailed, len(problems)),
		}
	}
	return prog, nil
}
