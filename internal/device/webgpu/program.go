//go:build windows

package webgpu

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

// Kernel is one WGSL entry point. Pipelines are compiled per work-group
// shape on first launch and cached.
type Kernel struct {
	prog *Program
	name string
	args int
	body string

	mu        sync.Mutex
	pipelines map[[3]int]*wgpu.ComputePipeline
	shaders   []*wgpu.ShaderModule
}

// Name returns the entry point name.
func (k *Kernel) Name() string { return k.name }

// NumArgs returns the number of buffer arguments.
func (k *Kernel) NumArgs() int { return k.args }

// pipeline returns the compute pipeline for local, compiling it if needed.
func (k *Kernel) pipeline(local [3]int) (p *wgpu.ComputePipeline, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if p, ok := k.pipelines[local]; ok {
		return p, nil
	}

	src := shaderSource(k.prog.defs, local, k.body)
	shader, err := compile(k.prog.dev.device, src)
	if err != nil {
		return nil, err
	}
	k.shaders = append(k.shaders, shader)

	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("create pipeline: %v", r)
		}
	}()
	p = k.prog.dev.device.CreateComputePipelineSimple(nil, shader, "main")
	if p == nil {
		return nil, fmt.Errorf("create pipeline for work-group %v failed", local)
	}
	k.pipelines[local] = p
	return p, nil
}

func (k *Kernel) release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, p := range k.pipelines {
		p.Release()
	}
	for _, s := range k.shaders {
		s.Release()
	}
	k.pipelines = nil
	k.shaders = nil
}

// compile turns WGSL source into a shader module.
func compile(dev *wgpu.Device, src string) (shader *wgpu.ShaderModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			shader = nil
			err = fmt.Errorf("shader compilation failed: %v", r)
		}
	}()
	shader = dev.CreateShaderModuleWGSL(src)
	if shader == nil {
		return nil, fmt.Errorf("shader compilation failed")
	}
	return shader, nil
}

// Program is a set of WGSL kernels bound to one set of constants.
type Program struct {
	dev      *Device
	name     string
	defs     device.Defines
	kernels  map[string]*Kernel
	log      string
	released atomic.Bool
}

// Compile-time check that Program implements device.Program.
var _ device.Program = (*Program)(nil)

// Kernel returns the entry point called name.
func (p *Program) Kernel(name string) (device.Kernel, error) {
	k, ok := p.kernels[name]
	if !ok {
		return nil, &device.Error{
			Kind: device.KindBuild,
			Op:   "Kernel " + name,
			Code: device.CodeInvalidKernelName,
			Err:  fmt.Errorf("%w: %q in program %q", device.ErrNoKernel, name, p.name),
		}
	}
	return k, nil
}

// BuildLog returns the build log.
func (p *Program) BuildLog() string { return p.log }

// Release frees every compiled pipeline. Idempotent.
func (p *Program) Release() {
	if p.released.Swap(true) {
		return
	}
	for _, k := range p.kernels {
		k.release()
	}
}

// BuildProgram checks every kernel of src against defs and compiles it once
// with a single-item work-group, so that shader errors surface here rather
// than at the first launch. All problems are collected into the build log.
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
		defs:    defs,
		kernels: make(map[string]*Kernel, len(src.Kernels)),
	}

	var details []string
	problems := src.Check()
	for _, ks := range src.Kernels {
		if strings.TrimSpace(ks.WGSL) == "" {
			problems = append(problems, fmt.Sprintf("kernel %q: no WGSL implementation", ks.Name))
			continue
		}
		if missing := undefinedConstants(defs, ks.WGSL); len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("kernel %q: undefined constants: %s",
				ks.Name, strings.Join(missing, ", ")))
			continue
		}

		k := &Kernel{
			prog:      prog,
			name:      ks.Name,
			args:      ks.Args,
			body:      ks.WGSL,
			pipelines: make(map[[3]int]*wgpu.ComputePipeline),
		}
		if _, err := k.pipeline([3]int{1, 1, 1}); err != nil {
			problems = append(problems, fmt.Sprintf("kernel %q: %v", ks.Name, err))
			details = append(details, numberedSource(shaderSource(defs, [3]int{1, 1, 1}, ks.WGSL)))
			k.release()
			continue
		}
		prog.kernels[ks.Name] = k
	}

	var log strings.Builder
	fmt.Fprintf(&log, "program %q for %s\n", src.Name, d.info)
	for _, n := range defs.Names() {
		fmt.Fprintf(&log, "  -D %s=%d\n", n, defs[n])
	}
	for _, p := range problems {
		log.WriteString("error: ")
		log.WriteString(p)
		log.WriteString("\n")
	}
	for _, s := range details {
		log.WriteString(s)
	}
	prog.log = log.String()

	if len(problems) > 0 {
		prog.Release()
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
