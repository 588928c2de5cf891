package device

import (
	"fmt"
	"sort"
	"strings"
)

// WorkItem identifies one invocation inside a launch.
type WorkItem struct {
	Global [3]int // Global index per dimension.
	Local  [3]int // Index inside the work-group.
	Group  [3]int // Work-group index.
}

// ItemFunc is the body executed once per work-item. args holds the device
// memory of the kernel's buffer arguments in binding order.
type ItemFunc func(wi WorkItem, args [][]float32)

// KernelFunc binds build-time constants and returns the per-item body.
type KernelFunc func(defs Defines) (ItemFunc, error)

// KernelSource is one entry point of a program in every representation a
// device may execute.
type KernelSource struct {
	Name string
	Args int        // Number of buffer arguments.
	Func KernelFunc // Portable rendition, run by host devices.
	WGSL string     // Compute shader body, run by WebGPU devices.
}

// ProgramSource is a named set of kernels built together.
type ProgramSource struct {
	Name    string
	Kernels []KernelSource
}

// Lookup returns the kernel source called name.
func (p ProgramSource) Lookup(name string) (KernelSource, bool) {
	for _, k := range p.Kernels {
		if k.Name == name {
			return k, true
		}
	}
	return KernelSource{}, false
}

// Check reports structural problems common to every backend, one per line.
func (p ProgramSource) Check() []string {
	var problems []string
	if len(p.Kernels) == 0 {
		problems = append(problems, fmt.Sprintf("program %q: no kernels", p.Name))
	}
	seen := make(map[string]bool, len(p.Kernels))
	for _, k := range p.Kernels {
		if k.Name == "" {
			problems = append(problems, "kernel with empty name")
			continue
		}
		if seen[k.Name] {
			problems = append(problems, fmt.Sprintf("kernel %q: duplicate definition", k.Name))
		}
		seen[k.Name] = true
		if k.Args <= 0 {
			problems = append(problems, fmt.Sprintf("kernel %q: declares %d buffer arguments", k.Name, k.Args))
		}
	}
	return problems
}

// Defines are integer constants fixed when a program is built.
type Defines map[string]int

// Get returns the value of name.
func (d Defines) Get(name string) (int, error) {
	v, ok := d[name]
	if !ok {
		return 0, fmt.Errorf("undefined constant %s", name)
	}
	return v, nil
}

// Require returns the values of names in order, or an error listing every
// missing or non-positive constant.
func (d Defines) Require(names ...string) ([]int, error) {
	vals := make([]int, len(names))
	var missing []string
	for i, n := range names {
		v, ok := d[n]
		if !ok || v <= 0 {
			missing = append(missing, n)
			continue
		}
		vals[i] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("undefined or non-positive constants: %s", strings.Join(missing, ", "))
	}
	return vals, nil
}

// Names returns the constant names in sorted order.
func (d Defines) Names() []string {
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WGSL renders the constants as WGSL module-scope declarations.
func (d Defines) WGSL() string {
	var sb strings.Builder
	for _, n := range d.Names() {
		fmt.Fprintf(&sb, "const %s: u32 = %du;\n", n, d[n])
	}
	return sb.String()
}
