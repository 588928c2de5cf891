// Package webgpu runs programs on a GPU through WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Kernels are WGSL compute shaders. Build-time constants and the
// work-group shape are prepended as module-scope constants, so one kernel
// source yields a pipeline per work-group shape. Dispatch axes are reversed
// with respect to device.NDRange: x is the innermost (last) dimension.
package webgpu

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/born-ml/convlayer/internal/device"
)

// Work-group constants injected into every shader.
const (
	wgX = "WG_X"
	wgY = "WG_Y"
	wgZ = "WG_Z"
)

var constantRef = regexp.MustCompile(`\b[A-Z][A-Z0-9_]*\b`)

// shaderSource assembles a compilable module from defs, the work-group shape
// and a kernel body.
func shaderSource(defs device.Defines, local [3]int, body string) string {
	var sb strings.Builder
	sb.WriteString(defs.WGSL())
	fmt.Fprintf(&sb, "const %s: u32 = %du;\n", wgX, local[2])
	fmt.Fprintf(&sb, "const %s: u32 = %du;\n", wgY, local[1])
	fmt.Fprintf(&sb, "const %s: u32 = %du;\n", wgZ, local[0])
	sb.WriteString(body)
	return sb.String()
}

// undefinedConstants returns the upper-case identifiers body refers to that
// neither defs nor the work-group header declare.
func undefinedConstants(defs device.Defines, body string) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, name := range constantRef.FindAllString(body, -1) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if name == wgX || name == wgY || name == wgZ {
			continue
		}
		if _, ok := defs[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// dispatchCounts returns the work-group counts (x, y, z) for r.
func dispatchCounts(r device.NDRange) (x, y, z uint32) {
	g := r.Groups()
	//nolint:gosec // G115: group counts are positive after NDRange.Validate.
	return uint32(g[2]), uint32(g[1]), uint32(g[0])
}

// numberedSource prefixes every line with its number for build logs.
func numberedSource(src string) string {
	var sb strings.Builder
	for i, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
		fmt.Fprintf(&sb, "%4d | %s\n", i+1, line)
	}
	return sb.String()
}
