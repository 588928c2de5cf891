//go:build !windows

package webgpu

import (
	"fmt"
	"runtime"

	"github.com/born-ml/convlayer/internal/device"
)

// Device is unavailable on this platform.
type Device struct {
	device.Device
}

// Open always fails outside Windows.
func Open(device.Predicate) (*Device, error) {
	return nil, &device.Error{
		Kind: device.KindPlatform,
		Op:   "Open",
		Code: device.CodeDeviceNotFound,
		Err:  fmt.Errorf("%w: webgpu backend not built for %s", device.ErrNoDevice, runtime.GOOS),
	}
}

// IsAvailable reports false outside Windows.
func IsAvailable() bool { return false }
