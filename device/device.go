// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device defines the accelerator abstraction shared by every
// backend: buffers in private device memory, programs built from kernel
// sources and one in-order queue per device.
package device

import (
	"github.com/born-ml/convlayer/internal/device"
)

// Device is a single accelerator.
type Device = device.Device

// Info describes a device.
type Info = device.Info

// Limits are the capabilities launches and allocations are checked against.
type Limits = device.Limits

// Predicate decides whether a device is acceptable.
type Predicate = device.Predicate

// Error is a failed device operation.
type Error = device.Error

// Kind classifies device failures.
type Kind = device.Kind

// Failure kinds.
const (
	KindPlatform   = device.KindPlatform
	KindAllocation = device.KindAllocation
	KindTransfer   = device.KindTransfer
	KindBuild      = device.KindBuild
	KindLaunch     = device.KindLaunch
)

// Sentinel causes, checked with errors.Is.
var (
	ErrNoDevice    = device.ErrNoDevice
	ErrOutOfMemory = device.ErrOutOfMemory
	ErrBuildFailed = device.ErrBuildFailed
)

// Any accepts every device.
func Any() Predicate { return device.Any() }

// VendorPrefix accepts devices whose vendor starts with prefix, ignoring case.
func VendorPrefix(prefix string) Predicate { return device.VendorPrefix(prefix) }

// Select returns the first candidate accepted by pred and releases the rest.
func Select(candidates []Device, pred Predicate) (Device, error) {
	return device.Select(candidates, pred)
}

// KindOf reports the Kind of err, or 0 if err is not a device error.
func KindOf(err error) Kind { return device.KindOf(err) }
