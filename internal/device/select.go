package device

import (
	"fmt"
	"strings"
)

// Predicate decides whether a device is capable enough to run on.
type Predicate func(Info) bool

// Any accepts every device.
func Any() Predicate {
	return func(Info) bool { return true }
}

// VendorPrefix accepts devices whose vendor starts with prefix, ignoring case.
func VendorPrefix(prefix string) Predicate {
	prefix = strings.ToLower(prefix)
	return func(i Info) bool {
		return strings.HasPrefix(strings.ToLower(i.Vendor), prefix)
	}
}

// OfType accepts devices of type t.
func OfType(t Type) Predicate {
	return func(i Info) bool { return i.Type == t }
}

// All accepts devices accepted by every predicate.
func All(preds ...Predicate) Predicate {
	return func(i Info) bool {
		for _, p := range preds {
			if p != nil && !p(i) {
				return false
			}
		}
		return true
	}
}

// Select returns the first candidate accepted by pred and releases the rest.
// A nil pred accepts every device.
func Select(candidates []Device, pred Predicate) (Device, error) {
	if pred == nil {
		pred = Any()
	}

	var chosen Device
	for _, d := range candidates {
		if d == nil {
			continue
		}
		if chosen == nil && pred(d.Info()) {
			chosen = d
			continue
		}
		d.Release()
	}
	if chosen == nil {
		return nil, &Error{
			Kind: KindPlatform,
			Op:   fmt.Sprintf("select device among %d candidates", len(candidates)),
			Code: CodeDeviceNotFound,
			Err:  ErrNoDevice,
		}
	}
	return chosen, nil
}
