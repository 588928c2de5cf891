package device

import "fmt"

// NDRange is a three-dimensional launch extent.
//
// Dimension 0 is the outermost (channel) axis and dimension 2 the innermost,
// stride-1 axis. Local is the work-group shape and must evenly divide Global.
type NDRange struct {
	Global [3]int
	Local  [3]int
}

// Items returns the number of work-items in the launch.
func (r NDRange) Items() int {
	return r.Global[0] * r.Global[1] * r.Global[2]
}

// GroupSize returns the number of work-items in one work-group.
func (r NDRange) GroupSize() int {
	return r.Local[0] * r.Local[1] * r.Local[2]
}

// Groups returns the number of work-groups per dimension.
func (r NDRange) Groups() [3]int {
	return [3]int{
		r.Global[0] / r.Local[0],
		r.Global[1] / r.Local[1],
		r.Global[2] / r.Local[2],
	}
}

// Validate checks r against the device limits.
func (r NDRange) Validate(l Limits) error {
	for d := 0; d < 3; d++ {
		if r.Global[d] <= 0 || r.Local[d] <= 0 {
			return fmt.Errorf("%w: dimension %d has global %d, local %d", ErrBadRange, d, r.Global[d], r.Local[d])
		}
		if r.Global[d]%r.Local[d] != 0 {
			return fmt.Errorf("%w: local %d does not divide global %d in dimension %d",
				ErrBadRange, r.Local[d], r.Global[d], d)
		}
		if l.MaxWorkItemSizes[d] > 0 && r.Local[d] > l.MaxWorkItemSizes[d] {
			return fmt.Errorf("%w: local %d exceeds device limit %d in dimension %d",
				ErrBadRange, r.Local[d], l.MaxWorkItemSizes[d], d)
		}
	}
	if l.MaxWorkGroupSize > 0 && r.GroupSize() > l.MaxWorkGroupSize {
		return fmt.Errorf("%w: work-group of %d items exceeds device limit %d",
			ErrBadRange, r.GroupSize(), l.MaxWorkGroupSize)
	}
	return nil
}

// String implements fmt.Stringer.
func (r NDRange) String() string {
	return fmt.Sprintf("global %v local %v", r.Global, r.Local)
}
