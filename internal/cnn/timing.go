package cnn

import "time"

// Timing records the wall-clock milestones of one invocation. Stage times are
// taken when a stage has been enqueued; device completion is only observed
// at End, after the blocking output read.
type Timing struct {
	Start    time.Time // Invocation entered.
	Uploaded time.Time // Buffers allocated and input transfers enqueued.
	Stages   map[State]time.Time
	End      time.Time // Output read back to the host.
}

func newTiming(now time.Time) *Timing {
	return &Timing{Start: now, Stages: make(map[State]time.Time, 4)}
}

// Elapsed returns the total wall-clock time of the invocation.
func (t *Timing) Elapsed() time.Duration {
	return t.End.Sub(t.Start)
}

// KernelElapsed returns the time from the first kernel enqueue to completion.
func (t *Timing) KernelElapsed() time.Duration {
	return t.End.Sub(t.Uploaded)
}

// GOPS returns the convolution throughput, 2 * MACs per second in 1e9 units,
// over the total elapsed time.
func (t *Timing) GOPS(cfg Config) float64 {
	secs := t.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(2*cfg.MACs()) / secs / 1e9
}
