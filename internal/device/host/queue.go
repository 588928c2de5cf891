package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/parallel"
)

var errForeignBuffer = errors.New("buffer does not belong to this device")

// command is one queue entry. done, when set, is closed once the command
// has been processed. A reset command clears the sticky error.
type command struct {
	name  string
	run   func() error
	done  chan struct{}
	reset bool
}

// Queue is the host device's in-order queue.
//
// A single worker goroutine executes commands in submission order. The first
// failing command poisons the queue: later commands are skipped and every
// barrier reports that failure.
type Queue struct {
	dev  *Device
	cmds chan command

	sendMu sync.Mutex // Guards closed and sends on cmds.
	closed bool

	errMu sync.Mutex
	err   error

	stopped chan struct{}
}

// Compile-time check that Queue implements device.Queue.
var _ device.Queue = (*Queue)(nil)

func newQueue(d *Device, size int) *Queue {
	q := &Queue{
		dev:     d,
		cmds:    make(chan command, size),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.stopped)
	for cmd := range q.cmds {
		if cmd.reset {
			q.clearErr()
		}
		if cmd.run != nil && q.Err() == nil {
			if err := cmd.run(); err != nil {
				q.setErr(err)
			}
		}
		if cmd.done != nil {
			close(cmd.done)
		}
	}
}

// Err returns the sticky error of the first failed command, if any.
func (q *Queue) Err() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	return q.err
}

func (q *Queue) setErr(err error) {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	if q.err == nil {
		q.err = err
	}
}

func (q *Queue) clearErr() {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	q.err = nil
}

func (q *Queue) submit(cmd command) error {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	if q.closed {
		return device.ErrReleased
	}
	q.cmds <- cmd
	return nil
}

func (q *Queue) close() {
	q.sendMu.Lock()
	if !q.closed {
		q.closed = true
		close(q.cmds)
	}
	q.sendMu.Unlock()
	<-q.stopped
}

// EnqueueWrite schedules a copy of src into dst. src is snapshotted before
// returning, so the caller may reuse it immediately.
func (q *Queue) EnqueueWrite(dst device.Buffer, src []float32) error {
	op := "EnqueueWrite " + labelOf(dst)
	hb, err := q.dev.resolve(dst)
	if err != nil {
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeInvalidMemObject, Err: err}
	}
	if len(src) != hb.Len() {
		return &device.Error{
			Kind: device.KindTransfer,
			Op:   op,
			Code: device.CodeInvalidValue,
			Err:  fmt.Errorf("source has %d elements, buffer holds %d", len(src), hb.Len()),
		}
	}

	snapshot := make([]float32, len(src))
	copy(snapshot, src)
	mem := hb.mem

	if err := q.submit(command{name: op, run: func() error {
		copy(mem, snapshot)
		return nil
	}}); err != nil {
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeInvalidValue, Err: err}
	}
	return nil
}

// EnqueueKernel validates the launch and schedules it.
func (q *Queue) EnqueueKernel(k device.Kernel, r device.NDRange, args ...device.Buffer) error {
	hk, ok := k.(*Kernel)
	if !ok || hk == nil || hk.prog.dev != q.dev {
		return &device.Error{
			Kind: device.KindLaunch,
			Op:   "EnqueueKernel",
			Code: device.CodeInvalidValue,
			Err:  errors.New("kernel does not belong to this device"),
		}
	}
	op := "EnqueueKernel " + hk.name
	if hk.prog.released.Load() {
		return &device.Error{Kind: device.KindLaunch, Op: op, Code: device.CodeInvalidValue, Err: device.ErrReleased}
	}
	if len(args) != hk.args {
		return &device.Error{
			Kind: device.KindLaunch,
			Op:   op,
			Code: device.CodeInvalidKernelArgs,
			Err:  fmt.Errorf("%w: got %d, want %d", device.ErrArgCount, len(args), hk.args),
		}
	}
	if err := r.Validate(q.dev.cfg.Limits); err != nil {
		code := device.CodeInvalidWorkGroup
		for i, limit := range q.dev.cfg.Limits.MaxWorkItemSizes {
			if limit > 0 && r.Local[i] > limit {
				code = device.CodeInvalidWorkItemSize
			}
		}
		return &device.Error{Kind: device.KindLaunch, Op: op, Code: code, Err: err}
	}

	mems := make([][]float32, len(args))
	for i, a := range args {
		hb, err := q.dev.resolve(a)
		if err != nil {
			return &device.Error{
				Kind: device.KindLaunch,
				Op:   fmt.Sprintf("%s arg %d (%s)", op, i, labelOf(a)),
				Code: device.CodeInvalidMemObject,
				Err:  err,
			}
		}
		mems[i] = hb.mem
	}

	if err := q.submit(command{name: op, run: func() error {
		return q.dev.execute(hk, r, mems)
	}}); err != nil {
		return &device.Error{Kind: device.KindLaunch, Op: op, Code: device.CodeInvalidValue, Err: err}
	}
	return nil
}

// ReadBuffer waits for all prior work and copies src into dst.
// If ctx ends first, ctx.Err() is returned and dst is left untouched.
func (q *Queue) ReadBuffer(ctx context.Context, src device.Buffer, dst []float32) error {
	op := "ReadBuffer " + labelOf(src)
	hb, err := q.dev.resolve(src)
	if err != nil {
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeInvalidMemObject, Err: err}
	}
	if len(dst) != hb.Len() {
		return &device.Error{
			Kind: device.KindTransfer,
			Op:   op,
			Code: device.CodeInvalidValue,
			Err:  fmt.Errorf("destination has %d elements, buffer holds %d", len(dst), hb.Len()),
		}
	}

	staging := make([]float32, hb.Len())
	mem := hb.mem
	done := make(chan struct{})
	if err := q.submit(command{name: op, done: done, run: func() error {
		copy(staging, mem)
		return nil
	}}); err != nil {
		return &device.Error{Kind: device.KindTransfer, Op: op, Code: device.CodeInvalidValue, Err: err}
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := q.Err(); err != nil {
		return err
	}
	copy(dst, staging)
	return nil
}

// Finish waits for all prior work.
func (q *Queue) Finish(ctx context.Context) error {
	done := make(chan struct{})
	if err := q.submit(command{name: "Finish", done: done}); err != nil {
		return &device.Error{Kind: device.KindTransfer, Op: "Finish", Code: device.CodeInvalidValue, Err: err}
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return q.Err()
}

// Reset clears the sticky error once every command enqueued before it has
// been processed. Commands still queued from the failed invocation are
// skipped as usual.
func (q *Queue) Reset() {
	_ = q.submit(command{name: "Reset", reset: true})
}

// execute runs one launch: work-groups are distributed over the worker pool,
// the items of a group run sequentially on one goroutine.
func (d *Device) execute(k *Kernel, r device.NDRange, args [][]float32) error {
	groups := r.Groups()
	nGroups := groups[0] * groups[1] * groups[2]

	return parallel.For(context.Background(), nGroups, func(g int) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = &device.Error{
					Kind:   device.KindLaunch,
					Op:     "execute " + k.name,
					Kernel: k.name,
					Code:   device.CodeOutOfResources,
					Err:    fmt.Errorf("work-group %d faulted: %v", g, rec),
				}
			}
		}()

		var wi device.WorkItem
		wi.Group[0] = g / (groups[1] * groups[2])
		wi.Group[1] = (g / groups[2]) % groups[1]
		wi.Group[2] = g % groups[2]

		for l0 := 0; l0 < r.Local[0]; l0++ {
			for l1 := 0; l1 < r.Local[1]; l1++ {
				for l2 := 0; l2 < r.Local[2]; l2++ {
					wi.Local = [3]int{l0, l1, l2}
					wi.Global = [3]int{
						wi.Group[0]*r.Local[0] + l0,
						wi.Group[1]*r.Local[1] + l1,
						wi.Group[2]*r.Local[2] + l2,
					}
					k.body(wi, args)
				}
			}
		}
		return nil
	}, d.cfg.Workers)
}

func labelOf(b device.Buffer) string {
	if b == nil {
		return "<nil>"
	}
	return b.Label()
}
