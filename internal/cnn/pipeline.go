package cnn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/born-ml/convlayer/internal/device"
	"github.com/born-ml/convlayer/internal/tensor"
)

// ErrState is returned for an out-of-order pipeline transition.
var ErrState = errors.New("cnn: illegal pipeline transition")

// State is the progress of one invocation. Each transition is taken once the
// corresponding work has been enqueued.
type State int

// Invocation states in order.
const (
	Unconfigured State = iota
	BuffersReady
	BiasInitDone
	ConvolutionDone
	ActivationDone
	PoolingDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "Unconfigured"
	case BuffersReady:
		return "BuffersReady"
	case BiasInitDone:
		return "BiasInitDone"
	case ConvolutionDone:
		return "ConvolutionDone"
	case ActivationDone:
		return "ActivationDone"
	case PoolingDone:
		return "PoolingDone"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// done returns the state reached once s has been enqueued.
func (s Stage) done() State {
	return BiasInitDone + State(s)
}

// args returns the kernel arguments of s in binding order.
func (s Stage) args(bs *BufferSet) []device.Buffer {
	switch s {
	case StageBiasInit:
		return []device.Buffer{bs.Intermediate, bs.Bias}
	case StageConvolution:
		return []device.Buffer{bs.Intermediate, bs.Weights, bs.Input}
	case StageActivation:
		return []device.Buffer{bs.Intermediate}
	default:
		return []device.Buffer{bs.Intermediate, bs.Output}
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTiling replaces the planned tiling. The tiling is validated against the
// layer and device when the pipeline is built.
func WithTiling(t Tiling) Option {
	return func(p *Pipeline) {
		p.tiling = t
		p.customTiling = true
	}
}

// WithClock sets the time source used for Timing.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline runs the layer on one device. The program is built once; each
// Run allocates its own buffers. Runs on the same Pipeline are serialized.
type Pipeline struct {
	dev          device.Device
	cfg          Config
	tiling       Tiling
	customTiling bool
	now          func() time.Time

	prog    device.Program
	kernels [len(stages)]device.Kernel

	mu    sync.Mutex
	state State
}

// New validates cfg, plans (or checks) the tiling, builds the layer program
// on dev and resolves its kernels.
func New(dev device.Device, cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{dev: dev, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	if p.customTiling {
		if err := p.tiling.Validate(cfg, dev.Limits()); err != nil {
			return nil, err
		}
	} else {
		t, err := PlanTiling(cfg, dev.Limits())
		if err != nil {
			return nil, err
		}
		p.tiling = t
	}

	prog, err := dev.BuildProgram(Program(), cfg.Defines())
	if err != nil {
		return nil, err
	}
	p.prog = prog

	for _, s := range stages {
		k, err := prog.Kernel(s.Kernel())
		if err != nil {
			prog.Release()
			return nil, device.WithStage(err, s.String())
		}
		p.kernels[s] = k
	}
	return p, nil
}

// Config returns the layer configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Tiling returns the work-group shapes in use.
func (p *Pipeline) Tiling() Tiling { return p.tiling }

// State returns the state reached by the current or last invocation.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Release releases the program. The device is owned by the caller.
func (p *Pipeline) Release() {
	if p.prog != nil {
		p.prog.Release()
		p.prog = nil
	}
}

// Run executes the layer on host tensors input [C,Hin,Hin], weights
// [C,C,K,K] and bias [C] and returns the output [C,Hout,Hout].
//
// Transfers and the four stages are enqueued on the device's single in-order
// queue; the blocking output read is the only wait. Device buffers are
// released before Run returns, on success and on failure. No partial output
// is ever returned, and work left on the queue by a failed Run is abandoned.
func (p *Pipeline) Run(ctx context.Context, input, weights, bias *tensor.Host) (out *tensor.Host, timing *Timing, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	timing = newTiming(p.now())
	p.state = Unconfigured

	if p.prog == nil {
		return nil, nil, fmt.Errorf("%w: pipeline released", ErrState)
	}

	q := p.dev.Queue()
	defer func() {
		if err != nil {
			q.Reset()
		}
	}()

	bs, err := NewBufferSet(p.dev, p.cfg)
	if err != nil {
		return nil, nil, err
	}
	defer bs.Release()

	if err := bs.Upload(q, input, weights, bias); err != nil {
		return nil, nil, err
	}
	if err := p.advance(BuffersReady); err != nil {
		return nil, nil, err
	}
	timing.Uploaded = p.now()

	if err := p.enqueueThrough(q, bs, PoolingDone, timing); err != nil {
		return nil, nil, err
	}

	out, err = tensor.NewHost(p.cfg.OutputShape())
	if err != nil {
		return nil, nil, err
	}
	if err := q.ReadBuffer(ctx, bs.Output, out.Data()); err != nil {
		return nil, nil, p.barrierError(err)
	}
	timing.End = p.now()
	return out, timing, nil
}

// barrierError names the stage behind a failure reported by the output
// read. A kernel that faulted while executing is reported under the stage
// that launched it; every other failure belongs to the output transfer.
func (p *Pipeline) barrierError(err error) error {
	var de *device.Error
	if errors.As(err, &de) && de.Kind == device.KindLaunch && de.Kernel != "" {
		for _, s := range stages {
			if k := p.kernels[s]; k != nil && k.Name() == de.Kernel {
				return device.WithStage(err, s.String())
			}
		}
	}
	return device.WithStage(err, "output transfer")
}

// enqueueThrough enqueues every stage from the current state up to and
// including the one that reaches last.
func (p *Pipeline) enqueueThrough(q device.Queue, bs *BufferSet, last State, timing *Timing) error {
	for _, s := range stages {
		if s.done() <= p.state {
			continue
		}
		if s.done() > last {
			break
		}
		if err := q.EnqueueKernel(p.kernels[s], p.tiling.Range(s, p.cfg), s.args(bs)...); err != nil {
			return device.WithStage(err, s.String())
		}
		if err := p.advance(s.done()); err != nil {
			return err
		}
		if timing != nil {
			timing.Stages[s.done()] = p.now()
		}
	}
	return nil
}

// advance moves to the next state. Skipping or repeating a state is a bug.
func (p *Pipeline) advance(to State) error {
	if to != p.state+1 {
		return fmt.Errorf("%w: %s -> %s", ErrState, p.state, to)
	}
	p.state = to
	return nil
}

// RunLayer builds a pipeline for cfg on dev, runs it once and releases it.
func RunLayer(ctx context.Context, dev device.Device, cfg Config, input, weights, bias *tensor.Host) (*tensor.Host, *Timing, error) {
	p, err := New(dev, cfg)
	if err != nil {
		return nil, nil, err
	}
	defer p.Release()
	return p.Run(ctx, input, weights, bias)
}
